// MCP Swarmwork Server
// Stdio MCP surface over the capability-unit catalog and sequence engine.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/domain"
	"github.com/jaakkos/swarmwork/internal/policy"
	"github.com/jaakkos/swarmwork/internal/repository"
	"github.com/jaakkos/swarmwork/internal/sequence"
	"github.com/jaakkos/swarmwork/internal/tools/orchestrate"
	"github.com/jaakkos/swarmwork/internal/transport"
)

// Version is set by -ldflags at build time.
var Version = "dev"

func main() {
	// Handle CLI subcommands before starting the MCP server.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			runStatusCommand()
			return
		case "--version", "-v", "version":
			fmt.Println("mcp-swarmwork " + Version)
			return
		}
	}

	tmpLogger := log.New(os.Stderr, "[mcp-swarm] ", log.LstdFlags|log.Lshortfile)
	cfg := loadConfig(tmpLogger)
	pol := policy.New(cfg)

	logger := setupLogger(pol.LogFile())
	logger.Println("Starting MCP Swarmwork server...")
	logger.Printf("State file: %s", pol.StateFile())
	logger.Printf("Log file: %s", pol.LogFile())

	// Shared store: sqlite-backed, wrapped so every write touches the notify
	// signal file for other processes watching the store.
	baseStore, err := repository.NewSharedStore(pol.StateFile())
	if err != nil {
		logger.Fatalf("Shared store: %v", err)
	}
	store := app.NewSignalingStore(baseStore, pol.SignalFilePath())

	// In-process transport between supervisors.
	bus := transport.New(logger)

	sys := catalog.Build(catalog.Deps{
		Store:      store,
		Transport:  bus,
		Generator:  app.GeneratorFunc(draftGenerator),
		Provider:   sequence.NewOutboxProvider(store, "channel-provider"),
		Sentiment:  sequence.NewStoreSentiment(store, catalog.OutreachManagerID),
		Reviewer:   app.ReviewerFunc(structuralReview),
		Compliance: pol.Compliance(),
		MaxRetries: pol.MaxReviewRetries(),
		EscalateTo: pol.EscalationAuthority(),
		Overrides:  pol.StatusOverrides(),
		Logger:     logger,
	})
	if err := sys.All.InitializeAll(); err != nil {
		logger.Fatalf("Initialize units: %v", err)
	}

	// Transport-delivered events go to each unit's HandleSignal; supervisors
	// consume mirrored cross-component requests there.
	for _, unit := range sys.All.Units() {
		u := unit
		bus.Subscribe(u.Identity().ID, func(msg domain.Message) {
			report := u.HandleSignal(msg)
			if report.Status == domain.ReportFailed {
				logger.Printf("Signal to %s failed: %s", u.Identity().ID, strings.Join(report.Errors, "; "))
			}
		})
	}

	// Session registry for caller identity per MCP session.
	sessions := app.NewSessionRegistry()

	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Calling tool: %s", message.Params.Name)
		}
		if session := server.ClientSessionFromContext(ctx); session != nil {
			sessions.TouchSession(session.SessionID())
		}
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		sid := session.SessionID()
		if caller := sessions.Caller(sid); caller != "" {
			logger.Printf("Client session unregistered: %s (caller=%s)", sid, caller)
		} else {
			logger.Printf("Client session unregistered: %s", sid)
		}
		sessions.RemoveSession(sid)
	})

	mcpServer := server.NewMCPServer(
		"mcp-swarmwork",
		Version,
		server.WithHooks(hooks),
	)
	orchestrate.Register(mcpServer, sys, store, pol, sessions, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep running when daemonized (nohup, launchd, etc.)
	signal.Ignore(syscall.SIGHUP)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Cycle runner: each supervisor reads incoming requests, applies owned
	// directives, and the engine resumes due sequence runs.
	runner := app.NewCycleRunner(sys.CycleTargets(), logger,
		app.WithCycleInterval(time.Duration(pol.CycleIntervalSeconds())*time.Second),
	)
	go runner.Start(ctx)

	// Notifier pokes the runner when another process writes to the store.
	notifier := app.NewNotifier(pol.SignalFilePath(), runner, logger)
	go notifier.Start(ctx)

	logger.Println("Stdio ready")
	stdioSrv := server.NewStdioServer(mcpServer)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Printf("Stdio server stopped: %v", err)
	}

	cancel()
	notifier.Stop()
	runner.Stop()
	bus.Close()

	if c, ok := baseStore.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logger.Printf("Warning: close shared store: %v", err)
		}
	}
	logger.Println("Server stopped")
}

// draftGenerator is the default content generator: it echoes the task back as
// a draft. Real deployments plug in an external generation collaborator.
func draftGenerator(unitID string, payload map[string]any) (map[string]any, error) {
	task, _ := payload["task"].(string)
	if task == "" {
		return nil, fmt.Errorf("payload has no task")
	}
	return map[string]any{
		"unit":  unitID,
		"draft": fmt.Sprintf("[%s] %s", unitID, task),
	}, nil
}

// structuralReview is the default quality gate: a completed report must carry
// result data.
func structuralReview(report domain.Report) domain.ReviewResult {
	if len(report.Data) == 0 {
		return domain.ReviewResult{
			Approved: false,
			Feedback: []string{"report carries no result data"},
			Severity: domain.SeverityMajor,
		}
	}
	return domain.ReviewResult{Approved: true}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// When stderr is redirected (daemon mode via nohup), logs go only to the file
// to avoid duplicate lines.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, "[mcp-swarm] Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "[mcp-swarm] Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), "[mcp-swarm] ", log.LstdFlags|log.Lshortfile)
}

// loadConfig loads policy configuration from SWARMWORK_CONFIG or defaults.
func loadConfig(logger *log.Logger) *policy.Config {
	cfg := policy.DefaultConfig()
	if configPath := os.Getenv("SWARMWORK_CONFIG"); configPath != "" {
		var err error
		cfg, err = policy.LoadConfig(configPath)
		if err != nil {
			logger.Printf("Warning: failed to load config %s: %v, using defaults", configPath, err)
			cfg = policy.DefaultConfig()
		}
	}
	return cfg
}

// runStatusCommand implements "mcp-swarmwork status": a quick snapshot of the
// shared store without starting the server.
func runStatusCommand() {
	logger := log.New(os.Stderr, "", 0)
	cfg := loadConfig(logger)
	pol := policy.New(cfg)

	store, err := repository.NewSharedStore(pol.StateFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if c, ok := store.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}()

	const reader = "status command"

	activeRuns := 0
	if entries, err := store.Query(reader, app.EntryFilter{Category: app.CategorySequenceRuns}); err == nil {
		for _, e := range entries {
			var run domain.SequenceRun
			if e.Decode(&run) == nil && !run.Status.Terminal() {
				activeRuns++
			}
		}
	}

	pendingDirectives := 0
	if entries, err := store.Query(reader, app.EntryFilter{Category: app.CategoryDirectives}); err == nil {
		for _, e := range entries {
			var d domain.MutationDirective
			if e.Decode(&d) == nil && !d.Processed {
				pendingDirectives++
			}
		}
	}

	openRequests := 0
	if entries, err := store.Query(reader, app.EntryFilter{Category: app.CategoryRequests}); err == nil {
		for _, e := range entries {
			var r domain.CrossComponentRequest
			if e.Decode(&r) == nil && !r.Responded {
				openRequests++
			}
		}
	}

	escalations := 0
	if entries, err := store.Query(reader, app.EntryFilter{Category: app.CategoryEscalations}); err == nil {
		escalations = len(entries)
	}

	fmt.Printf("state=%s\n", pol.StateFile())
	fmt.Printf("active_runs=%d pending_directives=%d open_requests=%d escalations=%d\n",
		activeRuns, pendingDirectives, openRequests, escalations)
}
