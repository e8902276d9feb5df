package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// tagUnresponded marks request entries awaiting a response.
const tagUnresponded = "unresponded"

// payloadRequest is the message payload key carrying a mirrored request.
const payloadRequest = "cross_component_request"

func urgencyPriority(u domain.Urgency) int {
	switch u {
	case domain.UrgencyCritical:
		return 10
	case domain.UrgencyHigh:
		return 7
	case domain.UrgencyLow:
		return 1
	default:
		return 5
	}
}

// RequestFromSupervisor sends a cross-component request to another supervisor
// via the transport and mirrors it into the shared store. The store mirror is
// the delivery path guaranteed not to drop the request: transport failure is
// logged, not fatal; a store-write failure fails the call.
func (s *Supervisor) RequestFromSupervisor(req domain.CrossComponentRequest) (string, error) {
	if req.ToSupervisor == "" {
		return "", fmt.Errorf("request has no target supervisor")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.FromSupervisor = s.Identity().ID
	if req.Urgency == "" {
		req.Urgency = domain.UrgencyNormal
	}
	req.CreatedAt = time.Now()

	msg := NewMessage(domain.MessageCommand, s.Identity().ID, req.ToSupervisor, map[string]any{payloadRequest: req})
	msg.Priority = urgencyPriority(req.Urgency)
	msg.RequiresResponse = true
	if s.transport != nil {
		if err := s.transport.Send(msg); err != nil {
			s.Logger().Printf("Requests: transport send to %s failed (store mirror will carry it): %v", req.ToSupervisor, err)
		}
	}

	err := s.store.Write(CategoryRequests, req.ID, req, s.Identity().ID, WriteOptions{
		Priority: urgencyPriority(req.Urgency),
		Tags:     []string{req.ToSupervisor, req.RequestType, tagUnresponded},
	})
	if err != nil {
		return "", fmt.Errorf("mirror request to store: %w", err)
	}
	return req.ID, nil
}

// ReadIncomingRequests queries the store for unresponded requests addressed
// to this supervisor and loads them into the local pending queue. Called at
// the start of each operating cycle; it is the consumption path that survives
// transport unavailability.
func (s *Supervisor) ReadIncomingRequests() ([]domain.CrossComponentRequest, error) {
	entries, err := s.store.Query(s.Identity().ID, EntryFilter{Category: CategoryRequests, SortBy: "priority"})
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]bool, len(s.pending))
	for _, p := range s.pending {
		known[p.ID] = true
	}

	var loaded []domain.CrossComponentRequest
	for _, entry := range entries {
		var req domain.CrossComponentRequest
		if err := entry.Decode(&req); err != nil {
			s.Logger().Printf("Requests: skipping malformed request %s: %v", entry.Key, err)
			continue
		}
		if req.Responded || req.ToSupervisor != s.Identity().ID || known[req.ID] {
			continue
		}
		known[req.ID] = true
		s.pending = append(s.pending, req)
		loaded = append(loaded, req)
	}
	return loaded, nil
}

// PendingRequests returns a copy of the local pending queue.
func (s *Supervisor) PendingRequests() []domain.CrossComponentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CrossComponentRequest, len(s.pending))
	copy(out, s.pending)
	return out
}

// MarkRequestResponded durably marks a request answered and drops it from the
// pending queue. Marked requests are excluded from future cycles.
func (s *Supervisor) MarkRequestResponded(requestID string) error {
	entry, err := s.store.Read(CategoryRequests, requestID, s.Identity().ID)
	if err != nil {
		return fmt.Errorf("read request %s: %w", requestID, err)
	}
	if entry == nil {
		return fmt.Errorf("unknown request %s", requestID)
	}
	var req domain.CrossComponentRequest
	if err := entry.Decode(&req); err != nil {
		return fmt.Errorf("decode request %s: %w", requestID, err)
	}
	req.Responded = true
	if err := s.store.Write(CategoryRequests, req.ID, req, s.Identity().ID, WriteOptions{
		Priority: entry.Priority,
		Tags:     []string{req.ToSupervisor, req.RequestType},
	}); err != nil {
		return fmt.Errorf("mark request %s responded: %w", requestID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.ID == requestID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

// HandleSignal consumes transport-delivered cross-component requests by
// enqueueing them locally. The durable copy in the store remains the source
// of truth; the next cycle dedupes by request id. Other events are
// acknowledged.
func (s *Supervisor) HandleSignal(evt domain.Message) domain.Report {
	raw, ok := evt.Payload[payloadRequest]
	if !ok {
		return s.BaseUnit.HandleSignal(evt)
	}
	req, ok := raw.(domain.CrossComponentRequest)
	if !ok {
		return domain.FailedReport(evt.ID, "malformed cross-component request payload")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.ID == req.ID {
			return domain.CompletedReport(evt.ID, map[string]any{"request_id": req.ID, "duplicate": true})
		}
	}
	s.pending = append(s.pending, req)
	return domain.CompletedReport(evt.ID, map[string]any{"request_id": req.ID})
}

// RunCycle is one operating cycle: load incoming requests, then apply owned
// mutation directives.
func (s *Supervisor) RunCycle() error {
	if _, err := s.ReadIncomingRequests(); err != nil {
		return err
	}
	if _, err := s.ReadAndApplyMutations(); err != nil {
		return err
	}
	return nil
}
