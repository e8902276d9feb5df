// Package transport implements in-process message delivery between units.
package transport

import (
	"fmt"
	"log"
	"sync"

	"github.com/jaakkos/swarmwork/internal/domain"
)

const subscriberBufSize = 64

// Broadcast is the recipient id that delivers to every subscriber.
const Broadcast = "all"

// Handler consumes a delivered message.
type Handler func(msg domain.Message)

// Bus is an in-process, recipient-addressed message bus implementing
// app.Transport. Delivery is asynchronous over buffered per-subscriber
// queues; a full queue drops the message with a warning, which is acceptable
// because everything that must survive is mirrored into the shared store by
// its sender.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan domain.Message
	handlers    map[string]Handler
	logger      *log.Logger
	wg          sync.WaitGroup
	closed      bool
}

// New creates a new Bus.
func New(logger *log.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]chan domain.Message),
		handlers:    make(map[string]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler for messages addressed to id. Each id has at
// most one subscriber; re-subscribing replaces the handler but keeps the
// queue. A dispatch goroutine per subscriber preserves per-recipient order.
func (b *Bus) Subscribe(id string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[id]; ok {
		b.handlers[id] = h
		return
	}
	ch := make(chan domain.Message, subscriberBufSize)
	b.subscribers[id] = ch
	b.handlers[id] = h
	b.wg.Add(1)
	go b.dispatch(id, ch)
}

func (b *Bus) dispatch(id string, ch <-chan domain.Message) {
	defer b.wg.Done()
	for msg := range ch {
		b.mu.RLock()
		h := b.handlers[id]
		b.mu.RUnlock()
		if h != nil {
			h(msg)
		}
	}
}

// Send delivers msg to the addressed subscriber, or to all subscribers when
// addressed to Broadcast. Unknown recipients are an error; full queues drop.
func (b *Bus) Send(msg domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus closed")
	}

	if msg.To == Broadcast {
		for id, ch := range b.subscribers {
			select {
			case ch <- msg:
			default:
				b.logger.Printf("Bus: queue full for %s, broadcast %s dropped", id, msg.ID)
			}
		}
		return nil
	}

	ch, ok := b.subscribers[msg.To]
	if !ok {
		return fmt.Errorf("no subscriber for %q", msg.To)
	}
	select {
	case ch <- msg:
		return nil
	default:
		b.logger.Printf("Bus: queue full for %s, message %s dropped", msg.To, msg.ID)
		return fmt.Errorf("queue full for %q", msg.To)
	}
}

// Close stops delivery and waits for in-flight dispatches to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
