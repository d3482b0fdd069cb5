package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/model"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
	"github.com/capitalize-ai/knowledge-chat/pkg/metrics"
)

// DefaultKey is the slot key holding the conversation list.
const DefaultKey = "conversations"

const defaultWriteTimeout = 10 * time.Second

// Adapter loads the conversation list once and writes it back after every
// change. Writes are asynchronous; a single writer goroutine applies the
// most recent snapshot so the slot always converges on the latest state.
type Adapter struct {
	slot         Slot
	key          string
	logger       *logger.Logger
	writeTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	latest  []model.Conversation
	queued  uint64
	settled uint64
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithKey overrides the slot key.
func WithKey(key string) AdapterOption {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithWriteTimeout bounds a single slot write.
func WithWriteTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.writeTimeout = d
		}
	}
}

// NewAdapter creates an adapter over slot and starts its writer.
func NewAdapter(slot Slot, log *logger.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		slot:         slot,
		key:          DefaultKey,
		logger:       log.Named("persist").With(zap.String("backend", slot.Name())),
		writeTimeout: defaultWriteTimeout,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cond = sync.NewCond(&a.mu)

	go a.run()

	return a
}

// Load reads the conversation list. A missing, unreadable or malformed slot
// yields an empty list; errors are logged, never returned.
func (a *Adapter) Load(ctx context.Context) []model.Conversation {
	data, err := a.slot.Get(ctx, a.key)
	if errors.Is(err, ErrSlotEmpty) {
		metrics.PersistenceLoadsTotal.WithLabelValues("empty").Inc()
		return []model.Conversation{}
	}
	if err != nil {
		a.logger.Warn("failed to read slot, starting empty", zap.Error(err))
		metrics.PersistenceLoadsTotal.WithLabelValues("error").Inc()
		return []model.Conversation{}
	}

	convs, err := Decode(data)
	if err != nil {
		a.logger.Warn("discarding malformed slot content", zap.Error(err))
		metrics.PersistenceLoadsTotal.WithLabelValues("corrupt").Inc()
		return []model.Conversation{}
	}

	metrics.PersistenceLoadsTotal.WithLabelValues("ok").Inc()
	a.logger.Info("conversations loaded", zap.Int("count", len(convs)))
	return convs
}

// Save queues convs to be written and returns immediately. The adapter takes
// ownership of convs. Saves after Close are dropped.
func (a *Adapter) Save(convs []model.Conversation) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.latest = convs
	a.queued++
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot queued before the call has been
// written or has failed.
func (a *Adapter) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.queued
	for a.settled < target {
		a.cond.Wait()
	}
}

// Close writes any pending snapshot, stops the writer and closes the slot.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	<-a.done

	return a.slot.Close()
}

func (a *Adapter) run() {
	defer close(a.done)

	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *Adapter) drain() {
	for {
		a.mu.Lock()
		if a.settled == a.queued {
			a.mu.Unlock()
			return
		}
		snapshot := a.latest
		target := a.queued
		a.mu.Unlock()

		a.write(snapshot)

		a.mu.Lock()
		a.settled = target
		a.cond.Broadcast()
		a.mu.Unlock()
	}
}

func (a *Adapter) write(convs []model.Conversation) {
	data, err := Encode(convs)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		err = a.slot.Put(ctx, a.key, data)
		cancel()
	}

	metrics.RecordWrite(a.slot.Name(), err)
	if err != nil {
		a.logger.Warn("failed to write slot", zap.Error(err))
		return
	}
	a.logger.Debug("slot written", zap.Int("conversations", len(convs)), zap.Int("bytes", len(data)))
}

// Encode serializes a conversation list into the slot format.
func Encode(convs []model.Conversation) ([]byte, error) {
	if convs == nil {
		convs = []model.Conversation{}
	}
	data, err := json.Marshal(convs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversations: %w", err)
	}
	return data, nil
}

// Decode parses slot content, rejecting anything that is not a list of
// well-formed conversations.
func Decode(data []byte) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversations: %w", err)
	}
	if convs == nil {
		return nil, errors.New("slot does not hold a list")
	}
	for i, c := range convs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("conversation %d: %w", i, err)
		}
	}
	return convs, nil
}
