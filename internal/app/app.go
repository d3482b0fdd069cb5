// Package app assembles the chat core from configuration. Both binaries
// share it so they read and write the same durable state.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/knowledge-chat/internal/answer"
	"github.com/capitalize-ai/knowledge-chat/internal/config"
	"github.com/capitalize-ai/knowledge-chat/internal/controller"
	"github.com/capitalize-ai/knowledge-chat/internal/llm"
	natsclient "github.com/capitalize-ai/knowledge-chat/internal/nats"
	"github.com/capitalize-ai/knowledge-chat/internal/persist"
	"github.com/capitalize-ai/knowledge-chat/internal/store"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

// Runtime is a hydrated store with its controller and persistence.
type Runtime struct {
	Store      *store.Store
	Adapter    *persist.Adapter
	Controller *controller.Controller
	Provider   answer.Provider

	logger *logger.Logger
	nats   *natsclient.Client
}

// Build opens the configured slot, hydrates the store from it and wires
// the controller. Hooks in extra run after persistence and before event
// publishing. A nil log selects the global logger.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, extra ...controller.Hook) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Global()
	}

	rt := &Runtime{logger: log}

	if cfg.StoreBackend == config.BackendNATS || cfg.NATSEventsEnabled {
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return nil, err
		}
		rt.nats = client
	}

	slot, err := rt.openSlot(ctx, cfg)
	if err != nil {
		rt.closeNATS()
		return nil, err
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		_ = slot.Close()
		rt.closeNATS()
		return nil, err
	}
	rt.Provider = provider

	rt.Adapter = persist.NewAdapter(slot, log, persist.WithKey(cfg.StoreKey))
	rt.Store = store.New()
	rt.Store.Hydrate(rt.Adapter.Load(ctx))

	opts := []controller.Option{
		controller.WithAnswerTimeout(cfg.AnswerTimeout),
		controller.WithHook(controller.PersistHook(rt.Adapter)),
	}
	for _, h := range extra {
		opts = append(opts, controller.WithHook(h))
	}

	if cfg.NATSEventsEnabled {
		publisher := natsclient.NewEventPublisher(rt.nats, log)
		if err := publisher.EnsureStream(ctx); err != nil {
			_ = rt.Adapter.Close()
			rt.closeNATS()
			return nil, err
		}
		opts = append(opts, controller.WithHook(controller.EventHook(publisher)))
	}

	rt.Controller = controller.New(rt.Store, provider, log, opts...)

	log.Info("chat core ready",
		zap.String("store_backend", slot.Name()),
		zap.String("answer_provider", provider.Name()),
		zap.Int("conversations", rt.Store.Len()),
		zap.Bool("events", cfg.NATSEventsEnabled),
	)

	return rt, nil
}

func (rt *Runtime) openSlot(ctx context.Context, cfg *config.Config) (persist.Slot, error) {
	switch cfg.StoreBackend {
	case config.BackendBolt:
		return persist.OpenBolt(cfg.StorePath)
	case config.BackendPebble:
		return persist.OpenPebble(cfg.StorePath)
	case config.BackendNATS:
		return natsclient.OpenKV(ctx, rt.nats, cfg.NATSKVBucket)
	case config.BackendMemory:
		return persist.NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewProvider builds the configured answer provider, instrumented.
func NewProvider(cfg *config.Config) (answer.Provider, error) {
	var provider answer.Provider

	switch cfg.AnswerProvider {
	case config.ProviderMock:
		provider = answer.NewMockProvider(cfg.AnswerLatency)
	case config.ProviderAnthropic, config.ProviderOpenAI:
		client, err := llm.NewClient(llm.Provider(cfg.AnswerProvider), cfg.APIKey())
		if err != nil {
			return nil, err
		}
		provider = answer.NewLLMProvider(client, cfg.LLMModel)
	default:
		return nil, fmt.Errorf("unknown answer provider %q", cfg.AnswerProvider)
	}

	return answer.Instrument(provider), nil
}

// Ready reports whether the durable backends are reachable.
func (rt *Runtime) Ready(context.Context) error {
	if rt.nats != nil && !rt.nats.IsConnected() {
		return errors.New("NATS not connected")
	}
	return nil
}

// Shutdown waits for outstanding answers, writes the final state and
// releases the backends. Answers still outstanding when ctx ends are
// abandoned.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if err := rt.Controller.Wait(ctx); err != nil {
		rt.logger.Warn("abandoning outstanding answers", zap.Error(err))
		errs = append(errs, err)
	}

	start := time.Now()
	if err := rt.Adapter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	rt.logger.Debug("store closed", zap.Duration("flush", time.Since(start)))

	rt.closeNATS()
	return errors.Join(errs...)
}

func (rt *Runtime) closeNATS() {
	if rt.nats != nil {
		rt.nats.Close()
	}
}
