package surrealrevision

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealrevision/pkg/logger"
	"github.com/surrealdb/surrealrevision/pkg/store"
)

var errNoRegistry = errors.New("connection registry is required")

type HookOption func(*Hook)

// WithLogger sets the logger the hook reports captures and failures to.
// The default logger writes info and above to stdout.
func WithLogger(l zerolog.Logger) HookOption {
	return func(h *Hook) {
		h.log = l
	}
}

// WithRecorderOptions passes opts to every recorder the hook creates.
func WithRecorderOptions(opts ...Option) HookOption {
	return func(h *Hook) {
		h.recorderOpts = append(h.recorderOpts, opts...)
	}
}

// Hook is the Capturer a host update pipeline registers.
//
// For every update it picks the model's binding, resolves the binding's
// connection in the registry and its collection on that connection, and
// hands the event to the model's Recorder. Errors are logged and returned
// unchanged so the pipeline can decide whether the update fails.
type Hook struct {
	registry     *store.Registry
	bindings     *Bindings
	recorders    map[string]*Recorder
	fallback     *Recorder
	recorderOpts []Option
	log          zerolog.Logger
}

var _ Capturer = (*Hook)(nil)

// NewHook creates a Hook. A nil b means [NewBindings].
func NewHook(reg *store.Registry, b *Bindings, opts ...HookOption) (*Hook, error) {
	if reg == nil {
		return nil, &ConfigurationError{Err: errNoRegistry}
	}
	if b == nil {
		b = NewBindings()
	}

	h := &Hook{
		registry:  reg,
		bindings:  b,
		recorders: make(map[string]*Recorder, len(b.Models)),
		log:       defaultLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	def := b.ConfigFor("")
	fallback, err := NewRecorder(&def, h.recorderOpts...)
	if err != nil {
		return nil, err
	}
	h.fallback = fallback

	for model := range b.Models {
		cfg := b.ConfigFor(model)
		rec, err := NewRecorder(&cfg, h.recorderOpts...)
		if err != nil {
			var cerr *ConfigurationError
			if errors.As(err, &cerr) {
				cerr.Model = model
			}
			return nil, err
		}
		h.recorders[model] = rec
	}
	return h, nil
}

// AfterUpdate captures a revision of ev. When ev.User is nil the acting
// user is taken from ctx, see [WithUser].
func (h *Hook) AfterUpdate(ctx context.Context, ev UpdateEvent) error {
	rec := h.recorderFor(ev.Model)
	cfg := rec.Config()

	if ev.User == nil {
		if user, ok := UserFromContext(ctx); ok {
			ev.User = user
		}
	}

	log := h.log.With().
		Str("model", ev.Model).
		Str("connection", cfg.Connection).
		Str("collection", cfg.Collection).
		Logger()

	coll, err := h.collection(ev.Model, cfg)
	if err != nil {
		log.Error().Err(err).Msg("revision collection unavailable")
		return err
	}

	if err := rec.CaptureRevision(ctx, coll, ev); err != nil {
		log.Error().Err(err).Interface("owner_id", ev.OwnerID).Msg("revision capture failed")
		return err
	}

	log.Debug().Interface("owner_id", ev.OwnerID).Msg("revision captured")
	return nil
}

// Handle captures a revision for updates and ignores creates and deletes.
func (h *Hook) Handle(ctx context.Context, op Operation, ev UpdateEvent) error {
	if op != OperationUpdate {
		return nil
	}
	return h.AfterUpdate(ctx, ev)
}

func defaultLogger() zerolog.Logger {
	logData, err := logger.New().With("component", "revision").Make()
	if err != nil {
		return zerolog.Nop()
	}
	return logData.Logger
}

func (h *Hook) recorderFor(model string) *Recorder {
	if rec, ok := h.recorders[model]; ok {
		return rec
	}
	return h.fallback
}

func (h *Hook) collection(model string, cfg Config) (store.Collection, error) {
	conn, err := h.registry.Resolve(cfg.Connection)
	if err != nil {
		return nil, &ConfigurationError{Model: model, Connection: cfg.Connection, Collection: cfg.Collection, Err: err}
	}

	coll, err := conn.Collection(cfg.Collection)
	if err != nil {
		return nil, &ConfigurationError{Model: model, Connection: cfg.Connection, Collection: cfg.Collection, Err: err}
	}
	return coll, nil
}
