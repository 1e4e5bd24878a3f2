package stack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/datastack/internal/config"
	"github.com/roach88/datastack/internal/ir"
	"github.com/roach88/datastack/internal/schema"
	"github.com/roach88/datastack/internal/store"
	"github.com/roach88/datastack/internal/store/boltstore"
)

// Stack owns the context hierarchy over one backend.
//
// The root context is bound to the backend; the foreground context's parent
// is the root. Both are created by New and live until Close.
type Stack struct {
	cfg         config.Config
	model       *ir.Model
	backend     store.Backend
	clock       *Clock
	ids         IDGenerator
	errorLogger ErrorLogger
	logger      *slog.Logger
	batchSize   int

	root       *Context
	foreground *Context

	mu       sync.Mutex
	children []*Context
	closed   bool
}

// Option configures a Stack.
type Option func(*options)

type options struct {
	backend        store.Backend
	model          *ir.Model
	ids            IDGenerator
	logger         *slog.Logger
	errorLogger    ErrorLogger
	errorLoggerSet bool
}

// WithBackend uses b instead of opening the configured store medium. The
// stack closes b on Close.
func WithBackend(b store.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithModel uses m instead of loading the configured model files.
func WithModel(m *ir.Model) Option {
	return func(o *options) { o.model = m }
}

// WithErrorLogger sets the error logger. nil disables error logging.
func WithErrorLogger(l ErrorLogger) Option {
	return func(o *options) {
		o.errorLogger = l
		o.errorLoggerSet = true
	}
}

// WithIDGenerator sets the object ID generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New validates cfg, loads the model, opens the store and builds the root
// and foreground contexts. cfg is copied. Every failure is a configuration
// error.
func New(cfg config.Config, opts ...Option) (*Stack, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, configurationError(fmt.Errorf("invalid config: %w", err))
	}

	model := o.model
	if model == nil {
		m, err := schema.Load(cfg.Model.Dir, cfg.Model.Name)
		if err != nil {
			return nil, configurationError(fmt.Errorf("load model: %w", err))
		}
		model = m
	} else if err := model.Validate(); err != nil {
		return nil, configurationError(fmt.Errorf("invalid model: %w", err))
	}

	backend := o.backend
	if backend == nil {
		b, err := openBackend(cfg, model)
		if err != nil {
			return nil, configurationError(fmt.Errorf("open %s store: %w", cfg.Store.Type, err))
		}
		backend = b
	}

	maxSeq, err := backend.MaxSeq(context.Background())
	if err != nil {
		if o.backend == nil {
			_ = backend.Close()
		}
		return nil, configurationError(fmt.Errorf("read max seq: %w", err))
	}

	s := &Stack{
		cfg:         cfg,
		model:       model,
		backend:     backend,
		clock:       NewClockAt(maxSeq),
		ids:         o.ids,
		errorLogger: o.errorLogger,
		logger:      o.logger,
		batchSize:   cfg.BatchSize(),
	}
	if s.ids == nil {
		s.ids = UUIDv7Generator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if !o.errorLoggerSet {
		s.errorLogger = DefaultErrorLogger()
	}

	s.root = newContext(s, "root", nil, PrivateQueue)
	s.foreground = newContext(s, "foreground", s.root, ForegroundQueue)

	s.logger.Debug("stack ready",
		"model", model.Name,
		"store", cfg.Store.Name,
		"medium", cfg.Store.Type,
		"max_seq", maxSeq)
	return s, nil
}

// MustNew is New that panics on error.
func MustNew(cfg config.Config, opts ...Option) *Stack {
	s, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func openBackend(cfg config.Config, model *ir.Model) (store.Backend, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		return store.OpenMemory(model)
	case config.StoreBinary:
		return boltstore.Open(cfg.StorePath(), model)
	default:
		return store.Open(cfg.StorePath(), model)
	}
}

// Root returns the context bound to the backend.
func (s *Stack) Root() *Context { return s.root }

// Foreground returns the application-facing context. Its parent is Root.
func (s *Stack) Foreground() *Context { return s.foreground }

// Model returns the loaded model.
func (s *Stack) Model() *ir.Model { return s.model }

// Config returns a copy of the stack's configuration.
func (s *Stack) Config() config.Config { return s.cfg.Clone() }

// BatchSize returns the batch size hint applied by FetchMany and DeleteAll.
func (s *Stack) BatchSize() int { return s.batchSize }

// NewChildContext returns a new private-queue context whose parent is
// parent. Saving it promotes its changes into parent.
func (s *Stack) NewChildContext(parent *Context) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := newContext(s, fmt.Sprintf("child-%d", len(s.children)+1), parent, PrivateQueue)
	s.children = append(s.children, c)
	return c
}

// Close drains and stops every context queue, children first, then closes
// the backend. Unsaved changes are discarded. It must not be called from
// work running on one of the stack's queues.
func (s *Stack) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	children := s.children
	s.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].queue.Close()
	}
	s.foreground.queue.Close()
	s.root.queue.Close()

	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}
