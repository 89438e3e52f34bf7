// Package diagrams hosts open diagrams. Each diagram is a surface held in
// the session store; the service owns the canonical document and layout and
// is the only writer.
package diagrams

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/export"
	"brain2-canvas/internal/generation"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	"brain2-canvas/internal/surface"
	"brain2-canvas/internal/validation"
)

// Service implements the diagram use cases.
type Service struct {
	store     repository.SessionStore
	generator generation.Generator
	metrics   *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger

	mu   sync.RWMutex
	opts surface.Options
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator enables Generate. Without one Generate reports the service
// as unavailable.
func WithGenerator(g generation.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithMetrics records layout, dispatch and mutation metrics.
func WithMetrics(c *observability.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a service storing sessions in store.
func NewService(store repository.SessionStore, opts surface.Options, logger *zap.Logger, options ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		opts:   opts,
		tracer: noop.NewTracerProvider().Tracer("diagrams"),
		logger: logger,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// SetOptions replaces the surface options used for diagrams opened from
// now on. Open diagrams keep theirs.
func (s *Service) SetOptions(opts surface.Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	s.logger.Info("surface options updated")
}

func (s *Service) options() surface.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Create opens a new diagram.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*View, error) {
	if err := validation.Get().Struct(cmd); err != nil {
		return nil, err
	}
	doc := diagram.New(cmd.Title)
	if cmd.Document != nil {
		doc = *cmd.Document
		if err := validation.Get().Struct(doc); err != nil {
			return nil, err
		}
		if err := doc.CheckUnique(); err != nil {
			return nil, err
		}
	}
	return s.open(ctx, doc, cmd.Layout)
}

// Generate asks the generation service for a diagram and opens it.
func (s *Service) Generate(ctx context.Context, cmd GenerateCommand) (*View, error) {
	if err := validation.Get().Struct(cmd); err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, apperrors.Unavailable(apperrors.CodeGenerationUnavailable, "generation is not configured").
			WithOperation("Generate").Build()
	}

	ctx, span := s.tracer.Start(ctx, "diagrams.Generate")
	defer span.End()

	start := time.Now()
	res, err := s.generator.Generate(ctx, generation.Request{Text: cmd.Text, Language: cmd.Language})
	if s.metrics != nil {
		s.metrics.RecordGeneration(time.Since(start), err)
	}
	if err != nil {
		return nil, traced(span, err)
	}
	doc, err := diagram.Ingest(res)
	if err != nil {
		return nil, traced(span, err)
	}
	return s.open(ctx, doc, nil)
}

// Import opens a diagram from a JSON snapshot.
func (s *Service) Import(ctx context.Context, data []byte) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "diagrams.Import", trace.WithAttributes(attribute.Int("bytes", len(data))))
	defer span.End()

	snap, err := export.DecodeSnapshot(data)
	if err != nil {
		return nil, traced(span, err)
	}
	return s.open(ctx, snap.Document, snap.Layout)
}

func (s *Service) open(ctx context.Context, doc diagram.Document, saved *diagram.Layout) (*View, error) {
	opts := s.options()
	var sf *surface.Surface
	if saved != nil {
		sf = surface.Restore(doc, *saved, opts, s.logger)
	} else {
		ctx, span := s.tracer.Start(ctx, "diagrams.Layout", trace.WithAttributes(attribute.Int("nodes", len(doc.Nodes))))
		start := time.Now()
		var err error
		sf, err = surface.New(ctx, doc, opts, s.logger)
		if s.metrics != nil {
			s.metrics.RecordLayout(time.Since(start), err)
		}
		if err != nil {
			traced(span, err)
			span.End()
			return nil, err
		}
		span.End()
	}

	id := uuid.NewString()
	if err := s.store.Save(ctx, repository.NewSession(id, sf)); err != nil {
		return nil, err
	}
	s.logger.Info("diagram opened",
		zap.String("diagram_id", id),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("relationships", len(doc.Relationships)),
		zap.Bool("restored", saved != nil))
	return &View{ID: id, Scene: sf.Scene()}, nil
}

func (s *Service) with(ctx context.Context, id string, fn func(*surface.Surface) error) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return sess.Do(fn)
}

// Get returns the diagram's document and layout.
func (s *Service) Get(ctx context.Context, id string) (diagram.Document, diagram.Layout, error) {
	var (
		doc diagram.Document
		l   diagram.Layout
	)
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		doc, l = sf.Document(), sf.Layout()
		return nil
	})
	return doc, l, err
}

// Export encodes the diagram as a JSON snapshot including its layout.
func (s *Service) Export(ctx context.Context, id string) ([]byte, error) {
	doc, l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return export.EncodeSnapshot(doc, &l)
}

// Scene returns what the diagram currently shows.
func (s *Service) Scene(ctx context.Context, id string) (surface.Scene, error) {
	var scene surface.Scene
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		scene = sf.Scene()
		return nil
	})
	return scene, err
}

// Dispatch feeds events to the diagram in order and reports the mutations
// they produced. A batch is applied whole or not at all: the context is
// checked once the session is held, never between events.
func (s *Service) Dispatch(ctx context.Context, id string, events []interaction.Event) (*DispatchResult, error) {
	res := &DispatchResult{Mutations: []string{}}
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		if err := ctx.Err(); err != nil {
			return apperrors.Timeout(apperrors.CodeRequestTimeout, "dispatch cancelled").
				WithCause(err).WithDetailsf("%d events not applied", len(events)).Build()
		}
		for _, e := range events {
			if s.metrics != nil {
				s.metrics.EventsDispatched.WithLabelValues(string(e.Topic())).Inc()
			}
			for _, m := range sf.Dispatch(e) {
				res.Mutations = append(res.Mutations, m.MutationName())
				if s.metrics != nil {
					s.metrics.MutationsApplied.WithLabelValues(m.MutationName()).Inc()
				}
			}
		}
		res.Scene = sf.Scene()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Undo steps the diagram back. The bool reports whether anything changed.
func (s *Service) Undo(ctx context.Context, id string) (surface.Scene, bool, error) {
	return s.step(ctx, id, (*surface.Surface).Undo)
}

// Redo steps the diagram forward.
func (s *Service) Redo(ctx context.Context, id string) (surface.Scene, bool, error) {
	return s.step(ctx, id, (*surface.Surface).Redo)
}

func (s *Service) step(ctx context.Context, id string, fn func(*surface.Surface) bool) (surface.Scene, bool, error) {
	var (
		scene   surface.Scene
		changed bool
	)
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		changed = fn(sf)
		scene = sf.Scene()
		return nil
	})
	return scene, changed, err
}

// Relayout runs the force simulation again over the whole diagram.
func (s *Service) Relayout(ctx context.Context, id string) (surface.Scene, error) {
	var scene surface.Scene
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		ctx, span := s.tracer.Start(ctx, "diagrams.Relayout")
		defer span.End()
		start := time.Now()
		err := sf.Relayout(ctx)
		if s.metrics != nil {
			s.metrics.RecordLayout(time.Since(start), err)
		}
		if err != nil {
			return traced(span, err)
		}
		scene = sf.Scene()
		return nil
	})
	return scene, err
}

// Layout returns the diagram's layout snapshot.
func (s *Service) Layout(ctx context.Context, id string) (diagram.Layout, error) {
	_, l, err := s.Get(ctx, id)
	return l, err
}

// RestoreLayout replaces the diagram's positions and offsets.
func (s *Service) RestoreLayout(ctx context.Context, id string, l diagram.Layout) (surface.Scene, error) {
	var scene surface.Scene
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		sf.RestoreLayout(l)
		scene = sf.Scene()
		return nil
	})
	return scene, err
}

// Merge appends another document to the diagram.
func (s *Service) Merge(ctx context.Context, id string, cmd MergeCommand) (*MergeView, error) {
	if err := validation.Get().Struct(cmd); err != nil {
		return nil, err
	}
	policy := cmd.Policy
	if policy == "" {
		policy = diagram.MergeRename
	}
	var view MergeView
	err := s.with(ctx, id, func(sf *surface.Surface) error {
		res, err := sf.Merge(cmd.Document, policy)
		if err != nil {
			return err
		}
		view = MergeView{NodeIDs: res.NodeIDs, Renamed: res.Renamed, Scene: sf.Scene()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Problems lists dangling references in the diagram.
func (s *Service) Problems(ctx context.Context, id string) ([]diagram.Problem, error) {
	doc, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Check(), nil
}

// Flowchart renders the diagram as flowchart text.
func (s *Service) Flowchart(ctx context.Context, id string) (string, error) {
	doc, _, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return export.Flowchart(doc), nil
}

// Delete closes the diagram.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("diagram closed", zap.String("diagram_id", id))
	return nil
}

func traced(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
