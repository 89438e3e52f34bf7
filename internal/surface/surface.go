// Package surface composes layout, routing, viewport and interaction into an
// editable diagram that owns its document and layout.
package surface

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/history"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/layout"
	"brain2-canvas/internal/routing"
	"brain2-canvas/internal/viewport"
)

// Options configures a surface. Zero fields take package defaults.
type Options struct {
	Canvas          geometry.Size
	Layout          layout.Options
	Routing         routing.Options
	Viewport        viewport.Options
	Interaction     interaction.Options
	HistoryCapacity int
	// DuplicateOffset is where a duplicated node lands relative to its source.
	DuplicateOffset geometry.Point
	Rand            *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Canvas.Width <= 0 || o.Canvas.Height <= 0 {
		o.Canvas = geometry.Size{Width: 1200, Height: 800}
	}
	if o.DuplicateOffset == (geometry.Point{}) {
		o.DuplicateOffset = geometry.Pt(40, 40)
	}
	return o
}

// fitPadding frames content after a layout outgrew the canvas.
const fitPadding = 40

// Surface is single-threaded. Callers serialise access.
type Surface struct {
	doc     diagram.Document
	layout  diagram.Layout
	opts    Options
	engine  *layout.Engine
	router  *routing.Router
	machine *interaction.Machine
	history *history.History
	logger  *zap.Logger
}

// New lays out doc with the force simulation and returns a surface showing it.
func New(ctx context.Context, doc diagram.Document, opts Options, logger *zap.Logger) (*Surface, error) {
	s := newSurface(doc, opts, logger)
	if err := s.Relayout(ctx); err != nil {
		return nil, err
	}
	s.history.Clear()
	return s, nil
}

// Restore opens doc with a saved layout snapshot and skips the simulation.
// Nodes missing from the snapshot are scattered around the canvas centre.
func Restore(doc diagram.Document, saved diagram.Layout, opts Options, logger *zap.Logger) *Surface {
	s := newSurface(doc, opts, logger)
	s.layout = routing.Reconcile(doc, s.engine.Restore(saved, doc, s.opts.Canvas))
	return s
}

func newSurface(doc diagram.Document, opts Options, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	s := &Surface{
		doc:     doc,
		layout:  diagram.NewLayout(),
		opts:    opts,
		engine:  layout.NewEngine(opts.Layout, opts.Rand),
		router:  routing.NewRouter(opts.Routing),
		history: history.New(opts.HistoryCapacity),
		logger:  logger,
	}
	s.machine = interaction.New(modelView{s}, viewport.New(opts.Canvas, opts.Viewport), s.Apply, opts.Interaction)
	return s
}

// Relayout runs the force simulation over the whole document. The previous
// state is kept in history; property offsets survive.
func (s *Surface) Relayout(ctx context.Context) error {
	start := time.Now()
	l, err := s.engine.Layout(ctx, s.doc, s.opts.Canvas)
	if err != nil {
		s.logger.Warn("layout failed", zap.Int("nodes", len(s.doc.Nodes)), zap.Error(err))
		return err
	}
	s.record()
	l.PropertyOffsets = s.layout.PropertyOffsets
	l.RelationshipPropertyOffsets = s.layout.RelationshipPropertyOffsets
	s.layout = routing.Reconcile(s.doc, l)
	bodies, _ := layout.FromDocument(s.doc)
	if fitted := s.engine.Fit(bodies, s.opts.Canvas); fitted != s.opts.Canvas {
		s.FitToContent(fitPadding)
		s.logger.Debug("canvas grown for dense layout",
			zap.Float64("width", fitted.Width), zap.Float64("height", fitted.Height))
	}
	s.logger.Debug("layout computed",
		zap.Int("nodes", len(s.doc.Nodes)),
		zap.Int("relationships", len(s.doc.Relationships)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// RestoreLayout replaces positions and offsets with a saved snapshot.
func (s *Surface) RestoreLayout(saved diagram.Layout) {
	s.record()
	s.layout = routing.Reconcile(s.doc, s.engine.Restore(saved, s.doc, s.opts.Canvas))
}

// Document returns the current document.
func (s *Surface) Document() diagram.Document {
	return s.doc
}

// Layout returns a copy of the current layout snapshot.
func (s *Surface) Layout() diagram.Layout {
	return s.layout.Clone()
}

// Machine exposes the interaction state machine, e.g. to attach a bus.
func (s *Surface) Machine() *interaction.Machine {
	return s.machine
}

// Paths routes every relationship at the current positions.
func (s *Surface) Paths() []routing.Path {
	return s.router.Route(s.doc, s.layout)
}

// CanUndo and CanRedo report whether history has steps in that direction.
func (s *Surface) CanUndo() bool { return s.history.CanUndo() }
func (s *Surface) CanRedo() bool { return s.history.CanRedo() }

// Dispatch feeds one event to the machine and returns the mutations that were
// applied. Pointer events without a target are hit-tested first.
func (s *Surface) Dispatch(e interaction.Event) []interaction.Mutation {
	switch ev := e.(type) {
	case interaction.PointerDown:
		if ev.Target.Background() {
			ev.Target = s.HitTest(ev.Position)
		}
		e = ev
	case interaction.PointerMove:
		if ev.Target.Background() {
			ev.Target = s.HitTest(ev.Position)
		}
		e = ev
	}
	return s.machine.Handle(e)
}

func (s *Surface) entry() history.Entry {
	return history.Entry{Document: s.doc, Layout: s.layout}
}

func (s *Surface) record() {
	s.history.Record(s.entry())
}

func (s *Surface) restore(e history.Entry) {
	s.doc = e.Document
	s.layout = routing.Reconcile(e.Document, e.Layout)
}
