package interaction

import (
	"math"

	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/viewport"
)

// Mode is the exclusive activity the machine is in.
type Mode string

const (
	ModeIdle                         Mode = "idle"
	ModeDraggingNode                 Mode = "dragging-node"
	ModeDraggingProperty             Mode = "dragging-property"
	ModeDraggingRelationship         Mode = "dragging-relationship"
	ModeDraggingRelationshipProperty Mode = "dragging-relationship-property"
	ModeDraggingCluster              Mode = "dragging-cluster"
	ModeDraggingAnnotation           Mode = "dragging-annotation"
	ModeDraggingImage                Mode = "dragging-image"
	ModeResizingImage                Mode = "resizing-image"
	ModePanning                      Mode = "panning"
	ModeLinking                      Mode = "linking"
	ModeMultiSelecting               Mode = "multi-selecting"
	ModeEditing                      Mode = "editing"
)

// Model is the read-only view of the diagram the machine needs. Lookups
// return false for entities that do not exist or are not placed yet.
type Model interface {
	NodePosition(id string) (geometry.Point, bool)
	PropertyOffset(id string) (geometry.Point, bool)
	RelationshipMidpoint(id string) (geometry.Point, bool)
	RelationshipPropertyOffset(id string) (geometry.Point, bool)
	ClusterMembers(id string) []string
	AnnotationPosition(id string) (geometry.Point, bool)
	ImageRect(id string) (geometry.Rect, bool)
	// Text returns the editable text of an entity and whether it is multiline.
	Text(s Selection) (text string, multiline bool, ok bool)
}

// Options tunes the machine. Zero fields take the defaults.
type Options struct {
	MinImageSize       float64 // default 20
	DefaultClusterName string  // default "Nhóm"
}

func (o Options) withDefaults() Options {
	if o.MinImageSize <= 0 {
		o.MinImageSize = 20
	}
	if o.DefaultClusterName == "" {
		o.DefaultClusterName = "Nhóm"
	}
	return o
}

// EditState is the inline editor's content.
type EditState struct {
	Target    Selection
	Draft     string
	Original  string
	Multiline bool
}

type drag struct {
	start   geometry.Point
	target  string
	nodes   map[string]geometry.Point
	origin  geometry.Point
	size    geometry.Size
	screen  geometry.Point
	touched bool
}

// Machine is single-threaded; feed it from one goroutine.
type Machine struct {
	model Model
	sink  func(Mutation)
	opts  Options

	mode      Mode
	selection Selection
	hover     Selection
	multi     []string
	linkFrom  string
	popup     PopupKind
	edit      *EditState
	drag      *drag
	viewport  viewport.Viewport

	out  []Mutation
	subs []*Subscription
}

// New creates a machine. sink receives every mutation as it is emitted and
// may be nil.
func New(model Model, vp viewport.Viewport, sink func(Mutation), opts Options) *Machine {
	return &Machine{
		model:    model,
		sink:     sink,
		opts:     opts.withDefaults(),
		mode:     ModeIdle,
		viewport: vp,
	}
}

// Attach subscribes the machine to every topic on bus, including keyboard
// events that arrive regardless of focus.
func (m *Machine) Attach(bus *Bus) {
	for _, t := range []Topic{TopicPointer, TopicKeyboard, TopicWheel, TopicTouch, TopicResize, TopicAction} {
		m.subs = append(m.subs, bus.Subscribe(t, func(e Event) { m.Handle(e) }))
	}
}

// Close removes every subscription made by Attach.
func (m *Machine) Close() {
	for _, s := range m.subs {
		s.Remove()
	}
	m.subs = nil
}

// Viewport returns the current pan/zoom state.
func (m *Machine) Viewport() viewport.Viewport {
	return m.viewport
}

// SetViewport replaces the pan/zoom state.
func (m *Machine) SetViewport(v viewport.Viewport) {
	m.viewport = v
}

// Selection returns the selected entity or nil.
func (m *Machine) Selection() Selection {
	return m.selection
}

// MultiSelection returns the multi-selected node ids in selection order.
func (m *Machine) MultiSelection() []string {
	return append([]string(nil), m.multi...)
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	if m.mode == ModeIdle && len(m.multi) > 0 {
		return ModeMultiSelecting
	}
	return m.mode
}

// Handle processes one event and returns the mutations it emitted. Invalid
// or stale references degrade to no-ops.
func (m *Machine) Handle(e Event) []Mutation {
	m.out = nil
	switch ev := e.(type) {
	case PointerDown:
		m.pointerDown(ev)
	case PointerMove:
		m.pointerMove(ev)
	case PointerUp:
		m.pointerUp()
	case Wheel:
		m.viewport = m.viewport.Zoom(ev.Position, ev.DeltaY)
	case Resize:
		m.viewport = m.viewport.Resize(ev.Pixels)
	case KeyDown:
		m.keyDown(ev)
	case KeyUp:
		m.keyUp(ev)
	case TwoFingerTouch:
		m.twoFingers(ev)
	default:
		m.action(e)
	}
	return m.out
}

func (m *Machine) emit(mu Mutation) {
	m.out = append(m.out, mu)
	if m.sink != nil {
		m.sink(mu)
	}
}

func (m *Machine) pointerDown(ev PointerDown) {
	pos := m.viewport.ToModel(ev.Position)

	if m.edit != nil {
		m.cancelEdit()
	}
	m.endDrag()

	if ev.Target.Background() {
		switch {
		case m.popup != PopupNone:
			// Only the floating editor closes.
			m.popup = PopupNone
		case m.mode == ModeLinking:
			m.cancelLinking()
		default:
			m.selection = nil
			m.multi = nil
			m.mode = ModePanning
			m.drag = &drag{screen: ev.Position}
		}
		return
	}

	sel := ev.Target.Selection
	if link, ok := sel.(LinkLineSelection); ok {
		sel = RelationshipSelection(link)
	}
	node, isNode := sel.(NodeSelection)

	if ev.Mods.Platform && isNode {
		switch {
		case m.mode != ModeLinking:
			m.popup = PopupNone
			m.mode = ModeLinking
			m.linkFrom = node.ID
		case node.ID == m.linkFrom:
			m.cancelLinking()
		default:
			m.emit(CreateRelationship{Source: m.linkFrom, Target: node.ID})
			m.cancelLinking()
		}
		return
	}
	if m.mode == ModeLinking {
		m.cancelLinking()
	}

	if ev.Mods.Shift && isNode {
		m.toggleMulti(node.ID)
		m.popup = PopupNone
		return
	}

	m.selectOnly(sel)
	starter := &dragStarter{m: m, pos: pos, handle: ev.Target.Handle}
	sel.Accept(starter)
}

func (m *Machine) toggleMulti(id string) {
	for i, v := range m.multi {
		if v == id {
			m.multi = append(m.multi[:i:i], m.multi[i+1:]...)
			return
		}
	}
	m.multi = append(m.multi, id)
}

func (m *Machine) selectOnly(sel Selection) {
	m.selection = sel
	m.multi = nil
	m.popup = PopupNone
}

// dragStarter begins the drag that matches the pressed entity kind.
type dragStarter struct {
	m      *Machine
	pos    geometry.Point
	handle Handle
}

func (d *dragStarter) begin(mode Mode, dr drag) {
	dr.start = d.pos
	d.m.mode = mode
	d.m.drag = &dr
}

func (d *dragStarter) VisitNode(s NodeSelection) {
	p, ok := d.m.model.NodePosition(s.ID)
	if !ok {
		return
	}
	d.begin(ModeDraggingNode, drag{target: s.ID, nodes: map[string]geometry.Point{s.ID: p}})
}

func (d *dragStarter) VisitProperty(s PropertySelection) {
	off, ok := d.m.model.PropertyOffset(s.ID)
	if !ok {
		return
	}
	d.begin(ModeDraggingProperty, drag{target: s.ID, origin: off})
}

func (d *dragStarter) VisitRelationship(s RelationshipSelection) {
	mid, ok := d.m.model.RelationshipMidpoint(s.ID)
	if !ok {
		return
	}
	d.begin(ModeDraggingRelationship, drag{target: s.ID, origin: mid})
}

func (d *dragStarter) VisitRelationshipProperty(s RelationshipPropertySelection) {
	off, ok := d.m.model.RelationshipPropertyOffset(s.ID)
	if !ok {
		return
	}
	d.begin(ModeDraggingRelationshipProperty, drag{target: s.ID, origin: off})
}

func (d *dragStarter) VisitImage(s ImageSelection) {
	r, ok := d.m.model.ImageRect(s.ID)
	if !ok {
		return
	}
	dr := drag{target: s.ID, origin: geometry.Pt(r.X, r.Y), size: geometry.Size{Width: r.Width, Height: r.Height}}
	if d.handle == HandleResize {
		d.begin(ModeResizingImage, dr)
		return
	}
	d.begin(ModeDraggingImage, dr)
}

func (d *dragStarter) VisitCluster(s ClusterSelection) {
	nodes := make(map[string]geometry.Point)
	for _, id := range d.m.model.ClusterMembers(s.ID) {
		if p, ok := d.m.model.NodePosition(id); ok {
			nodes[id] = p
		}
	}
	if len(nodes) == 0 {
		return
	}
	d.begin(ModeDraggingCluster, drag{target: s.ID, nodes: nodes})
}

func (d *dragStarter) VisitAnnotation(s AnnotationSelection) {
	p, ok := d.m.model.AnnotationPosition(s.ID)
	if !ok {
		return
	}
	d.begin(ModeDraggingAnnotation, drag{target: s.ID, origin: p})
}

func (d *dragStarter) VisitLinkLine(s LinkLineSelection) {
	d.VisitRelationship(RelationshipSelection(s))
}

func (m *Machine) pointerMove(ev PointerMove) {
	if m.mode == ModePanning && m.drag != nil {
		m.viewport = m.viewport.Pan(ev.Position.Sub(m.drag.screen))
		m.drag.screen = ev.Position
		return
	}
	if m.drag == nil {
		m.updateHover(ev.Target)
		return
	}

	pos := m.viewport.ToModel(ev.Position)
	delta := pos.Sub(m.drag.start)
	if !m.drag.touched {
		m.drag.touched = true
		m.emit(Checkpoint{})
	}

	d := m.drag
	switch m.mode {
	case ModeDraggingNode, ModeDraggingCluster:
		moved := make(map[string]geometry.Point, len(d.nodes))
		for id, p := range d.nodes {
			moved[id] = p.Add(delta)
		}
		m.emit(MoveNodes{Positions: moved})
	case ModeDraggingProperty:
		m.emit(MoveProperty{PropertyID: d.target, Offset: d.origin.Add(delta)})
	case ModeDraggingRelationshipProperty:
		if _, ok := m.model.RelationshipPropertyOffset(d.target); !ok {
			return
		}
		m.emit(MoveRelationshipProperty{PropertyID: d.target, Offset: d.origin.Add(delta)})
	case ModeDraggingRelationship:
		// Twice the distance from the midpoint puts the curve under the pointer.
		m.emit(BendRelationship{RelationshipID: d.target, Offset: pos.Sub(d.origin).Scale(2)})
	case ModeDraggingAnnotation:
		m.emit(MoveAnnotation{AnnotationID: d.target, Position: d.origin.Add(delta)})
	case ModeDraggingImage:
		m.emit(MoveImage{ImageID: d.target, Position: d.origin.Add(delta)})
	case ModeResizingImage:
		aspect := 1.0
		if d.size.Height > 0 {
			aspect = d.size.Width / d.size.Height
		}
		w := math.Max(m.opts.MinImageSize, d.size.Width+delta.X)
		m.emit(ResizeImage{ImageID: d.target, Width: w, Height: w / aspect})
	}
}

func (m *Machine) updateHover(t Target) {
	switch s := t.Selection.(type) {
	case RelationshipSelection:
		m.hover = LinkLineSelection(s)
	case LinkLineSelection:
		m.hover = s
	default:
		m.hover = nil
	}
}

func (m *Machine) pointerUp() {
	m.endDrag()
}

func (m *Machine) endDrag() {
	if m.drag == nil {
		return
	}
	m.drag = nil
	if m.mode != ModeLinking && m.mode != ModeEditing {
		m.mode = ModeIdle
	}
}

func (m *Machine) cancelLinking() {
	m.linkFrom = ""
	if m.mode == ModeLinking {
		m.mode = ModeIdle
	}
}

func (m *Machine) keyDown(ev KeyDown) {
	if m.edit != nil {
		switch {
		case ev.Key == KeyEnter && !m.edit.Multiline:
			m.commitEdit()
		case ev.Key == KeyEscape:
			m.cancelEdit()
		}
		return
	}

	switch ev.Key {
	case KeyEscape:
		m.cancelLinking()
		m.endDrag()
		m.popup = PopupNone
		m.multi = nil
	case KeyDelete, KeyBackspace:
		m.deleteSelection()
	case "z", "Z":
		if !ev.Mods.Platform {
			return
		}
		if ev.Mods.Shift {
			m.emit(Redo{})
		} else {
			m.emit(Undo{})
		}
	case "y", "Y":
		if ev.Mods.Platform {
			m.emit(Redo{})
		}
	}
}

// keyUp cancels linking when the platform modifier is released, whatever
// element had focus.
func (m *Machine) keyUp(ev KeyUp) {
	if (ev.Key == KeyControl || ev.Key == KeyMeta) && m.mode == ModeLinking {
		m.cancelLinking()
	}
}

func (m *Machine) twoFingers(ev TwoFingerTouch) {
	a, okA := ev.First.Selection.(NodeSelection)
	b, okB := ev.Second.Selection.(NodeSelection)
	if !okA || !okB || a.ID == b.ID {
		return
	}
	m.cancelLinking()
	m.emit(CreateRelationship{Source: a.ID, Target: b.ID})
}

func (m *Machine) deleteSelection() {
	if m.selection == nil {
		return
	}
	target := m.selection
	if link, ok := target.(LinkLineSelection); ok {
		target = RelationshipSelection(link)
	}
	m.emit(Delete{Target: target})
	m.selection = nil
	m.hover = nil
	m.popup = PopupNone
}

func (m *Machine) action(e Event) {
	switch a := e.(type) {
	case GroupAction:
		if len(m.multi) < 2 {
			return
		}
		name := a.Name
		if name == "" {
			name = m.opts.DefaultClusterName
		}
		m.emit(CreateCluster{Name: name, NodeIDs: m.MultiSelection()})
		m.multi = nil
	case UngroupAction:
		if c, ok := m.selection.(ClusterSelection); ok {
			m.emit(Ungroup{ClusterID: c.ID})
			m.selection = nil
		}
	case DuplicateAction:
		if n, ok := m.selection.(NodeSelection); ok {
			m.emit(DuplicateNode{NodeID: n.ID})
		}
	case DeleteAction:
		if m.edit == nil {
			m.deleteSelection()
		}
	case OpenPopupAction:
		m.openPopup(a.Popup)
	case ClosePopupAction:
		m.popup = PopupNone
	case SetColorAction:
		if m.selection != nil {
			m.emit(SetColor{Target: m.selection, Color: a.Color})
		}
		m.popup = PopupNone
	case SetLinkStyleAction:
		if id, ok := m.selectedRelationship(); ok && a.Style.Valid() {
			m.emit(SetLinkStyle{RelationshipID: id, Style: a.Style})
		}
		m.popup = PopupNone
	case SetArrowStyleAction:
		if id, ok := m.selectedRelationship(); ok && a.Style.Valid() {
			m.emit(SetArrowStyle{RelationshipID: id, Style: a.Style})
		}
		m.popup = PopupNone
	case BeginEditAction:
		m.beginEdit()
	case UpdateDraftAction:
		if m.edit != nil {
			m.edit.Draft = a.Text
		}
	case ConfirmEditAction:
		if m.edit != nil {
			m.commitEdit()
		}
	case CancelEditAction:
		m.cancelEdit()
	case SelectAction:
		m.endDrag()
		m.cancelLinking()
		m.selectOnly(a.Selection)
	case UndoAction:
		m.emit(Undo{})
	case RedoAction:
		m.emit(Redo{})
	}
}

func (m *Machine) selectedRelationship() (string, bool) {
	switch s := m.selection.(type) {
	case RelationshipSelection:
		return s.ID, true
	case LinkLineSelection:
		return s.ID, true
	}
	return "", false
}

func (m *Machine) openPopup(kind PopupKind) {
	if m.selection == nil || m.edit != nil {
		return
	}
	if kind == PopupLinkStyle {
		if _, ok := m.selectedRelationship(); !ok {
			return
		}
	}
	m.endDrag()
	m.popup = kind
}

func (m *Machine) beginEdit() {
	if m.selection == nil {
		return
	}
	text, multiline, ok := m.model.Text(m.selection)
	if !ok {
		return
	}
	m.endDrag()
	m.cancelLinking()
	m.popup = PopupNone
	m.edit = &EditState{Target: m.selection, Draft: text, Original: text, Multiline: multiline}
	m.mode = ModeEditing
}

func (m *Machine) commitEdit() {
	e := m.edit
	m.edit = nil
	m.mode = ModeIdle
	if e.Draft != e.Original {
		m.emit(Rename{Target: e.Target, Text: e.Draft})
	}
}

func (m *Machine) cancelEdit() {
	if m.edit == nil {
		return
	}
	m.edit = nil
	m.mode = ModeIdle
}

// State is a serialisable snapshot of the machine for rendering.
type State struct {
	Mode        Mode      `json:"mode"`
	Selection   *Ref      `json:"selection,omitempty"`
	Hover       *Ref      `json:"hover,omitempty"`
	MultiSelect []string  `json:"multiSelect,omitempty"`
	CanGroup    bool      `json:"canGroup"`
	LinkingFrom string    `json:"linkingFrom,omitempty"`
	Popup       PopupKind `json:"popup,omitempty"`
	Editing     *EditView `json:"editing,omitempty"`
}

// EditView is the inline editor as seen by a renderer.
type EditView struct {
	Target    Ref    `json:"target"`
	Draft     string `json:"draft"`
	Multiline bool   `json:"multiline"`
}

// State returns the current snapshot.
func (m *Machine) State() State {
	s := State{
		Mode:        m.Mode(),
		Selection:   RefOf(m.selection),
		Hover:       RefOf(m.hover),
		MultiSelect: m.MultiSelection(),
		CanGroup:    len(m.multi) >= 2,
		LinkingFrom: m.linkFrom,
		Popup:       m.popup,
	}
	if m.edit != nil {
		s.Editing = &EditView{Target: *RefOf(m.edit.Target), Draft: m.edit.Draft, Multiline: m.edit.Multiline}
	}
	return s
}
