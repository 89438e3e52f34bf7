package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/viewport"
)

type fakeModel struct {
	nodes       map[string]geometry.Point
	props       map[string]geometry.Point
	midpoints   map[string]geometry.Point
	relProps    map[string]geometry.Point
	clusters    map[string][]string
	annotations map[string]geometry.Point
	images      map[string]geometry.Rect
	texts       map[string]string
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		nodes: map[string]geometry.Point{
			"a": geometry.Pt(100, 100),
			"b": geometry.Pt(300, 100),
			"c": geometry.Pt(200, 300),
		},
		props:       map[string]geometry.Point{"a::p1": geometry.Pt(0, -60)},
		midpoints:   map[string]geometry.Point{"r1": geometry.Pt(200, 100)},
		relProps:    map[string]geometry.Point{"r1::p1": geometry.Pt(20, 20)},
		clusters:    map[string][]string{"c1": {"a", "b"}},
		annotations: map[string]geometry.Point{"n1": geometry.Pt(500, 500)},
		images:      map[string]geometry.Rect{"i1": {X: 10, Y: 10, Width: 200, Height: 100}},
		texts:       map[string]string{"a": "Alpha", "n1": "note"},
	}
}

func (f *fakeModel) NodePosition(id string) (geometry.Point, bool) {
	p, ok := f.nodes[id]
	return p, ok
}

func (f *fakeModel) PropertyOffset(id string) (geometry.Point, bool) {
	p, ok := f.props[id]
	return p, ok
}

func (f *fakeModel) RelationshipMidpoint(id string) (geometry.Point, bool) {
	p, ok := f.midpoints[id]
	return p, ok
}

func (f *fakeModel) RelationshipPropertyOffset(id string) (geometry.Point, bool) {
	p, ok := f.relProps[id]
	return p, ok
}

func (f *fakeModel) ClusterMembers(id string) []string {
	return f.clusters[id]
}

func (f *fakeModel) AnnotationPosition(id string) (geometry.Point, bool) {
	p, ok := f.annotations[id]
	return p, ok
}

func (f *fakeModel) ImageRect(id string) (geometry.Rect, bool) {
	r, ok := f.images[id]
	return r, ok
}

func (f *fakeModel) Text(s Selection) (string, bool, bool) {
	t, ok := f.texts[s.TargetID()]
	return t, s.Kind() == KindAnnotation, ok
}

func newMachine(t *testing.T) (*Machine, *fakeModel, *[]Mutation) {
	t.Helper()
	model := newFakeModel()
	var sunk []Mutation
	vp := viewport.New(geometry.Size{Width: 800, Height: 600}, viewport.Options{})
	m := New(model, vp, func(mu Mutation) { sunk = append(sunk, mu) }, Options{})
	return m, model, &sunk
}

func down(p geometry.Point, s Selection) PointerDown {
	return PointerDown{Position: p, Target: Target{Selection: s}}
}

func TestMachine_DragNodeEmitsCheckpointOnce(t *testing.T) {
	m, _, sunk := newMachine(t)

	assert.Empty(t, m.Handle(down(geometry.Pt(100, 100), NodeSelection{ID: "a"})))
	assert.Equal(t, ModeDraggingNode, m.Mode())

	out := m.Handle(PointerMove{Position: geometry.Pt(110, 120)})
	require.Len(t, out, 2)
	assert.Equal(t, Checkpoint{}, out[0])
	assert.Equal(t, MoveNodes{Positions: map[string]geometry.Point{"a": geometry.Pt(110, 120)}}, out[1])

	out = m.Handle(PointerMove{Position: geometry.Pt(150, 100)})
	require.Len(t, out, 1)
	assert.Equal(t, MoveNodes{Positions: map[string]geometry.Point{"a": geometry.Pt(150, 100)}}, out[0])

	m.Handle(PointerUp{})
	assert.Equal(t, ModeIdle, m.Mode())
	assert.Len(t, *sunk, 3)
	assert.True(t, SameSelection(NodeSelection{ID: "a"}, m.Selection()))
}

func TestMachine_ClickWithoutMoveHasNoCheckpoint(t *testing.T) {
	m, _, sunk := newMachine(t)
	m.Handle(down(geometry.Pt(100, 100), NodeSelection{ID: "a"}))
	m.Handle(PointerUp{})
	assert.Empty(t, *sunk)
}

func TestMachine_DragKinds(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		mode   Mode
		want   Mutation
	}{
		{
			name:   "property",
			target: Target{Selection: PropertySelection{ID: "a::p1"}},
			mode:   ModeDraggingProperty,
			want:   MoveProperty{PropertyID: "a::p1", Offset: geometry.Pt(10, -50)},
		},
		{
			name:   "relationship property",
			target: Target{Selection: RelationshipPropertySelection{ID: "r1::p1"}},
			mode:   ModeDraggingRelationshipProperty,
			want:   MoveRelationshipProperty{PropertyID: "r1::p1", Offset: geometry.Pt(30, 30)},
		},
		{
			name:   "cluster",
			target: Target{Selection: ClusterSelection{ID: "c1"}},
			mode:   ModeDraggingCluster,
			want: MoveNodes{Positions: map[string]geometry.Point{
				"a": geometry.Pt(110, 110),
				"b": geometry.Pt(310, 110),
			}},
		},
		{
			name:   "annotation",
			target: Target{Selection: AnnotationSelection{ID: "n1"}},
			mode:   ModeDraggingAnnotation,
			want:   MoveAnnotation{AnnotationID: "n1", Position: geometry.Pt(510, 510)},
		},
		{
			name:   "image",
			target: Target{Selection: ImageSelection{ID: "i1"}},
			mode:   ModeDraggingImage,
			want:   MoveImage{ImageID: "i1", Position: geometry.Pt(20, 20)},
		},
		{
			name:   "image resize keeps aspect ratio",
			target: Target{Selection: ImageSelection{ID: "i1"}, Handle: HandleResize},
			mode:   ModeResizingImage,
			want:   ResizeImage{ImageID: "i1", Width: 210, Height: 105},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newMachine(t)
			m.Handle(PointerDown{Position: geometry.Pt(400, 400), Target: tt.target})
			assert.Equal(t, tt.mode, m.Mode())

			out := m.Handle(PointerMove{Position: geometry.Pt(410, 410)})
			require.Len(t, out, 2)
			assert.Equal(t, tt.want, out[1])
		})
	}
}

func TestMachine_ResizeImageHasMinimum(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(PointerDown{Position: geometry.Pt(210, 110), Target: Target{Selection: ImageSelection{ID: "i1"}, Handle: HandleResize}})
	out := m.Handle(PointerMove{Position: geometry.Pt(-500, 110)})
	require.Len(t, out, 2)
	assert.Equal(t, ResizeImage{ImageID: "i1", Width: 20, Height: 10}, out[1])
}

func TestMachine_BendRelationshipFollowsPointer(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(down(geometry.Pt(200, 100), RelationshipSelection{ID: "r1"}))
	assert.Equal(t, ModeDraggingRelationship, m.Mode())

	out := m.Handle(PointerMove{Position: geometry.Pt(200, 60)})
	require.Len(t, out, 2)
	assert.Equal(t, BendRelationship{RelationshipID: "r1", Offset: geometry.Pt(0, -80)}, out[1])
}

func TestMachine_StaleTargetsAreNoOps(t *testing.T) {
	m, _, sunk := newMachine(t)
	m.Handle(down(geometry.Pt(0, 0), NodeSelection{ID: "ghost"}))
	assert.Equal(t, ModeIdle, m.Mode())
	m.Handle(PointerMove{Position: geometry.Pt(50, 50)})
	assert.Empty(t, *sunk)
}

func TestMachine_RelationshipPropertyDragStopsWhenParentUnrouted(t *testing.T) {
	m, model, sunk := newMachine(t)
	m.Handle(down(geometry.Pt(0, 0), RelationshipPropertySelection{ID: "r1::p1"}))
	delete(model.relProps, "r1::p1")
	m.Handle(PointerMove{Position: geometry.Pt(50, 50)})
	assert.Equal(t, []Mutation{Checkpoint{}}, *sunk)
}

func TestMachine_PanningMovesViewport(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(down(geometry.Pt(100, 100), nil))
	assert.Equal(t, ModePanning, m.Mode())

	out := m.Handle(PointerMove{Position: geometry.Pt(150, 130)})
	assert.Empty(t, out)
	assert.InDelta(t, -50, m.Viewport().Box.X, 1e-9)
	assert.InDelta(t, -30, m.Viewport().Box.Y, 1e-9)

	m.Handle(PointerUp{})
	assert.Equal(t, ModeIdle, m.Mode())
}

func TestMachine_BackgroundClickClearsSelection(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(down(geometry.Pt(100, 100), NodeSelection{ID: "a"}))
	m.Handle(PointerUp{})
	m.Handle(down(geometry.Pt(700, 500), nil))
	assert.Nil(t, m.Selection())
}

func TestMachine_Linking(t *testing.T) {
	platform := Modifiers{Platform: true}

	t.Run("second node creates relationship", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: platform})
		assert.Equal(t, ModeLinking, m.Mode())
		assert.Equal(t, "a", m.State().LinkingFrom)

		out := m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "b"}}, Mods: platform})
		assert.Equal(t, []Mutation{CreateRelationship{Source: "a", Target: "b"}}, out)
		assert.Equal(t, ModeIdle, m.Mode())
	})

	t.Run("same node cancels", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: platform})
		out := m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: platform})
		assert.Empty(t, out)
		assert.Equal(t, ModeIdle, m.Mode())
	})

	t.Run("modifier release cancels", func(t *testing.T) {
		for _, key := range []string{KeyControl, KeyMeta} {
			m, _, _ := newMachine(t)
			m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: platform})
			m.Handle(KeyUp{Key: key})
			assert.Equal(t, ModeIdle, m.Mode(), key)
		}
	})

	t.Run("background click cancels without panning", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: platform})
		m.Handle(down(geometry.Pt(700, 500), nil))
		assert.Equal(t, ModeIdle, m.Mode())
		assert.Empty(t, m.State().LinkingFrom)
	})

	t.Run("two finger touch links", func(t *testing.T) {
		m, _, _ := newMachine(t)
		out := m.Handle(TwoFingerTouch{
			First:  Target{Selection: NodeSelection{ID: "a"}},
			Second: Target{Selection: NodeSelection{ID: "c"}},
		})
		assert.Equal(t, []Mutation{CreateRelationship{Source: "a", Target: "c"}}, out)

		out = m.Handle(TwoFingerTouch{
			First:  Target{Selection: NodeSelection{ID: "a"}},
			Second: Target{},
		})
		assert.Empty(t, out)
	})
}

func TestMachine_MultiSelectAndGroup(t *testing.T) {
	m, _, _ := newMachine(t)
	shift := Modifiers{Shift: true}

	m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "a"}}, Mods: shift})
	assert.Equal(t, ModeMultiSelecting, m.Mode())
	assert.False(t, m.State().CanGroup)

	// Group needs two members.
	assert.Empty(t, m.Handle(GroupAction{}))

	m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "b"}}, Mods: shift})
	m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "c"}}, Mods: shift})
	m.Handle(PointerDown{Target: Target{Selection: NodeSelection{ID: "b"}}, Mods: shift})
	assert.Equal(t, []string{"a", "c"}, m.MultiSelection())
	assert.True(t, m.State().CanGroup)

	out := m.Handle(GroupAction{})
	assert.Equal(t, []Mutation{CreateCluster{Name: "Nhóm", NodeIDs: []string{"a", "c"}}}, out)
	assert.Empty(t, m.MultiSelection())
	assert.Equal(t, ModeIdle, m.Mode())
}

func TestMachine_Keys(t *testing.T) {
	tests := []struct {
		name string
		key  KeyDown
		want []Mutation
	}{
		{"delete", KeyDown{Key: KeyDelete}, []Mutation{Delete{Target: NodeSelection{ID: "a"}}}},
		{"backspace", KeyDown{Key: KeyBackspace}, []Mutation{Delete{Target: NodeSelection{ID: "a"}}}},
		{"undo", KeyDown{Key: "z", Mods: Modifiers{Platform: true}}, []Mutation{Undo{}}},
		{"redo shift", KeyDown{Key: "Z", Mods: Modifiers{Platform: true, Shift: true}}, []Mutation{Redo{}}},
		{"redo y", KeyDown{Key: "y", Mods: Modifiers{Platform: true}}, []Mutation{Redo{}}},
		{"plain z", KeyDown{Key: "z"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newMachine(t)
			m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
			assert.Equal(t, tt.want, m.Handle(tt.key))
		})
	}
}

func TestMachine_DeleteClearsSelection(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(SelectAction{Selection: LinkLineSelection{ID: "r1"}})
	out := m.Handle(DeleteAction{})
	assert.Equal(t, []Mutation{Delete{Target: RelationshipSelection{ID: "r1"}}}, out)
	assert.Nil(t, m.Selection())
	assert.Empty(t, m.Handle(DeleteAction{}))
}

func TestMachine_Editing(t *testing.T) {
	t.Run("enter commits single line", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
		m.Handle(BeginEditAction{})
		require.NotNil(t, m.State().Editing)
		assert.Equal(t, "Alpha", m.State().Editing.Draft)
		assert.Equal(t, ModeEditing, m.Mode())

		m.Handle(UpdateDraftAction{Text: "Beta"})
		// Keys other than Enter and Escape belong to the editor.
		assert.Empty(t, m.Handle(KeyDown{Key: KeyDelete}))

		out := m.Handle(KeyDown{Key: KeyEnter})
		assert.Equal(t, []Mutation{Rename{Target: NodeSelection{ID: "a"}, Text: "Beta"}}, out)
		assert.Equal(t, ModeIdle, m.Mode())
	})

	t.Run("enter in multiline does not commit", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(SelectAction{Selection: AnnotationSelection{ID: "n1"}})
		m.Handle(BeginEditAction{})
		m.Handle(UpdateDraftAction{Text: "line\nline"})
		assert.Empty(t, m.Handle(KeyDown{Key: KeyEnter}))
		out := m.Handle(ConfirmEditAction{})
		assert.Equal(t, []Mutation{Rename{Target: AnnotationSelection{ID: "n1"}, Text: "line\nline"}}, out)
	})

	t.Run("escape cancels", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
		m.Handle(BeginEditAction{})
		m.Handle(UpdateDraftAction{Text: "Beta"})
		assert.Empty(t, m.Handle(KeyDown{Key: KeyEscape}))
		assert.Nil(t, m.State().Editing)
	})

	t.Run("pointer down elsewhere cancels then selects", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
		m.Handle(BeginEditAction{})
		m.Handle(UpdateDraftAction{Text: "Beta"})
		out := m.Handle(down(geometry.Pt(300, 100), NodeSelection{ID: "b"}))
		assert.Empty(t, out)
		assert.Nil(t, m.State().Editing)
		assert.True(t, SameSelection(NodeSelection{ID: "b"}, m.Selection()))
	})

	t.Run("unchanged text emits nothing", func(t *testing.T) {
		m, _, _ := newMachine(t)
		m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
		m.Handle(BeginEditAction{})
		assert.Empty(t, m.Handle(ConfirmEditAction{}))
	})
}

func TestMachine_Popups(t *testing.T) {
	m, _, _ := newMachine(t)

	m.Handle(OpenPopupAction{Popup: PopupColor})
	assert.Equal(t, PopupNone, m.State().Popup, "nothing selected")

	m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
	m.Handle(OpenPopupAction{Popup: PopupLinkStyle})
	assert.Equal(t, PopupNone, m.State().Popup, "link style needs a relationship")

	m.Handle(OpenPopupAction{Popup: PopupColor})
	assert.Equal(t, PopupColor, m.State().Popup)

	// A background click only closes the popup.
	m.Handle(down(geometry.Pt(700, 500), nil))
	assert.Equal(t, PopupNone, m.State().Popup)
	assert.NotNil(t, m.Selection())
	assert.Equal(t, ModeIdle, m.Mode())

	m.Handle(OpenPopupAction{Popup: PopupColor})
	out := m.Handle(SetColorAction{Color: "#ff0000"})
	assert.Equal(t, []Mutation{SetColor{Target: NodeSelection{ID: "a"}, Color: "#ff0000"}}, out)
	assert.Equal(t, PopupNone, m.State().Popup)
}

func TestMachine_LinkStyleActions(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(SelectAction{Selection: RelationshipSelection{ID: "r1"}})
	m.Handle(OpenPopupAction{Popup: PopupLinkStyle})
	assert.Equal(t, PopupLinkStyle, m.State().Popup)

	out := m.Handle(SetLinkStyleAction{Style: diagram.LinkDashed})
	assert.Equal(t, []Mutation{SetLinkStyle{RelationshipID: "r1", Style: diagram.LinkDashed}}, out)

	out = m.Handle(SetArrowStyleAction{Style: diagram.ArrowBoth})
	assert.Equal(t, []Mutation{SetArrowStyle{RelationshipID: "r1", Style: diagram.ArrowBoth}}, out)

	assert.Empty(t, m.Handle(SetArrowStyleAction{Style: "sideways"}))
}

func TestMachine_UngroupAndDuplicate(t *testing.T) {
	m, _, _ := newMachine(t)
	assert.Empty(t, m.Handle(UngroupAction{}))

	m.Handle(SelectAction{Selection: ClusterSelection{ID: "c1"}})
	assert.Equal(t, []Mutation{Ungroup{ClusterID: "c1"}}, m.Handle(UngroupAction{}))
	assert.Nil(t, m.Selection())

	m.Handle(SelectAction{Selection: NodeSelection{ID: "a"}})
	assert.Equal(t, []Mutation{DuplicateNode{NodeID: "a"}}, m.Handle(DuplicateAction{}))
}

func TestMachine_HoverAndViewportEvents(t *testing.T) {
	m, _, _ := newMachine(t)
	m.Handle(PointerMove{Position: geometry.Pt(200, 100), Target: Target{Selection: RelationshipSelection{ID: "r1"}}})
	require.NotNil(t, m.State().Hover)
	assert.Equal(t, Ref{Kind: KindLinkLine, ID: "r1"}, *m.State().Hover)

	m.Handle(PointerMove{Position: geometry.Pt(0, 0)})
	assert.Nil(t, m.State().Hover)

	before := m.Viewport().Scale()
	m.Handle(Wheel{Position: geometry.Pt(400, 300), DeltaY: -1})
	assert.Greater(t, m.Viewport().Scale(), before)

	m.Handle(Resize{Pixels: geometry.Size{Width: 1000, Height: 700}})
	assert.Equal(t, geometry.Size{Width: 1000, Height: 700}, m.Viewport().Pixels)
}

func TestMachine_AttachAndClose(t *testing.T) {
	m, _, sunk := newMachine(t)
	bus := NewBus()
	m.Attach(bus)
	for _, topic := range []Topic{TopicPointer, TopicKeyboard, TopicWheel, TopicTouch, TopicResize, TopicAction} {
		assert.Equal(t, 1, bus.Count(topic), topic)
	}

	bus.Publish(SelectAction{Selection: NodeSelection{ID: "a"}})
	bus.Publish(KeyDown{Key: KeyDelete})
	assert.Equal(t, []Mutation{Delete{Target: NodeSelection{ID: "a"}}}, *sunk)

	m.Close()
	m.Close()
	for _, topic := range []Topic{TopicPointer, TopicKeyboard, TopicWheel, TopicTouch, TopicResize, TopicAction} {
		assert.Zero(t, bus.Count(topic), topic)
	}

	bus.Publish(UndoAction{})
	assert.Len(t, *sunk, 1)
}
