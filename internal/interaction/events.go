package interaction

import (
	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
)

// Topic groups events on the bus.
type Topic string

const (
	TopicPointer  Topic = "pointer"
	TopicKeyboard Topic = "keyboard"
	TopicWheel    Topic = "wheel"
	TopicTouch    Topic = "touch"
	TopicResize   Topic = "resize"
	TopicAction   Topic = "action"
)

// Event is anything fed into the machine.
type Event interface {
	Topic() Topic
}

// Modifiers are the keys held during a pointer or key event. Platform is
// Ctrl on most systems and Cmd on macOS.
type Modifiers struct {
	Shift    bool `json:"shift,omitempty"`
	Platform bool `json:"platform,omitempty"`
}

// Handle is a sub-part of an entity that changes what a press does.
type Handle string

const (
	HandleNone   Handle = ""
	HandleResize Handle = "resize"
)

// Target is what lies under the pointer. A nil Selection is the background.
type Target struct {
	Selection Selection
	Handle    Handle
}

// Background reports whether the target is empty canvas.
func (t Target) Background() bool {
	return t.Selection == nil
}

// Key names understood by the machine.
const (
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyControl   = "Control"
	KeyMeta      = "Meta"
	KeyShift     = "Shift"
)

// Pointer positions are in surface pixels; the machine converts them to
// model space through its viewport.

type PointerDown struct {
	Position geometry.Point
	Target   Target
	Mods     Modifiers
}

type PointerMove struct {
	Position geometry.Point
	Target   Target
}

type PointerUp struct {
	Position geometry.Point
}

type Wheel struct {
	Position geometry.Point
	DeltaY   float64
}

type KeyDown struct {
	Key  string
	Mods Modifiers
}

type KeyUp struct {
	Key  string
	Mods Modifiers
}

// TwoFingerTouch reports two simultaneous touches and what each landed on.
type TwoFingerTouch struct {
	First  Target
	Second Target
}

// Resize reports a new rendering surface size.
type Resize struct {
	Pixels geometry.Size
}

func (PointerDown) Topic() Topic    { return TopicPointer }
func (PointerMove) Topic() Topic    { return TopicPointer }
func (PointerUp) Topic() Topic      { return TopicPointer }
func (Wheel) Topic() Topic          { return TopicWheel }
func (KeyDown) Topic() Topic        { return TopicKeyboard }
func (KeyUp) Topic() Topic          { return TopicKeyboard }
func (TwoFingerTouch) Topic() Topic { return TopicTouch }
func (Resize) Topic() Topic         { return TopicResize }

// PopupKind names a floating editor.
type PopupKind string

const (
	PopupNone      PopupKind = ""
	PopupLinkStyle PopupKind = "link-style"
	PopupColor     PopupKind = "color"
)

// Actions are explicit commands from toolbar buttons and floating editors.

type GroupAction struct{ Name string }
type UngroupAction struct{}
type DuplicateAction struct{}
type DeleteAction struct{}
type OpenPopupAction struct{ Popup PopupKind }
type ClosePopupAction struct{}
type SetColorAction struct{ Color string }
type SetLinkStyleAction struct{ Style diagram.LinkStyle }
type SetArrowStyleAction struct{ Style diagram.ArrowStyle }
type BeginEditAction struct{}
type UpdateDraftAction struct{ Text string }
type ConfirmEditAction struct{}
type CancelEditAction struct{}
type SelectAction struct{ Selection Selection }
type UndoAction struct{}
type RedoAction struct{}

func (GroupAction) Topic() Topic         { return TopicAction }
func (UngroupAction) Topic() Topic       { return TopicAction }
func (DuplicateAction) Topic() Topic     { return TopicAction }
func (DeleteAction) Topic() Topic        { return TopicAction }
func (OpenPopupAction) Topic() Topic     { return TopicAction }
func (ClosePopupAction) Topic() Topic    { return TopicAction }
func (SetColorAction) Topic() Topic      { return TopicAction }
func (SetLinkStyleAction) Topic() Topic  { return TopicAction }
func (SetArrowStyleAction) Topic() Topic { return TopicAction }
func (BeginEditAction) Topic() Topic     { return TopicAction }
func (UpdateDraftAction) Topic() Topic   { return TopicAction }
func (ConfirmEditAction) Topic() Topic   { return TopicAction }
func (CancelEditAction) Topic() Topic    { return TopicAction }
func (SelectAction) Topic() Topic        { return TopicAction }
func (UndoAction) Topic() Topic          { return TopicAction }
func (RedoAction) Topic() Topic          { return TopicAction }
