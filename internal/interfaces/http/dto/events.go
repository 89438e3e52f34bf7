// Package dto holds the wire forms accepted by the HTTP and WebSocket
// interfaces and their conversion to application types.
package dto

import (
	"encoding/json"
	"fmt"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/validation"
)

// Event type discriminators.
const (
	EventPointerDown   = "pointer-down"
	EventPointerMove   = "pointer-move"
	EventPointerUp     = "pointer-up"
	EventWheel         = "wheel"
	EventKeyDown       = "key-down"
	EventKeyUp         = "key-up"
	EventTouch         = "two-finger-touch"
	EventResize        = "resize"
	EventGroup         = "group"
	EventUngroup       = "ungroup"
	EventDuplicate     = "duplicate"
	EventDelete        = "delete"
	EventOpenPopup     = "open-popup"
	EventClosePopup    = "close-popup"
	EventSetColor      = "set-color"
	EventSetLinkStyle  = "set-link-style"
	EventSetArrowStyle = "set-arrow-style"
	EventBeginEdit     = "begin-edit"
	EventUpdateDraft   = "update-draft"
	EventConfirmEdit   = "confirm-edit"
	EventCancelEdit    = "cancel-edit"
	EventSelect        = "select"
	EventUndo          = "undo"
	EventRedo          = "redo"
)

// MaxEventsPerRequest bounds one batch.
const MaxEventsPerRequest = 500

// TargetRequest is what lies under the pointer. An empty kind is the
// background.
type TargetRequest struct {
	Kind   interaction.Kind   `json:"kind,omitempty" validate:"omitempty,oneof=node property relationship relationship-property image cluster annotation link-line"`
	ID     string             `json:"id,omitempty" validate:"required_with=Kind"`
	Handle interaction.Handle `json:"handle,omitempty" validate:"omitempty,oneof=resize"`
}

func (t *TargetRequest) target() interaction.Target {
	if t == nil || t.Kind == "" {
		return interaction.Target{}
	}
	return interaction.Target{Selection: interaction.NewSelection(t.Kind, t.ID), Handle: t.Handle}
}

// EventRequest is one interaction event. Which fields apply depends on Type.
type EventRequest struct {
	Type      string                `json:"type" validate:"required,oneof=pointer-down pointer-move pointer-up wheel key-down key-up two-finger-touch resize group ungroup duplicate delete open-popup close-popup set-color set-link-style set-arrow-style begin-edit update-draft confirm-edit cancel-edit select undo redo"`
	Position  *geometry.Point       `json:"position,omitempty"`
	Target    *TargetRequest        `json:"target,omitempty"`
	Second    *TargetRequest        `json:"second,omitempty"`
	Mods      interaction.Modifiers `json:"mods"`
	Key       string                `json:"key,omitempty" validate:"max=32"`
	DeltaY    float64               `json:"deltaY,omitempty"`
	Pixels    *geometry.Size        `json:"pixels,omitempty"`
	Name      string                `json:"name,omitempty" validate:"max=200"`
	Popup     string                `json:"popup,omitempty" validate:"omitempty,oneof=link-style color"`
	Color     string                `json:"color,omitempty" validate:"max=32"`
	Style     string                `json:"style,omitempty" validate:"max=16"`
	Text      string                `json:"text,omitempty" validate:"max=10000"`
	Selection *interaction.Ref      `json:"selection,omitempty"`
}

// EventsRequest is a batch applied in order.
type EventsRequest struct {
	Events []EventRequest `json:"events" validate:"required,min=1,max=500,dive"`
}

// DecodeEvents parses and validates a batch.
func DecodeEvents(data []byte) ([]interaction.Event, error) {
	var req EventsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, apperrors.Validation(apperrors.CodeInvalidJSON, "invalid events body").
			WithDetails(err.Error()).WithCause(err).Build()
	}
	return req.ToEvents()
}

// ToEvents validates the batch and converts it.
func (r EventsRequest) ToEvents() ([]interaction.Event, error) {
	if err := validation.Get().StructWithCode(r, apperrors.CodeInvalidEvent); err != nil {
		return nil, err
	}
	events := make([]interaction.Event, 0, len(r.Events))
	for i, e := range r.Events {
		ev, err := e.ToEvent()
		if err != nil {
			ue := apperrors.Wrap(err, "ToEvents", "invalid event")
			ue.Details = fmt.Sprintf("events[%d]: %s", i, apperrors.As(err).Details)
			return nil, ue
		}
		events = append(events, ev)
	}
	return events, nil
}

// ToEvent converts a validated request into a machine event.
func (e EventRequest) ToEvent() (interaction.Event, error) {
	switch e.Type {
	case EventPointerDown:
		p, err := e.position()
		if err != nil {
			return nil, err
		}
		return interaction.PointerDown{Position: p, Target: e.Target.target(), Mods: e.Mods}, nil
	case EventPointerMove:
		p, err := e.position()
		if err != nil {
			return nil, err
		}
		return interaction.PointerMove{Position: p, Target: e.Target.target()}, nil
	case EventPointerUp:
		p, err := e.position()
		if err != nil {
			return nil, err
		}
		return interaction.PointerUp{Position: p}, nil
	case EventWheel:
		p, err := e.position()
		if err != nil {
			return nil, err
		}
		return interaction.Wheel{Position: p, DeltaY: e.DeltaY}, nil
	case EventKeyDown, EventKeyUp:
		if e.Key == "" {
			return nil, invalid("key is required")
		}
		if e.Type == EventKeyDown {
			return interaction.KeyDown{Key: e.Key, Mods: e.Mods}, nil
		}
		return interaction.KeyUp{Key: e.Key, Mods: e.Mods}, nil
	case EventTouch:
		return interaction.TwoFingerTouch{First: e.Target.target(), Second: e.Second.target()}, nil
	case EventResize:
		if e.Pixels == nil {
			return nil, invalid("pixels is required")
		}
		return interaction.Resize{Pixels: *e.Pixels}, nil
	case EventGroup:
		return interaction.GroupAction{Name: e.Name}, nil
	case EventUngroup:
		return interaction.UngroupAction{}, nil
	case EventDuplicate:
		return interaction.DuplicateAction{}, nil
	case EventDelete:
		return interaction.DeleteAction{}, nil
	case EventOpenPopup:
		if e.Popup == "" {
			return nil, invalid("popup is required")
		}
		return interaction.OpenPopupAction{Popup: interaction.PopupKind(e.Popup)}, nil
	case EventClosePopup:
		return interaction.ClosePopupAction{}, nil
	case EventSetColor:
		return interaction.SetColorAction{Color: e.Color}, nil
	case EventSetLinkStyle:
		if err := validation.Get().Var(e.Style, "required,oneof=solid dashed"); err != nil {
			return nil, invalid("style must be solid or dashed")
		}
		return interaction.SetLinkStyleAction{Style: diagram.LinkStyle(e.Style)}, nil
	case EventSetArrowStyle:
		if err := validation.Get().Var(e.Style, "required,oneof=forward backward both none"); err != nil {
			return nil, invalid("style must be forward, backward, both or none")
		}
		return interaction.SetArrowStyleAction{Style: diagram.ArrowStyle(e.Style)}, nil
	case EventBeginEdit:
		return interaction.BeginEditAction{}, nil
	case EventUpdateDraft:
		return interaction.UpdateDraftAction{Text: e.Text}, nil
	case EventConfirmEdit:
		return interaction.ConfirmEditAction{}, nil
	case EventCancelEdit:
		return interaction.CancelEditAction{}, nil
	case EventSelect:
		return interaction.SelectAction{Selection: e.Selection.Selection()}, nil
	case EventUndo:
		return interaction.UndoAction{}, nil
	case EventRedo:
		return interaction.RedoAction{}, nil
	}
	return nil, invalid("unknown event type " + e.Type)
}

func (e EventRequest) position() (geometry.Point, error) {
	if e.Position == nil {
		return geometry.Point{}, invalid("position is required")
	}
	if !e.Position.IsFinite() {
		return geometry.Point{}, invalid("position must be finite")
	}
	return *e.Position, nil
}

func invalid(details string) error {
	return apperrors.Validation(apperrors.CodeInvalidEvent, "invalid event").WithDetails(details).Build()
}
