// Package export encodes diagrams for interchange: a JSON snapshot of the
// document and layout, the layout alone, and flowchart text.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/validation"
)

// SnapshotVersion is the snapshot format written by this package.
const SnapshotVersion = 1

// Snapshot is a full diagram: semantic graph plus optional visual state.
type Snapshot struct {
	Version  int              `json:"version"`
	Document diagram.Document `json:"document"`
	Layout   *diagram.Layout  `json:"layout,omitempty"`
}

// requiredDocumentFields must be present in an imported document.
var requiredDocumentFields = []string{"title", "nodes", "relationships"}

// EncodeSnapshot writes doc and, when non-nil, its layout as indented JSON.
func EncodeSnapshot(doc diagram.Document, l *diagram.Layout) ([]byte, error) {
	if l != nil {
		filled := fillLayout(*l)
		l = &filled
	}
	return encode(Snapshot{Version: SnapshotVersion, Document: doc, Layout: l})
}

// DecodeSnapshot parses and validates a snapshot. Nothing is returned on
// error, so a failed import never partially applies.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Snapshot{}, malformed("snapshot is not a JSON object", err)
	}
	for _, k := range []string{"version", "document"} {
		if _, ok := top[k]; !ok {
			return Snapshot{}, malformed(fmt.Sprintf("missing field %q", k), nil)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(top["document"], &fields); err != nil {
		return Snapshot{}, malformed("document is not a JSON object", err)
	}
	for _, k := range requiredDocumentFields {
		if _, ok := fields[k]; !ok {
			return Snapshot{}, malformed(fmt.Sprintf("missing field %q in document", k), nil)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, malformed("snapshot has invalid field types", err)
	}
	if snap.Version < 1 || snap.Version > SnapshotVersion {
		return Snapshot{}, apperrors.Validation(apperrors.CodeUnsupportedFormat, "unsupported snapshot version").
			WithDetailsf("version %d, supported up to %d", snap.Version, SnapshotVersion).
			WithOperation("DecodeSnapshot").Build()
	}
	if err := validation.Get().StructWithCode(snap.Document, apperrors.CodeImportMalformed); err != nil {
		return Snapshot{}, err
	}
	if err := snap.Document.CheckUnique(); err != nil {
		return Snapshot{}, err
	}
	if snap.Layout != nil {
		l := fillLayout(*snap.Layout)
		snap.Layout = &l
	}
	return snap, nil
}

// EncodeLayout writes a layout snapshot alone.
func EncodeLayout(l diagram.Layout) ([]byte, error) {
	return encode(fillLayout(l))
}

// DecodeLayout parses a layout snapshot. Missing maps decode as empty.
func DecodeLayout(data []byte) (diagram.Layout, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return diagram.Layout{}, malformed("layout is not a JSON object", err)
	}
	if _, ok := top["nodePositions"]; !ok {
		return diagram.Layout{}, malformed(`missing field "nodePositions"`, nil)
	}
	var l diagram.Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return diagram.Layout{}, malformed("layout has invalid field types", err)
	}
	return fillLayout(l), nil
}

func fillLayout(l diagram.Layout) diagram.Layout {
	out := diagram.NewLayout()
	for k, v := range l.Positions {
		out.Positions[k] = v
	}
	for k, v := range l.PropertyOffsets {
		out.PropertyOffsets[k] = v
	}
	for k, v := range l.RelationshipPropertyOffsets {
		out.RelationshipPropertyOffsets[k] = v
	}
	return out
}

// encode writes stable output: map keys are sorted by encoding/json and the
// trailing newline is fixed.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, apperrors.Internal(apperrors.CodeInternalError, "encode failed").WithCause(err).Build()
	}
	return buf.Bytes(), nil
}

func malformed(msg string, cause error) error {
	b := apperrors.Validation(apperrors.CodeImportMalformed, msg).WithOperation("import")
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}
