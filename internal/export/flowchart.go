package export

import (
	"fmt"
	"strings"

	"brain2-canvas/internal/domain/diagram"
)

// Flowchart renders doc as flowchart text: clustered nodes inside named
// subgraphs, the rest at top level, one labelled edge per relationship.
// Relationships with a missing endpoint are skipped.
func Flowchart(doc diagram.Document) string {
	ids := newIDMap()
	for _, n := range doc.Nodes {
		ids.assign(n.ID)
	}

	var b strings.Builder
	b.WriteString("flowchart LR\n")

	grouped := make(map[string]bool)
	for _, c := range doc.Clusters {
		var members []diagram.Node
		for _, id := range c.NodeIDs {
			if n, ok := doc.Node(id); ok && !grouped[id] {
				members = append(members, n)
				grouped[id] = true
			}
		}
		if len(members) == 0 {
			continue
		}
		fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", ids.assign("cluster:"+c.ID), escape(c.Name))
		for _, n := range members {
			fmt.Fprintf(&b, "        %s[\"%s\"]\n", ids.get(n.ID), escape(n.Name))
		}
		b.WriteString("    end\n")
	}
	for _, n := range doc.Nodes {
		if !grouped[n.ID] {
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", ids.get(n.ID), escape(n.Name))
		}
	}

	for _, r := range doc.Relationships {
		if _, ok := doc.Node(r.Source); !ok {
			continue
		}
		if _, ok := doc.Node(r.Target); !ok {
			continue
		}
		src, dst := ids.get(r.Source), ids.get(r.Target)
		if r.ArrowStyle == diagram.ArrowBackward {
			src, dst = dst, src
		}
		arrow := connector(r.LinkStyle, r.ArrowStyle)
		if r.Label == "" {
			fmt.Fprintf(&b, "    %s %s %s\n", src, arrow, dst)
			continue
		}
		fmt.Fprintf(&b, "    %s %s|\"%s\"| %s\n", src, arrow, escape(r.Label), dst)
	}
	return b.String()
}

// connector picks the edge token. Backward arrows are written forward with
// the endpoints swapped by the caller.
func connector(link diagram.LinkStyle, arrow diagram.ArrowStyle) string {
	dashed := link == diagram.LinkDashed
	switch arrow {
	case diagram.ArrowNone:
		if dashed {
			return "-.-"
		}
		return "---"
	case diagram.ArrowBoth:
		if dashed {
			return "<-.->"
		}
		return "<-->"
	default:
		if dashed {
			return "-.->"
		}
		return "-->"
	}
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	return strings.ReplaceAll(s, "\n", " ")
}

// idMap turns arbitrary ids into unique [A-Za-z0-9_] identifiers.
type idMap struct {
	byID map[string]string
	used map[string]bool
}

func newIDMap() *idMap {
	return &idMap{byID: make(map[string]string), used: make(map[string]bool)}
}

func (m *idMap) assign(id string) string {
	if v, ok := m.byID[id]; ok {
		return v
	}
	base := sanitize(id)
	v := base
	for i := 2; m.used[v]; i++ {
		v = fmt.Sprintf("%s_%d", base, i)
	}
	m.byID[id] = v
	m.used[v] = true
	return v
}

func (m *idMap) get(id string) string {
	return m.assign(id)
}

func sanitize(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "n_" + s
	}
	// Reserved words break the parser.
	switch strings.ToLower(s) {
	case "end", "subgraph", "graph", "flowchart":
		s = "n_" + s
	}
	return s
}
