// Package routing turns node positions into drawable relationship paths and
// label anchors, and places property labels around their owners.
package routing

import (
	"sort"

	"brain2-canvas/internal/domain/diagram"
	"brain2-canvas/internal/geometry"
)

// PathKind tells how a path is drawn.
type PathKind string

const (
	Straight  PathKind = "straight"
	Quadratic PathKind = "quadratic"
	Loop      PathKind = "loop"
)

// Path is the routed geometry of one relationship.
type Path struct {
	RelationshipID string         `json:"relationshipId"`
	Kind           PathKind       `json:"kind"`
	Start          geometry.Point `json:"start"`
	Control        geometry.Point `json:"control"`
	End            geometry.Point `json:"end"`
	Label          geometry.Point `json:"label"`
	// Midpoint is the point explicit control offsets are measured from.
	Midpoint geometry.Point `json:"midpoint"`
}

// Options tunes routing. Zero fields take the defaults.
type Options struct {
	ParallelSpacing float64 // default 20
	CurveBias       float64 // default 25
	LoopHeight      float64 // default 40
	LoopSpacing     float64 // default 18
}

// DefaultOptions returns the stock routing parameters.
func DefaultOptions() Options {
	return Options{ParallelSpacing: 20, CurveBias: 25, LoopHeight: 40, LoopSpacing: 18}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ParallelSpacing > 0 {
		d.ParallelSpacing = o.ParallelSpacing
	}
	if o.CurveBias > 0 {
		d.CurveBias = o.CurveBias
	}
	if o.LoopHeight > 0 {
		d.LoopHeight = o.LoopHeight
	}
	if o.LoopSpacing > 0 {
		d.LoopSpacing = o.LoopSpacing
	}
	return d
}

// Router computes paths. It holds no state besides its options.
type Router struct {
	opts Options
}

// NewRouter creates a router.
func NewRouter(opts Options) *Router {
	return &Router{opts: opts.withDefaults()}
}

// PairKey groups relationships by unordered endpoint pair.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "," + pair[1]
}

type endpoint struct {
	center geometry.Point
	size   geometry.Size
}

// Route computes a path for every relationship whose endpoints exist and have
// positions; others are skipped. Paths come back in document order.
func (r *Router) Route(doc diagram.Document, l diagram.Layout) []Path {
	groups := make(map[string][]string)
	for _, rel := range doc.Relationships {
		k := PairKey(rel.Source, rel.Target)
		groups[k] = append(groups[k], rel.ID)
	}

	paths := make([]Path, 0, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		src, ok := r.endpoint(doc, l, rel.Source)
		if !ok {
			continue
		}
		dst, ok := r.endpoint(doc, l, rel.Target)
		if !ok {
			continue
		}

		group := groups[PairKey(rel.Source, rel.Target)]
		index := indexOf(group, rel.ID)

		var p Path
		switch {
		case rel.SelfLoop():
			p = r.loop(src, rel.ControlOffset, index)
		case rel.ControlOffset != nil:
			mid := src.center.Midpoint(dst.center)
			p = curve(src, dst, mid.Add(*rel.ControlOffset), mid)
		case len(group) > 1:
			p = r.parallel(rel, src, dst, index, len(group))
		default:
			p = straight(src, dst)
		}
		p.RelationshipID = rel.ID
		paths = append(paths, p)
	}
	return paths
}

// RouteOne returns the path of a single relationship.
func (r *Router) RouteOne(doc diagram.Document, l diagram.Layout, relationshipID string) (Path, bool) {
	for _, p := range r.Route(doc, l) {
		if p.RelationshipID == relationshipID {
			return p, true
		}
	}
	return Path{}, false
}

func (r *Router) endpoint(doc diagram.Document, l diagram.Layout, id string) (endpoint, bool) {
	n, ok := doc.Node(id)
	if !ok {
		return endpoint{}, false
	}
	c, ok := l.Position(id)
	if !ok {
		return endpoint{}, false
	}
	return endpoint{center: c, size: n.Size()}, true
}

func straight(src, dst endpoint) Path {
	start := geometry.RectangleIntersection(src.center, dst.center, src.size)
	end := geometry.RectangleIntersection(dst.center, src.center, dst.size)
	mid := src.center.Midpoint(dst.center)
	return Path{
		Kind:     Straight,
		Start:    start,
		Control:  mid,
		End:      end,
		Label:    mid,
		Midpoint: mid,
	}
}

// curve aims both ends at control and puts the label on the curve at t=0.5.
func curve(src, dst endpoint, control, mid geometry.Point) Path {
	start := geometry.RectangleIntersection(src.center, control, src.size)
	end := geometry.RectangleIntersection(dst.center, control, dst.size)
	return Path{
		Kind:     Quadratic,
		Start:    start,
		Control:  control,
		End:      end,
		Label:    geometry.QuadraticMidpoint(start, control, end),
		Midpoint: mid,
	}
}

// parallel fans a bundle of relationships between the same pair. The normal
// is taken in the pair's sorted order so opposite directions share one frame.
func (r *Router) parallel(rel diagram.Relationship, src, dst endpoint, index, count int) Path {
	from, to := src.center, dst.center
	if rel.Source > rel.Target {
		from, to = to, from
	}
	normal := to.Sub(from).Normal()

	offsetIndex := float64(index) - float64(count-1)/2
	sign := 1.0
	if offsetIndex < 0 {
		sign = -1
	}
	offset := offsetIndex*r.opts.ParallelSpacing + sign*r.opts.CurveBias

	mid := src.center.Midpoint(dst.center)
	return curve(src, dst, mid.Add(normal.Scale(offset)), mid)
}

// loop draws a self-relationship as an arc above the node, stacked by index.
func (r *Router) loop(n endpoint, offset *geometry.Point, index int) Path {
	top := n.center.Y - n.size.Height/2
	start := geometry.Pt(n.center.X-n.size.Width/4, top)
	end := geometry.Pt(n.center.X+n.size.Width/4, top)
	anchor := geometry.Pt(n.center.X, top)

	var control geometry.Point
	if offset != nil {
		control = anchor.Add(*offset)
	} else {
		h := r.opts.LoopHeight + float64(index)*r.opts.LoopSpacing
		// A quadratic reaches half way to its control point.
		control = anchor.Add(geometry.Pt(0, -2*h))
	}
	return Path{
		Kind:     Loop,
		Start:    start,
		Control:  control,
		End:      end,
		Label:    geometry.QuadraticMidpoint(start, control, end),
		Midpoint: anchor,
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return 0
}
