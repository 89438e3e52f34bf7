package diagram

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "brain2-canvas/internal/errors"
)

// MergePolicy decides what happens when merged content reuses existing ids.
type MergePolicy string

const (
	// MergeRename gives colliding incoming entities fresh ids and rewires
	// every reference to them.
	MergeRename MergePolicy = "rename"
	// MergeReject refuses the whole merge on the first collision.
	MergeReject MergePolicy = "reject"
)

// MergeResult reports how incoming node ids were mapped.
type MergeResult struct {
	Document Document
	// NodeIDs maps every incoming node id to its id in the merged document.
	NodeIDs map[string]string
	// PropertyIDs maps incoming property ids that had to change.
	PropertyIDs map[string]string
	Renamed     int
}

// Merge appends incoming's entities to d according to policy. d is never
// modified; on error the receiver is returned unchanged.
func (d Document) Merge(incoming Document, policy MergePolicy) (MergeResult, error) {
	if err := incoming.CheckUnique(); err != nil {
		return MergeResult{Document: d}, err
	}

	res := MergeResult{
		NodeIDs:     make(map[string]string, len(incoming.Nodes)),
		PropertyIDs: make(map[string]string),
	}

	taken := make(map[string]bool, len(d.Nodes)+len(incoming.Nodes))
	for _, n := range d.Nodes {
		taken[n.ID] = true
	}
	for _, n := range incoming.Nodes {
		if !taken[n.ID] {
			res.NodeIDs[n.ID] = n.ID
		}
	}
	for id := range res.NodeIDs {
		taken[id] = true
	}
	for _, n := range incoming.Nodes {
		if _, free := res.NodeIDs[n.ID]; free {
			continue
		}
		if policy == MergeReject {
			return MergeResult{Document: d}, apperrors.Conflict(apperrors.CodeDuplicateID, "node id already exists").
				WithResource("node").WithDetails(n.ID).Build()
		}
		id := nextFree(n.ID, taken)
		taken[id] = true
		res.NodeIDs[n.ID] = id
		res.Renamed++
	}

	out := d
	out.Nodes = make([]Node, 0, len(d.Nodes)+len(incoming.Nodes))
	out.Nodes = append(out.Nodes, d.Nodes...)
	for _, n := range incoming.Nodes {
		id := res.NodeIDs[n.ID]
		n.Properties = res.remapProperties(id, n.ID, n.Properties)
		n.ID = id
		out.Nodes = append(out.Nodes, n)
	}

	for _, r := range incoming.Relationships {
		if d.relationshipTaken(r.ID) {
			if policy == MergeReject {
				return MergeResult{Document: d}, apperrors.Conflict(apperrors.CodeDuplicateID, "relationship id already exists").
					WithResource("relationship").WithDetails(r.ID).Build()
			}
			newRelID := uuid.NewString()
			r.Properties = res.remapProperties(newRelID, r.ID, r.Properties)
			r.ID = newRelID
			res.Renamed++
		}
		r.Source = res.mapNode(r.Source)
		r.Target = res.mapNode(r.Target)
		out.Relationships = append(out.Relationships[:len(out.Relationships):len(out.Relationships)], r)
	}

	for _, c := range incoming.Clusters {
		if d.clusterTaken(c.ID) {
			if policy == MergeReject {
				return MergeResult{Document: d}, apperrors.Conflict(apperrors.CodeDuplicateID, "cluster id already exists").
					WithResource("cluster").WithDetails(c.ID).Build()
			}
			c.ID = newID("cluster", out.clusterTaken)
			res.Renamed++
		}
		members := make([]string, len(c.NodeIDs))
		for i, m := range c.NodeIDs {
			members[i] = res.mapNode(m)
		}
		c.NodeIDs = members
		out.Clusters = append(out.Clusters[:len(out.Clusters):len(out.Clusters)], c)
	}

	for _, a := range incoming.Annotations {
		if d.annotationTaken(a.ID) {
			if policy == MergeReject {
				return MergeResult{Document: d}, apperrors.Conflict(apperrors.CodeDuplicateID, "annotation id already exists").
					WithResource("annotation").WithDetails(a.ID).Build()
			}
			a.ID = ""
			res.Renamed++
		}
		out, _ = out.AddAnnotation(a)
	}

	for _, im := range incoming.Images {
		if d.imageTaken(im.ID) {
			if policy == MergeReject {
				return MergeResult{Document: d}, apperrors.Conflict(apperrors.CodeDuplicateID, "image id already exists").
					WithResource("image").WithDetails(im.ID).Build()
			}
			im.ID = ""
			res.Renamed++
		}
		out, _ = out.AddImage(im)
	}

	res.Document = out.reindexed()
	return res, nil
}

func (r MergeResult) mapNode(id string) string {
	if mapped, ok := r.NodeIDs[id]; ok {
		return mapped
	}
	return id
}

// remapProperties rewrites property ids so their prefix names the new owner.
func (r MergeResult) remapProperties(newOwner, oldOwner string, props []Property) []Property {
	if newOwner == oldOwner {
		return props
	}
	out := make([]Property, len(props))
	for i, p := range props {
		suffix := strings.TrimPrefix(p.ID, oldOwner+PropertyIDSeparator)
		if suffix == p.ID {
			suffix = uuid.NewString()
		}
		id := newOwner + PropertyIDSeparator + suffix
		r.PropertyIDs[p.ID] = id
		out[i] = Property{ID: id, Name: p.Name}
	}
	return out
}

func nextFree(id string, taken map[string]bool) string {
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", id, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// CheckUnique reports the first id used twice within one entity kind, or a
// property id used twice anywhere in the document.
func (d Document) CheckUnique() error {
	dup := func(kind, id string) error {
		return apperrors.Validation(apperrors.CodeDuplicateID, "duplicate "+kind+" id").
			WithResource(kind).WithDetails(id).Build()
	}

	seen := make(map[string]bool)
	props := make(map[string]bool)
	checkProps := func(ps []Property) error {
		for _, p := range ps {
			if props[p.ID] {
				return dup("property", p.ID)
			}
			props[p.ID] = true
		}
		return nil
	}

	for _, n := range d.Nodes {
		if seen[n.ID] {
			return dup("node", n.ID)
		}
		seen[n.ID] = true
		if err := checkProps(n.Properties); err != nil {
			return err
		}
	}
	clear(seen)
	for _, r := range d.Relationships {
		if seen[r.ID] {
			return dup("relationship", r.ID)
		}
		seen[r.ID] = true
		if err := checkProps(r.Properties); err != nil {
			return err
		}
	}
	clear(seen)
	for _, c := range d.Clusters {
		if seen[c.ID] {
			return dup("cluster", c.ID)
		}
		seen[c.ID] = true
	}
	clear(seen)
	for _, a := range d.Annotations {
		if seen[a.ID] {
			return dup("annotation", a.ID)
		}
		seen[a.ID] = true
	}
	clear(seen)
	for _, im := range d.Images {
		if seen[im.ID] {
			return dup("image", im.ID)
		}
		seen[im.ID] = true
	}
	return nil
}

// Problem is a dangling reference found by Check.
type Problem struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Missing string `json:"missing"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s references missing node %s", p.Kind, p.ID, p.Missing)
}

// Check lists relationships and cluster memberships that reference nodes not
// in the document. Rendering tolerates these; Check exists for reporting.
func (d Document) Check() []Problem {
	var out []Problem
	for _, r := range d.Relationships {
		for _, end := range []string{r.Source, r.Target} {
			if !d.nodeTaken(end) {
				out = append(out, Problem{Kind: "relationship", ID: r.ID, Missing: end})
			}
		}
	}
	for _, c := range d.Clusters {
		for _, m := range c.NodeIDs {
			if !d.nodeTaken(m) {
				out = append(out, Problem{Kind: "cluster", ID: c.ID, Missing: m})
			}
		}
	}
	return out
}
