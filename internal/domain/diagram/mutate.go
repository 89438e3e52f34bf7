package diagram

import (
	"strings"

	"github.com/google/uuid"

	apperrors "brain2-canvas/internal/errors"
)

// replaceAt returns a copy of s with element i replaced by v.
func replaceAt[T any](s []T, i int, v T) []T {
	out := make([]T, len(s))
	copy(out, s)
	out[i] = v
	return out
}

// removeWhere returns a copy of s without the elements matching drop, and
// whether anything was removed.
func removeWhere[T any](s []T, drop func(T) bool) ([]T, bool) {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out, len(out) != len(s)
}

// UpdateNode applies fn to the node with id. The id cannot change.
func (d Document) UpdateNode(id string, fn func(Node) Node) (Document, bool) {
	i, ok := d.index().nodes[id]
	if !ok {
		return d, false
	}
	n := fn(d.Nodes[i])
	n.ID = id
	d.Nodes = replaceAt(d.Nodes, i, n)
	return d.reindexed(), true
}

// UpdateRelationship applies fn to the relationship with id. Id and
// endpoints cannot change.
func (d Document) UpdateRelationship(id string, fn func(Relationship) Relationship) (Document, bool) {
	i, ok := d.index().relationships[id]
	if !ok {
		return d, false
	}
	old := d.Relationships[i]
	r := fn(old)
	r.ID, r.Source, r.Target = old.ID, old.Source, old.Target
	d.Relationships = replaceAt(d.Relationships, i, r)
	return d.reindexed(), true
}

// UpdateCluster applies fn to the cluster with id.
func (d Document) UpdateCluster(id string, fn func(Cluster) Cluster) (Document, bool) {
	for i, c := range d.Clusters {
		if c.ID == id {
			c = fn(c)
			c.ID = id
			d.Clusters = replaceAt(d.Clusters, i, c)
			return d, true
		}
	}
	return d, false
}

// UpdateAnnotation applies fn to the annotation with id.
func (d Document) UpdateAnnotation(id string, fn func(Annotation) Annotation) (Document, bool) {
	for i, a := range d.Annotations {
		if a.ID == id {
			a = fn(a)
			a.ID = id
			d.Annotations = replaceAt(d.Annotations, i, a)
			return d, true
		}
	}
	return d, false
}

// UpdateImage applies fn to the image with id.
func (d Document) UpdateImage(id string, fn func(Image) Image) (Document, bool) {
	for i, im := range d.Images {
		if im.ID == id {
			im = fn(im)
			im.ID = id
			d.Images = replaceAt(d.Images, i, im)
			return d, true
		}
	}
	return d, false
}

// UpdateProperty applies fn to a property wherever it lives.
func (d Document) UpdateProperty(propertyID string, fn func(Property) Property) (Document, bool) {
	o, ok := d.PropertyOwner(propertyID)
	if !ok {
		return d, false
	}
	update := func(props []Property) []Property {
		for i, p := range props {
			if p.ID == propertyID {
				p = fn(p)
				p.ID = propertyID
				return replaceAt(props, i, p)
			}
		}
		return props
	}
	switch o.Kind {
	case OwnerNode:
		return d.UpdateNode(o.ID, func(n Node) Node {
			n.Properties = update(n.Properties)
			return n
		})
	case OwnerRelationship:
		return d.UpdateRelationship(o.ID, func(r Relationship) Relationship {
			r.Properties = update(r.Properties)
			return r
		})
	}
	return d, false
}

// NewNode builds a node with a generated id that is free in d.
func (d Document) NewNode(name string) Node {
	return Node{ID: newID("node", d.nodeTaken), Name: name, Properties: []Property{}}
}

// AddNode appends n. Duplicate ids are rejected.
func (d Document) AddNode(n Node) (Document, error) {
	if strings.TrimSpace(n.ID) == "" || strings.Contains(n.ID, PropertyIDSeparator) {
		return d, apperrors.Validation(apperrors.CodeValidationFailed, "invalid node id").
			WithResource("node").WithDetails(n.ID).Build()
	}
	if d.nodeTaken(n.ID) {
		return d, apperrors.Conflict(apperrors.CodeDuplicateID, "node id already exists").
			WithResource("node").WithDetails(n.ID).Build()
	}
	if n.Properties == nil {
		n.Properties = []Property{}
	}
	d.Nodes = append(d.Nodes[:len(d.Nodes):len(d.Nodes)], n)
	return d.reindexed(), nil
}

// AddProperty appends a property named name to the node or relationship ownerID.
func (d Document) AddProperty(ownerID, name string) (Document, Property, bool) {
	p := Property{ID: NewPropertyID(ownerID), Name: name}
	add := func(props []Property) []Property {
		return append(props[:len(props):len(props)], p)
	}
	if _, ok := d.Node(ownerID); ok {
		d, _ = d.UpdateNode(ownerID, func(n Node) Node {
			n.Properties = add(n.Properties)
			return n
		})
		return d, p, true
	}
	if _, ok := d.Relationship(ownerID); ok {
		d, _ = d.UpdateRelationship(ownerID, func(r Relationship) Relationship {
			r.Properties = add(r.Properties)
			return r
		})
		return d, p, true
	}
	return d, Property{}, false
}

// AddRelationship appends r, filling in a generated id and default styles.
// Both endpoints must exist.
func (d Document) AddRelationship(r Relationship) (Document, Relationship, error) {
	for _, end := range []string{r.Source, r.Target} {
		if !d.nodeTaken(end) {
			return d, Relationship{}, apperrors.NotFound(apperrors.CodeNodeNotFound, "relationship endpoint not found").
				WithResource("relationship").WithDetails(end).Build()
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if d.relationshipTaken(r.ID) {
		return d, Relationship{}, apperrors.Conflict(apperrors.CodeDuplicateID, "relationship id already exists").
			WithResource("relationship").WithDetails(r.ID).Build()
	}
	if r.LinkStyle == "" {
		r.LinkStyle = LinkSolid
	}
	if r.ArrowStyle == "" {
		r.ArrowStyle = ArrowForward
	}
	if r.Properties == nil {
		r.Properties = []Property{}
	}
	d.Relationships = append(d.Relationships[:len(d.Relationships):len(d.Relationships)], r)
	return d.reindexed(), r, nil
}

// Link creates the default relationship produced by linking two nodes on the
// canvas: default label, solid line, no arrowheads.
func (d Document) Link(source, target string) (Document, Relationship, error) {
	return d.AddRelationship(Relationship{
		Source:     source,
		Target:     target,
		Label:      DefaultRelationshipLabel,
		LinkStyle:  LinkSolid,
		ArrowStyle: ArrowNone,
	})
}

// Group creates a cluster from the given node ids. Unknown ids are ignored,
// and members are taken out of any cluster they already belong to; clusters
// left empty are dropped.
func (d Document) Group(name string, nodeIDs []string) (Document, Cluster, bool) {
	var members []string
	seen := make(map[string]bool)
	for _, id := range nodeIDs {
		if d.nodeTaken(id) && !seen[id] {
			members = append(members, id)
			seen[id] = true
		}
	}
	if len(members) == 0 {
		return d, Cluster{}, false
	}

	clusters := make([]Cluster, 0, len(d.Clusters)+1)
	for _, c := range d.Clusters {
		kept, changed := removeWhere(c.NodeIDs, func(id string) bool { return seen[id] })
		if !changed {
			clusters = append(clusters, c)
			continue
		}
		if len(kept) > 0 {
			c.NodeIDs = kept
			clusters = append(clusters, c)
		}
	}

	c := Cluster{ID: newID("cluster", d.clusterTaken), Name: name, NodeIDs: members}
	d.Clusters = append(clusters, c)
	return d, c, true
}

// AddCluster appends c as is. Duplicate ids are rejected.
func (d Document) AddCluster(c Cluster) (Document, error) {
	if c.ID == "" {
		c.ID = newID("cluster", d.clusterTaken)
	} else if d.clusterTaken(c.ID) {
		return d, apperrors.Conflict(apperrors.CodeDuplicateID, "cluster id already exists").
			WithResource("cluster").WithDetails(c.ID).Build()
	}
	d.Clusters = append(d.Clusters[:len(d.Clusters):len(d.Clusters)], c)
	return d, nil
}

// Ungroup removes the cluster record only; members and their positions stay.
func (d Document) Ungroup(clusterID string) (Document, bool) {
	var ok bool
	d.Clusters, ok = removeWhere(d.Clusters, func(c Cluster) bool { return c.ID == clusterID })
	return d, ok
}

// AddAnnotation appends a note. An empty id is generated; zero width gets the default.
func (d Document) AddAnnotation(a Annotation) (Document, Annotation) {
	if a.ID == "" || d.annotationTaken(a.ID) {
		a.ID = newID("note", d.annotationTaken)
	}
	if a.Width <= 0 {
		a.Width = DefaultAnnotationWidth
	}
	d.Annotations = append(d.Annotations[:len(d.Annotations):len(d.Annotations)], a)
	return d, a
}

// AddImage appends an image. An empty id is generated.
func (d Document) AddImage(im Image) (Document, Image) {
	if im.ID == "" || d.imageTaken(im.ID) {
		im.ID = newID("image", d.imageTaken)
	}
	d.Images = append(d.Images[:len(d.Images):len(d.Images)], im)
	return d, im
}

// DeleteNode removes a node together with its incident relationships, strips
// it from every cluster and drops clusters left without members.
func (d Document) DeleteNode(id string) (Document, bool) {
	var ok bool
	d.Nodes, ok = removeWhere(d.Nodes, func(n Node) bool { return n.ID == id })
	if !ok {
		return d, false
	}
	d.Relationships, _ = removeWhere(d.Relationships, func(r Relationship) bool { return r.Touches(id) })

	clusters := make([]Cluster, 0, len(d.Clusters))
	for _, c := range d.Clusters {
		kept, changed := removeWhere(c.NodeIDs, func(m string) bool { return m == id })
		if changed {
			if len(kept) == 0 {
				continue
			}
			c.NodeIDs = kept
		}
		clusters = append(clusters, c)
	}
	d.Clusters = clusters
	return d.reindexed(), true
}

// DeleteRelationship removes a relationship and all its properties.
func (d Document) DeleteRelationship(id string) (Document, bool) {
	var ok bool
	d.Relationships, ok = removeWhere(d.Relationships, func(r Relationship) bool { return r.ID == id })
	if !ok {
		return d, false
	}
	return d.reindexed(), true
}

// DeleteProperty removes only the given property from its owner.
func (d Document) DeleteProperty(propertyID string) (Document, bool) {
	o, ok := d.PropertyOwner(propertyID)
	if !ok {
		return d, false
	}
	drop := func(p Property) bool { return p.ID == propertyID }
	switch o.Kind {
	case OwnerNode:
		return d.UpdateNode(o.ID, func(n Node) Node {
			n.Properties, _ = removeWhere(n.Properties, drop)
			return n
		})
	case OwnerRelationship:
		return d.UpdateRelationship(o.ID, func(r Relationship) Relationship {
			r.Properties, _ = removeWhere(r.Properties, drop)
			return r
		})
	}
	return d, false
}

// DeleteAnnotation removes a note.
func (d Document) DeleteAnnotation(id string) (Document, bool) {
	var ok bool
	d.Annotations, ok = removeWhere(d.Annotations, func(a Annotation) bool { return a.ID == id })
	return d, ok
}

// DeleteImage removes an image.
func (d Document) DeleteImage(id string) (Document, bool) {
	var ok bool
	d.Images, ok = removeWhere(d.Images, func(im Image) bool { return im.ID == id })
	return d, ok
}

// CopySuffix marks ids produced by DuplicateNode.
const CopySuffix = "_copy"

// DuplicateNode copies a node's name, colour and properties under a new id.
// The id is <base>_copy_<8 hex>, where base has any earlier copy suffix
// stripped, so repeated duplication never chains suffixes. Relationships and
// cluster membership are not copied.
func (d Document) DuplicateNode(id string) (Document, Node, bool) {
	src, ok := d.Node(id)
	if !ok {
		return d, Node{}, false
	}
	base := id
	if i := strings.Index(base, CopySuffix+"_"); i > 0 {
		base = base[:i]
	}
	n := Node{
		ID:         newID(base+CopySuffix, d.nodeTaken),
		Name:       src.Name,
		Color:      src.Color,
		Properties: make([]Property, 0, len(src.Properties)),
	}
	for _, p := range src.Properties {
		n.Properties = append(n.Properties, Property{ID: NewPropertyID(n.ID), Name: p.Name})
	}
	d.Nodes = append(d.Nodes[:len(d.Nodes):len(d.Nodes)], n)
	return d.reindexed(), n, true
}
