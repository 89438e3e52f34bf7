package diagram

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// PropertyIDSeparator joins an owner id and a unique suffix in property ids.
const PropertyIDSeparator = "::"

// OwnerKind tells whether a property hangs off a node or a relationship.
type OwnerKind int

const (
	OwnerNode OwnerKind = iota + 1
	OwnerRelationship
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerNode:
		return "node"
	case OwnerRelationship:
		return "relationship"
	default:
		return "unknown"
	}
}

// Owner identifies the entity holding a property.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// Document is the semantic graph of one diagram. Treat it as immutable:
// every mutating method returns a new Document.
type Document struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Context       string         `json:"context"`
	Lesson        string         `json:"lesson"`
	Nodes         []Node         `json:"nodes" validate:"dive"`
	Relationships []Relationship `json:"relationships" validate:"dive"`
	Clusters      []Cluster      `json:"clusters" validate:"dive"`
	Annotations   []Annotation   `json:"annotations" validate:"dive"`
	Images        []Image        `json:"images" validate:"dive"`

	idx *index
}

// index is rebuilt whenever a new Document is produced and never mutated
// afterwards, so Documents sharing it stay consistent.
type index struct {
	nodes         map[string]int
	relationships map[string]int
	owners        map[string]Owner
}

// New returns an empty document with the given title.
func New(title string) Document {
	return Document{Title: title}.normalized()
}

func (d Document) normalized() Document {
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Relationships == nil {
		d.Relationships = []Relationship{}
	}
	if d.Clusters == nil {
		d.Clusters = []Cluster{}
	}
	if d.Annotations == nil {
		d.Annotations = []Annotation{}
	}
	if d.Images == nil {
		d.Images = []Image{}
	}
	return d.reindexed()
}

func (d Document) reindexed() Document {
	idx := &index{
		nodes:         make(map[string]int, len(d.Nodes)),
		relationships: make(map[string]int, len(d.Relationships)),
		owners:        make(map[string]Owner),
	}
	for i, n := range d.Nodes {
		idx.nodes[n.ID] = i
		for _, p := range n.Properties {
			idx.owners[p.ID] = Owner{Kind: OwnerNode, ID: n.ID}
		}
	}
	for i, r := range d.Relationships {
		idx.relationships[r.ID] = i
		for _, p := range r.Properties {
			idx.owners[p.ID] = Owner{Kind: OwnerRelationship, ID: r.ID}
		}
	}
	d.idx = idx
	return d
}

func (d Document) index() *index {
	if d.idx == nil {
		return d.reindexed().idx
	}
	return d.idx
}

// MarshalJSON writes empty collections as [] rather than null so encoded
// documents survive a decode/encode round trip unchanged.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	return json.Marshal(plain(d.normalized()))
}

// UnmarshalJSON decodes a document and rebuilds its lookup index.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Document(p).normalized()
	return nil
}

// Node returns the node with id.
func (d Document) Node(id string) (Node, bool) {
	i, ok := d.index().nodes[id]
	if !ok {
		return Node{}, false
	}
	return d.Nodes[i], true
}

// Relationship returns the relationship with id.
func (d Document) Relationship(id string) (Relationship, bool) {
	i, ok := d.index().relationships[id]
	if !ok {
		return Relationship{}, false
	}
	return d.Relationships[i], true
}

// Cluster returns the cluster with id.
func (d Document) Cluster(id string) (Cluster, bool) {
	for _, c := range d.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return Cluster{}, false
}

// ClusterOf returns the cluster that contains nodeID.
func (d Document) ClusterOf(nodeID string) (Cluster, bool) {
	for _, c := range d.Clusters {
		if c.Has(nodeID) {
			return c, true
		}
	}
	return Cluster{}, false
}

// Annotation returns the annotation with id.
func (d Document) Annotation(id string) (Annotation, bool) {
	for _, a := range d.Annotations {
		if a.ID == id {
			return a, true
		}
	}
	return Annotation{}, false
}

// Image returns the image with id.
func (d Document) Image(id string) (Image, bool) {
	for _, im := range d.Images {
		if im.ID == id {
			return im, true
		}
	}
	return Image{}, false
}

// PropertyOwner looks up which entity owns a property.
func (d Document) PropertyOwner(propertyID string) (Owner, bool) {
	o, ok := d.index().owners[propertyID]
	return o, ok
}

// Property returns a property and its owner.
func (d Document) Property(propertyID string) (Property, Owner, bool) {
	o, ok := d.PropertyOwner(propertyID)
	if !ok {
		return Property{}, Owner{}, false
	}
	var props []Property
	switch o.Kind {
	case OwnerNode:
		n, _ := d.Node(o.ID)
		props = n.Properties
	case OwnerRelationship:
		r, _ := d.Relationship(o.ID)
		props = r.Properties
	}
	for _, p := range props {
		if p.ID == propertyID {
			return p, o, true
		}
	}
	return Property{}, Owner{}, false
}

// NewPropertyID returns a fresh property id for ownerID.
func NewPropertyID(ownerID string) string {
	return ownerID + PropertyIDSeparator + uuid.NewString()
}

// PropertyIDOwner recovers the owner prefix from an interchange property id.
func PropertyIDOwner(propertyID string) (string, bool) {
	i := strings.LastIndex(propertyID, PropertyIDSeparator)
	if i <= 0 {
		return "", false
	}
	return propertyID[:i], true
}

// newID returns prefix_<8 hex chars> that is not taken.
func newID(prefix string, taken func(string) bool) string {
	for {
		id := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if !taken(id) {
			return id
		}
	}
}

func (d Document) nodeTaken(id string) bool {
	_, ok := d.Node(id)
	return ok
}

func (d Document) relationshipTaken(id string) bool {
	_, ok := d.Relationship(id)
	return ok
}

func (d Document) clusterTaken(id string) bool {
	_, ok := d.Cluster(id)
	return ok
}

func (d Document) annotationTaken(id string) bool {
	_, ok := d.Annotation(id)
	return ok
}

func (d Document) imageTaken(id string) bool {
	_, ok := d.Image(id)
	return ok
}
