package model

import "fmt"

// VertexID identifies a vertex of an instance. Ids are dense: 0..n-1.
type VertexID int

// VertexKind is the capability set of a vertex.
type VertexKind uint8

const (
	KindCustomer VertexKind = iota
	KindDepot
	KindStation
)

func (k VertexKind) String() string {
	switch k {
	case KindDepot:
		return "depot"
	case KindStation:
		return "station"
	default:
		return "customer"
	}
}

// Vertex is owned by the instance. Caches only ever store the id.
type Vertex struct {
	ID         VertexID
	Name       string
	Kind       VertexKind
	Lat, Lng   float64
	Demand     float64
	ServiceSec int
}

func (v Vertex) IsDepot() bool    { return v.Kind == KindDepot }
func (v Vertex) IsStation() bool  { return v.Kind == KindStation }
func (v Vertex) IsCustomer() bool { return v.Kind == KindCustomer }

// NodeLocation addresses a slot inside a route. It is a volatile address:
// valid only until that route is structurally edited.
type NodeLocation struct {
	Route    int
	Position int
}

// Less orders locations by route, then by position.
func (l NodeLocation) Less(o NodeLocation) bool {
	if l.Route != o.Route {
		return l.Route < o.Route
	}
	return l.Position < o.Position
}

// Compare returns -1, 0 or +1 following the route-then-position order.
func (l NodeLocation) Compare(o NodeLocation) int {
	switch {
	case l == o:
		return 0
	case l.Less(o):
		return -1
	default:
		return 1
	}
}

func (l NodeLocation) String() string { return fmt.Sprintf("(%d,%d)", l.Route, l.Position) }

// InsertionMove inserts VertexID immediately after the node at AfterNode.
type InsertionMove struct {
	VertexID  VertexID
	AfterNode NodeLocation
	DeltaCost float64
}

// RemovalMove removes the node currently at NodeLocation. A negative
// DeltaCost means the removal lowers the route cost.
type RemovalMove struct {
	VertexID     VertexID
	NodeLocation NodeLocation
	DeltaCost    float64
}
