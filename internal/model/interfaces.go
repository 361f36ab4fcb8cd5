package model

// Narrow views of the collaborators the move caches and operators consume.
// The vrp package provides the reference implementation.

// Instance exposes the vertices of a problem.
type Instance interface {
	NumberOfVertices() int
	Vertex(id VertexID) Vertex
}

// Route is a sequence of nodes that starts and ends at a depot, so Len
// includes both depot endpoints.
type Route interface {
	Len() int
	VertexAt(position int) VertexID
	Cost() float64
}

// Solution is an indexed set of routes plus the mutation primitives the
// destroy and repair operators apply.
type Solution interface {
	Len() int
	RouteAt(index int) Route
	Find(v VertexID) []NodeLocation
	NonDepotNodes() []NodeLocation
	InsertVertexAfter(after NodeLocation, v VertexID) error
	RemoveVertex(at NodeLocation) error
	RemoveVertices(at []NodeLocation) error
	RemoveRoute(index int) error
}

// Evaluation is the cost oracle. Both methods return the cost of the
// whole route after the hypothetical edit; they must be side-effect free.
type Evaluation interface {
	// EvaluateInsertion prices route with v spliced in after position.
	EvaluateInsertion(route Route, position int, v VertexID) float64
	// EvaluateSplice prices route with every node strictly between left
	// and right dropped, joining left directly to right.
	EvaluateSplice(route Route, left, right int) float64
}

// VertexAtLocation resolves a location to the vertex it currently holds.
func VertexAtLocation(s Solution, at NodeLocation) VertexID {
	return s.RouteAt(at.Route).VertexAt(at.Position)
}
