package vrp

import "lnskit/internal/model"

// Route is a depot-to-depot visit sequence with forward prefix sums of
// distance and load, refreshed after every structural edit.
type Route struct {
	eval     *Evaluation
	vertices []model.VertexID
	fwdDist  []float64
	fwdLoad  []float64
	cost     float64
}

// NewRoute wraps visits (depots excluded) between two depot nodes.
func (e *Evaluation) NewRoute(visits []model.VertexID) *Route {
	depot := e.inst.depot
	vs := make([]model.VertexID, 0, len(visits)+2)
	vs = append(vs, depot)
	vs = append(vs, visits...)
	vs = append(vs, depot)
	r := &Route{eval: e, vertices: vs}
	r.update()
	return r
}

func (r *Route) Len() int                             { return len(r.vertices) }
func (r *Route) VertexAt(position int) model.VertexID { return r.vertices[position] }
func (r *Route) Cost() float64                        { return r.cost }
func (r *Route) Empty() bool                          { return len(r.vertices) == 2 }
func (r *Route) Distance() float64                    { return r.fwdDist[len(r.fwdDist)-1] }
func (r *Route) Load() float64                        { return r.fwdLoad[len(r.fwdLoad)-1] }

// Visits returns the non-depot part of the route.
func (r *Route) Visits() []model.VertexID {
	out := make([]model.VertexID, 0, len(r.vertices)-2)
	return append(out, r.vertices[1:len(r.vertices)-1]...)
}

func (r *Route) clone() *Route {
	return &Route{
		eval:     r.eval,
		vertices: append([]model.VertexID(nil), r.vertices...),
		fwdDist:  append([]float64(nil), r.fwdDist...),
		fwdLoad:  append([]float64(nil), r.fwdLoad...),
		cost:     r.cost,
	}
}

func (r *Route) update() {
	n := len(r.vertices)
	r.fwdDist = r.fwdDist[:0]
	r.fwdLoad = r.fwdLoad[:0]
	var dist, load float64
	for i, v := range r.vertices {
		if i > 0 {
			dist += r.eval.dist[r.vertices[i-1]][v]
		}
		load += r.eval.demand(v)
		r.fwdDist = append(r.fwdDist, dist)
		r.fwdLoad = append(r.fwdLoad, load)
	}
	r.cost = r.eval.price(r.fwdDist[n-1], r.fwdLoad[n-1])
}

func (r *Route) insertAfter(position int, v model.VertexID) {
	r.vertices = append(r.vertices, 0)
	copy(r.vertices[position+2:], r.vertices[position+1:])
	r.vertices[position+1] = v
	r.update()
}

// removePositions drops the given positions; they must be sorted descending.
func (r *Route) removePositions(desc []int) {
	for _, pos := range desc {
		r.vertices = append(r.vertices[:pos], r.vertices[pos+1:]...)
	}
	r.update()
}

// setVisits replaces the interior of the route.
func (r *Route) setVisits(visits []model.VertexID) {
	depot := r.vertices[0]
	r.vertices = append(append(append(r.vertices[:0], depot), visits...), depot)
	r.update()
}
