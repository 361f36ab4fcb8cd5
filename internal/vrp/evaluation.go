package vrp

import (
	"math"

	"lnskit/internal/model"
)

// Evaluation prices routes as travelled distance plus a linear penalty on
// load above vehicle capacity.
type Evaluation struct {
	inst            *Instance
	dist            [][]float64
	DistanceWeight  float64
	OverloadPenalty float64
}

// NewEvaluation precomputes the arc matrix of inst.
func NewEvaluation(inst *Instance, overloadPenalty float64) *Evaluation {
	n := inst.NumberOfVertices()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		a := inst.vertices[i]
		for j := range dist[i] {
			b := inst.vertices[j]
			dist[i][j] = haversine(a.Lat, a.Lng, b.Lat, b.Lng)
		}
	}
	return &Evaluation{inst: inst, dist: dist, DistanceWeight: 1, OverloadPenalty: overloadPenalty}
}

func (e *Evaluation) Instance() *Instance { return e.inst }

// Distance is the arc length in metres between two vertices.
func (e *Evaluation) Distance(a, b model.VertexID) float64 { return e.dist[a][b] }

func (e *Evaluation) price(distance, load float64) float64 {
	c := e.DistanceWeight * distance
	if capacity := e.inst.Capacity; capacity > 0 && load > capacity {
		c += e.OverloadPenalty * (load - capacity)
	}
	return c
}

func (e *Evaluation) demand(v model.VertexID) float64 { return e.inst.vertices[v].Demand }

// EvaluateInsertion implements model.Evaluation.
func (e *Evaluation) EvaluateInsertion(route model.Route, position int, v model.VertexID) float64 {
	a, b := route.VertexAt(position), route.VertexAt(position+1)
	distance, load := e.summarize(route)
	distance += e.dist[a][v] + e.dist[v][b] - e.dist[a][b]
	return e.price(distance, load+e.demand(v))
}

// EvaluateSplice implements model.Evaluation.
func (e *Evaluation) EvaluateSplice(route model.Route, left, right int) float64 {
	if r, ok := route.(*Route); ok && r.eval == e {
		last := len(r.vertices) - 1
		distance := r.fwdDist[left] + e.dist[r.vertices[left]][r.vertices[right]] + r.fwdDist[last] - r.fwdDist[right]
		load := r.fwdLoad[last] - (r.fwdLoad[right-1] - r.fwdLoad[left])
		return e.price(distance, load)
	}
	var distance, load float64
	prev := route.VertexAt(0)
	for pos := 1; pos < route.Len(); pos++ {
		if pos > left && pos < right {
			continue
		}
		v := route.VertexAt(pos)
		distance += e.dist[prev][v]
		load += e.demand(v)
		prev = v
	}
	return e.price(distance, load)
}

// summarize returns total distance and load; O(1) for routes built by e.
func (e *Evaluation) summarize(route model.Route) (float64, float64) {
	if r, ok := route.(*Route); ok && r.eval == e {
		last := len(r.vertices) - 1
		return r.fwdDist[last], r.fwdLoad[last]
	}
	var distance, load float64
	for pos := 1; pos < route.Len(); pos++ {
		distance += e.dist[route.VertexAt(pos-1)][route.VertexAt(pos)]
		load += e.demand(route.VertexAt(pos))
	}
	return distance, load
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
