package vrp

import (
	"errors"
	"fmt"

	"lnskit/internal/model"
)

var (
	ErrInvalidLocation   = errors.New("vrp: invalid node location")
	ErrDuplicateLocation = errors.New("vrp: duplicate node location")
	ErrUnknownVertex     = errors.New("vrp: unknown vertex")
	ErrInvalidInstance   = errors.New("vrp: invalid instance")
)

// Instance is a single-depot problem with optional replenishment stations.
type Instance struct {
	Name     string
	Capacity float64 // per vehicle, 0 means uncapacitated
	Vehicles int

	vertices  []model.Vertex
	depot     model.VertexID
	stations  []model.VertexID
	customers []model.VertexID
}

// NumberOfVertices implements model.Instance.
func (in *Instance) NumberOfVertices() int { return len(in.vertices) }

// Vertex implements model.Instance. It panics on an unknown id, like a slice index.
func (in *Instance) Vertex(id model.VertexID) model.Vertex { return in.vertices[id] }

func (in *Instance) Depot() model.Vertex { return in.vertices[in.depot] }

func (in *Instance) Vertices() []model.Vertex {
	return append([]model.Vertex(nil), in.vertices...)
}

func (in *Instance) Stations() []model.Vertex { return in.pick(in.stations) }

func (in *Instance) Customers() []model.Vertex { return in.pick(in.customers) }

func (in *Instance) CustomerIDs() []model.VertexID {
	return append([]model.VertexID(nil), in.customers...)
}

func (in *Instance) pick(ids []model.VertexID) []model.Vertex {
	out := make([]model.Vertex, len(ids))
	for i, id := range ids {
		out[i] = in.vertices[id]
	}
	return out
}

// Builder assigns dense ids in insertion order. The depot is always id 0.
type Builder struct {
	name      string
	capacity  float64
	vehicles  int
	depot     *model.Vertex
	stations  []model.Vertex
	customers []model.Vertex
}

func NewBuilder(name string) *Builder { return &Builder{name: name, vehicles: 1} }

func (b *Builder) Capacity(c float64) *Builder { b.capacity = c; return b }

func (b *Builder) Vehicles(n int) *Builder { b.vehicles = n; return b }

func (b *Builder) Depot(name string, lat, lng float64) *Builder {
	b.depot = &model.Vertex{Name: name, Kind: model.KindDepot, Lat: lat, Lng: lng}
	return b
}

func (b *Builder) Station(name string, lat, lng float64) *Builder {
	b.stations = append(b.stations, model.Vertex{Name: name, Kind: model.KindStation, Lat: lat, Lng: lng})
	return b
}

func (b *Builder) Customer(name string, lat, lng, demand float64, serviceSec int) *Builder {
	b.customers = append(b.customers, model.Vertex{
		Name: name, Kind: model.KindCustomer, Lat: lat, Lng: lng, Demand: demand, ServiceSec: serviceSec,
	})
	return b
}

// Build validates and freezes the instance. Stations get the ids right after
// the depot, customers follow.
func (b *Builder) Build() (*Instance, error) {
	if b.depot == nil {
		return nil, fmt.Errorf("%w: missing depot", ErrInvalidInstance)
	}
	if b.vehicles < 1 {
		return nil, fmt.Errorf("%w: need at least one vehicle, got %d", ErrInvalidInstance, b.vehicles)
	}
	if b.capacity < 0 {
		return nil, fmt.Errorf("%w: negative capacity", ErrInvalidInstance)
	}
	in := &Instance{Name: b.name, Capacity: b.capacity, Vehicles: b.vehicles}
	add := func(v model.Vertex) model.VertexID {
		v.ID = model.VertexID(len(in.vertices))
		in.vertices = append(in.vertices, v)
		return v.ID
	}
	in.depot = add(*b.depot)
	for _, s := range b.stations {
		in.stations = append(in.stations, add(s))
	}
	for _, c := range b.customers {
		if c.Demand < 0 {
			return nil, fmt.Errorf("%w: customer %q has negative demand", ErrInvalidInstance, c.Name)
		}
		in.customers = append(in.customers, add(c))
	}
	return in, nil
}
