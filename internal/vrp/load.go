package vrp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site is one located vertex in an instance file.
type Site struct {
	Name       string  `yaml:"name" json:"name"`
	Lat        float64 `yaml:"lat" json:"lat"`
	Lng        float64 `yaml:"lng" json:"lng"`
	Demand     float64 `yaml:"demand,omitempty" json:"demand,omitempty"`
	ServiceSec int     `yaml:"serviceSec,omitempty" json:"serviceSec,omitempty"`
}

// InstanceFile is the on-disk and over-the-wire form of an instance.
type InstanceFile struct {
	Name      string  `yaml:"name" json:"name"`
	Capacity  float64 `yaml:"capacity" json:"capacity"`
	Vehicles  int     `yaml:"vehicles" json:"vehicles"`
	Depot     Site    `yaml:"depot" json:"depot"`
	Stations  []Site  `yaml:"stations,omitempty" json:"stations,omitempty"`
	Customers []Site  `yaml:"customers" json:"customers"`
}

// Build validates the file and produces an Instance.
func (f InstanceFile) Build() (*Instance, error) {
	if len(f.Customers) == 0 {
		return nil, fmt.Errorf("%w: no customers", ErrInvalidInstance)
	}
	b := NewBuilder(f.Name).Capacity(f.Capacity).Depot(f.Depot.Name, f.Depot.Lat, f.Depot.Lng)
	if f.Vehicles != 0 {
		b.Vehicles(f.Vehicles)
	}
	for _, s := range f.Stations {
		b.Station(s.Name, s.Lat, s.Lng)
	}
	for _, c := range f.Customers {
		b.Customer(c.Name, c.Lat, c.Lng, c.Demand, c.ServiceSec)
	}
	return b.Build()
}

// ParseInstance decodes YAML (a superset of JSON) instance data.
func ParseInstance(data []byte) (*Instance, error) {
	var f InstanceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instance: %w", err)
	}
	return f.Build()
}

// LoadInstance reads an instance file; .json files are decoded strictly,
// anything else as YAML.
func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var f InstanceFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse instance %s: %w", path, err)
		}
		return f.Build()
	}
	inst, err := ParseInstance(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}
