// Package catalog lists the recyclable material types requesters can put in
// a pickup, with the unit each one is usually measured in.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/collection-engine/generic"
)

// Material describes one recyclable material type.
type Material struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Icon        string       `json:"icon,omitempty"`
	Color       string       `json:"color,omitempty"`
	DefaultUnit generic.Unit `json:"default_unit"`
}

// Catalog is an ordered, read-only set of materials.
type Catalog struct {
	materials []Material
	byID      map[string]int
}

// New builds a catalog, rejecting blank or duplicate ids.
func New(materials []Material) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(materials))}
	for _, m := range materials {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("material id is required")
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate material id %q", m.ID)
		}
		if m.DefaultUnit == "" {
			m.DefaultUnit = generic.UnitKilograms
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		c.byID[m.ID] = len(c.materials)
		c.materials = append(c.materials, m)
	}
	return c, nil
}

// Default is the built-in catalog.
func Default() *Catalog {
	c, _ := New([]Material{
		{ID: "paper", Name: "Paper", Icon: "file-text", Color: "#1E88E5", DefaultUnit: generic.UnitKilograms},
		{ID: "cardboard", Name: "Cardboard", Icon: "package", Color: "#8D6E63", DefaultUnit: generic.UnitKilograms},
		{ID: "plastic", Name: "Plastic", Icon: "cup-soda", Color: "#E53935", DefaultUnit: generic.UnitBags},
		{ID: "glass", Name: "Glass", Icon: "wine", Color: "#43A047", DefaultUnit: generic.UnitUnits},
		{ID: "metal", Name: "Metal", Icon: "nut", Color: "#FDD835", DefaultUnit: generic.UnitKilograms},
		{ID: "cooking_oil", Name: "Cooking oil", Icon: "droplet", Color: "#FB8C00", DefaultUnit: generic.UnitLiters},
		{ID: "electronics", Name: "Electronics", Icon: "cpu", Color: "#546E7A", DefaultUnit: generic.UnitUnits},
	})
	return c
}

// Load reads a JSON array of materials from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var materials []Material
	if err := json.Unmarshal(data, &materials); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(materials)
}

// Get looks a material up by id.
func (c *Catalog) Get(id string) (Material, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Material{}, false
	}
	return c.materials[i], true
}

// All returns the materials in catalog order.
func (c *Catalog) All() []Material {
	return append([]Material(nil), c.materials...)
}

// UnitFor returns the default unit of id, or kilograms for unknown ids.
func (c *Catalog) UnitFor(id string) generic.Unit {
	if m, ok := c.Get(id); ok {
		return m.DefaultUnit
	}
	return generic.UnitKilograms
}
