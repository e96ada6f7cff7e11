package model

import "slices"

// Part is a spare part kept in stock.
type Part struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PartNumber   string   `json:"partNumber"`
	Stock        int      `json:"stock"`
	MinStock     int      `json:"minStock"`
	MachineTypes []string `json:"machineTypes"`
}

// Low reports whether the stock has dropped below the configured minimum.
func (p *Part) Low() bool {
	return p.Stock < p.MinStock
}

// Clone returns a deep copy of p.
func (p Part) Clone() Part {
	c := p
	c.MachineTypes = slices.Clone(p.MachineTypes)
	return c
}

// NewPart is the create payload for a part.
type NewPart struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	PartNumber   string   `json:"partNumber"`
	Stock        int      `json:"stock"`
	MinStock     int      `json:"minStock"`
	MachineTypes []string `json:"machineTypes"`
}

// PartUpdate is a tagged partial update.
type PartUpdate struct {
	Name         Opt[string]   `json:"name,omitzero"`
	PartNumber   Opt[string]   `json:"partNumber,omitzero"`
	Stock        Opt[int]      `json:"stock,omitzero"`
	MinStock     Opt[int]      `json:"minStock,omitzero"`
	MachineTypes Opt[[]string] `json:"machineTypes,omitzero"`
}
