package model

import (
	"maps"
	"time"
)

// Position is a pixel coordinate in a floor plan's native resolution.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FloorPlan is a hall layout image with machines placed on it. The image is
// either inlined as a data URI or stored on the server under Path.
type FloorPlan struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Image            string              `json:"image,omitempty"`
	Path             string              `json:"path,omitempty"`
	Width            int                 `json:"width"`
	Height           int                 `json:"height"`
	MachinePositions map[string]Position `json:"machinePositions"`
	UploadedAt       time.Time           `json:"uploadedAt"`
}

// Contains reports whether p lies inside the image. Plans with unknown
// dimensions accept any non-negative position.
func (f *FloorPlan) Contains(p Position) bool {
	if p.X < 0 || p.Y < 0 {
		return false
	}
	if f.Width <= 0 || f.Height <= 0 {
		return true
	}
	return p.X <= f.Width && p.Y <= f.Height
}

// Clone returns a deep copy of f.
func (f FloorPlan) Clone() FloorPlan {
	c := f
	c.MachinePositions = maps.Clone(f.MachinePositions)
	return c
}

// NewFloorPlan is the create payload for a floor plan.
type NewFloorPlan struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FloorPlanUpdate is a tagged partial update. Image and Path accept null.
type FloorPlanUpdate struct {
	Name             Opt[string]              `json:"name,omitzero"`
	Image            Opt[string]              `json:"image,omitzero"`
	Path             Opt[string]              `json:"path,omitzero"`
	Width            Opt[int]                 `json:"width,omitzero"`
	Height           Opt[int]                 `json:"height,omitzero"`
	MachinePositions Opt[map[string]Position] `json:"machinePositions,omitzero"`
}
