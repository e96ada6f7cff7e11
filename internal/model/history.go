package model

import (
	"slices"
	"time"
)

// PartUsage is a quantity of one part consumed during maintenance.
type PartUsage struct {
	PartID   string `json:"partId"`
	Quantity int    `json:"quantity"`
}

// MaintenanceRecord is an append-only history entry.
type MaintenanceRecord struct {
	ID                 string      `json:"id"`
	MachineID          string      `json:"machineId"`
	Technician         string      `json:"technician"`
	Timestamp          time.Time   `json:"timestamp"`
	OperatingHours     int64       `json:"operatingHours"`
	Notes              string      `json:"notes"`
	ComponentsServiced []string    `json:"componentsServiced,omitempty"`
	PartsUsed          []PartUsage `json:"partsUsed,omitempty"`
}

// Clone returns a deep copy of r.
func (r MaintenanceRecord) Clone() MaintenanceRecord {
	c := r
	c.ComponentsServiced = slices.Clone(r.ComponentsServiced)
	c.PartsUsed = slices.Clone(r.PartsUsed)
	return c
}

// CompletionRequest asks to complete maintenance on a machine.
// OperatingHours is the counter reading at completion; zero keeps the current value.
type CompletionRequest struct {
	RecordID       string      `json:"recordId,omitempty"`
	MachineID      string      `json:"machineId"`
	Technician     string      `json:"technician"`
	OperatingHours int64       `json:"operatingHours"`
	Notes          string      `json:"notes"`
	Components     []string    `json:"components"`
	Parts          []PartUsage `json:"parts"`
}
