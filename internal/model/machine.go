package model

import (
	"maps"
	"time"
)

// MachineStatus is the operator-facing condition of a machine.
type MachineStatus string

const (
	MachineOK          MachineStatus = "ok"
	MachineMaintenance MachineStatus = "maintenance"
	MachineNotOK       MachineStatus = "not-ok"
	MachineServiced    MachineStatus = "serviced"
)

// Valid reports whether s is one of the known statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineOK, MachineMaintenance, MachineNotOK, MachineServiced:
		return true
	}
	return false
}

// ComponentState records when a component of a machine was last serviced,
// measured on the machine's operating-hours counter.
type ComponentState struct {
	LastMaintenanceHours int64     `json:"lastMaintenanceHours"`
	LastMaintenanceDate  time.Time `json:"lastMaintenanceDate"`
}

// Machine is a single weaving machine on the shop floor.
type Machine struct {
	ID                    string                    `json:"id"`
	Name                  string                    `json:"name"`
	Type                  string                    `json:"type"`
	Serial                string                    `json:"serial"`
	Location              string                    `json:"location"`
	Year                  int                       `json:"year,omitempty"`
	Status                MachineStatus             `json:"status"`
	OperatingHours        int64                     `json:"operatingHours"`
	MaintenanceTemplateID *string                   `json:"maintenanceTemplateId"`
	ComponentStates       map[string]ComponentState `json:"componentStates"`
	LastMaintenance       *time.Time                `json:"lastMaintenance"`
	NextMaintenance       *time.Time                `json:"nextMaintenance"`
	QRCode                string                    `json:"qrCode,omitempty"`
}

// TemplateID returns the assigned template ID, or "" when none is assigned.
func (m *Machine) TemplateID() string {
	if m.MaintenanceTemplateID == nil {
		return ""
	}
	return *m.MaintenanceTemplateID
}

// Clone returns a deep copy of m.
func (m Machine) Clone() Machine {
	c := m
	c.ComponentStates = maps.Clone(m.ComponentStates)
	if m.MaintenanceTemplateID != nil {
		id := *m.MaintenanceTemplateID
		c.MaintenanceTemplateID = &id
	}
	if m.LastMaintenance != nil {
		t := *m.LastMaintenance
		c.LastMaintenance = &t
	}
	if m.NextMaintenance != nil {
		t := *m.NextMaintenance
		c.NextMaintenance = &t
	}
	return c
}

// NewMachine is the create payload for a machine. ID is optional; a client
// that already assigned one locally sends it so both copies agree.
type NewMachine struct {
	ID                    string        `json:"id,omitempty"`
	Name                  string        `json:"name"`
	Type                  string        `json:"type"`
	Serial                string        `json:"serial"`
	Location              string        `json:"location"`
	Year                  int           `json:"year,omitempty"`
	Status                MachineStatus `json:"status,omitempty"`
	OperatingHours        int64         `json:"operatingHours"`
	MaintenanceTemplateID string        `json:"maintenanceTemplateId,omitempty"`
}

// MachineUpdate is a tagged partial update. MaintenanceTemplateID accepts
// null to unassign the template.
type MachineUpdate struct {
	Name                  Opt[string]        `json:"name,omitzero"`
	Type                  Opt[string]        `json:"type,omitzero"`
	Serial                Opt[string]        `json:"serial,omitzero"`
	Location              Opt[string]        `json:"location,omitzero"`
	Year                  Opt[int]           `json:"year,omitzero"`
	Status                Opt[MachineStatus] `json:"status,omitzero"`
	OperatingHours        Opt[int64]         `json:"operatingHours,omitzero"`
	MaintenanceTemplateID Opt[string]        `json:"maintenanceTemplateId,omitzero"`
}
