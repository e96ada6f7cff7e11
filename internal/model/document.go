package model

import (
	"slices"
	"time"
)

// Document is the whole persisted state. The server stores it as one unit and
// clients mirror it.
type Document struct {
	Machines             []Machine             `json:"machines"`
	Parts                []Part                `json:"parts"`
	MaintenanceHistory   []MaintenanceRecord   `json:"maintenanceHistory"`
	Notifications        []Notification        `json:"notifications"`
	Users                []User                `json:"users"`
	MachineTypes         []MachineType         `json:"machineTypes"`
	MaintenanceTemplates []MaintenanceTemplate `json:"maintenanceTemplates"`
	FloorPlans           []FloorPlan           `json:"floorPlans"`
	PushSubscriptions    []PushSubscription    `json:"pushSubscriptions,omitempty"`
	LastModified         time.Time             `json:"lastModified,omitzero"`
}

// NewDocument returns an empty document with every collection allocated.
func NewDocument() *Document {
	d := &Document{}
	d.Normalize()
	return d
}

// Normalize replaces nil collections with empty ones so that they encode as [].
func (d *Document) Normalize() {
	if d.Machines == nil {
		d.Machines = []Machine{}
	}
	if d.Parts == nil {
		d.Parts = []Part{}
	}
	if d.MaintenanceHistory == nil {
		d.MaintenanceHistory = []MaintenanceRecord{}
	}
	if d.Notifications == nil {
		d.Notifications = []Notification{}
	}
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.MachineTypes == nil {
		d.MachineTypes = []MachineType{}
	}
	if d.MaintenanceTemplates == nil {
		d.MaintenanceTemplates = []MaintenanceTemplate{}
	}
	if d.FloorPlans == nil {
		d.FloorPlans = []FloorPlan{}
	}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	c.Machines = cloneEach(d.Machines, Machine.Clone)
	c.Parts = cloneEach(d.Parts, Part.Clone)
	c.MaintenanceHistory = cloneEach(d.MaintenanceHistory, MaintenanceRecord.Clone)
	c.Notifications = slices.Clone(d.Notifications)
	c.Users = slices.Clone(d.Users)
	c.MachineTypes = slices.Clone(d.MachineTypes)
	c.MaintenanceTemplates = cloneEach(d.MaintenanceTemplates, MaintenanceTemplate.Clone)
	c.FloorPlans = cloneEach(d.FloorPlans, FloorPlan.Clone)
	c.PushSubscriptions = slices.Clone(d.PushSubscriptions)
	return &c
}

func cloneEach[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

// Machine returns a pointer into d for the machine with the given ID.
func (d *Document) Machine(id string) *Machine {
	for i := range d.Machines {
		if d.Machines[i].ID == id {
			return &d.Machines[i]
		}
	}
	return nil
}

// Template returns a pointer into d for the template with the given ID.
func (d *Document) Template(id string) *MaintenanceTemplate {
	for i := range d.MaintenanceTemplates {
		if d.MaintenanceTemplates[i].ID == id {
			return &d.MaintenanceTemplates[i]
		}
	}
	return nil
}

// Part returns a pointer into d for the part with the given ID.
func (d *Document) Part(id string) *Part {
	for i := range d.Parts {
		if d.Parts[i].ID == id {
			return &d.Parts[i]
		}
	}
	return nil
}

// User returns a pointer into d for the user with the given ID.
func (d *Document) User(id string) *User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// MachineType returns a pointer into d for the machine type with the given ID.
func (d *Document) MachineType(id string) *MachineType {
	for i := range d.MachineTypes {
		if d.MachineTypes[i].ID == id {
			return &d.MachineTypes[i]
		}
	}
	return nil
}

// FloorPlan returns a pointer into d for the floor plan with the given ID.
func (d *Document) FloorPlan(id string) *FloorPlan {
	for i := range d.FloorPlans {
		if d.FloorPlans[i].ID == id {
			return &d.FloorPlans[i]
		}
	}
	return nil
}

// HasID reports whether any entity in d already uses id.
func (d *Document) HasID(id string) bool {
	switch {
	case d.Machine(id) != nil, d.Template(id) != nil, d.Part(id) != nil,
		d.User(id) != nil, d.MachineType(id) != nil, d.FloorPlan(id) != nil:
		return true
	}
	for _, r := range d.MaintenanceHistory {
		if r.ID == id {
			return true
		}
	}
	for _, n := range d.Notifications {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Fingerprint is a cheap summary of a document used to detect changes
// without transferring the whole document.
type Fingerprint struct {
	Machines           int       `json:"machines"`
	Parts              int       `json:"parts"`
	MaintenanceHistory int       `json:"maintenanceHistory"`
	Notifications      int       `json:"notifications"`
	Templates          int       `json:"templates"`
	Users              int       `json:"users"`
	MachineTypes       int       `json:"machineTypes"`
	FloorPlans         int       `json:"floorPlans"`
	LastModified       time.Time `json:"lastModified"`
}

// Fingerprint summarizes d.
func (d *Document) Fingerprint() Fingerprint {
	return Fingerprint{
		Machines:           len(d.Machines),
		Parts:              len(d.Parts),
		MaintenanceHistory: len(d.MaintenanceHistory),
		Notifications:      len(d.Notifications),
		Templates:          len(d.MaintenanceTemplates),
		Users:              len(d.Users),
		MachineTypes:       len(d.MachineTypes),
		FloorPlans:         len(d.FloorPlans),
		LastModified:       d.LastModified,
	}
}

// Equal reports whether two fingerprints describe the same document version.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Machines == o.Machines &&
		f.Parts == o.Parts &&
		f.MaintenanceHistory == o.MaintenanceHistory &&
		f.Notifications == o.Notifications &&
		f.Templates == o.Templates &&
		f.Users == o.Users &&
		f.MachineTypes == o.MachineTypes &&
		f.FloorPlans == o.FloorPlans &&
		f.LastModified.Equal(o.LastModified)
}
