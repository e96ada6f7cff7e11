package model

import "slices"

// Component is a serviceable unit of a machine with an hour-based interval.
type Component struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	IntervalHours int64    `json:"intervalHours"`
	Category      string   `json:"category"`
	Tasks         []string `json:"tasks"`
}

// MaintenanceTemplate is a reusable maintenance plan. MachineType is the type
// it was written for; it is advisory and not enforced on assignment.
type MaintenanceTemplate struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	MachineType string      `json:"machineType"`
	Components  []Component `json:"components"`
}

// Component returns the component with the given ID.
func (t *MaintenanceTemplate) Component(id string) (Component, bool) {
	for _, c := range t.Components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// Clone returns a deep copy of t.
func (t MaintenanceTemplate) Clone() MaintenanceTemplate {
	c := t
	c.Components = cloneComponents(t.Components)
	return c
}

func cloneComponents(in []Component) []Component {
	if in == nil {
		return nil
	}
	out := make([]Component, len(in))
	for i, comp := range in {
		comp.Tasks = slices.Clone(comp.Tasks)
		out[i] = comp
	}
	return out
}

// NewTemplate is the create payload for a maintenance template. Component IDs
// are generated when left empty.
type NewTemplate struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	MachineType string      `json:"machineType"`
	Components  []Component `json:"components"`
}

// TemplateUpdate is a tagged partial update. Components replaces the whole list.
type TemplateUpdate struct {
	Name        Opt[string]      `json:"name,omitzero"`
	Description Opt[string]      `json:"description,omitzero"`
	MachineType Opt[string]      `json:"machineType,omitzero"`
	Components  Opt[[]Component] `json:"components,omitzero"`
}
