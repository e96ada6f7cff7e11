package model

// MachineType is a machine model line, referenced by its code.
type MachineType struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewMachineType is the create payload for a machine type.
type NewMachineType struct {
	ID          string `json:"id,omitempty"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MachineTypeUpdate is a tagged partial update.
type MachineTypeUpdate struct {
	Code        Opt[string] `json:"code,omitzero"`
	Name        Opt[string] `json:"name,omitzero"`
	Description Opt[string] `json:"description,omitzero"`
}
