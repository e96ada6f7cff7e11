package fleet

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/parse"
)

// AddTemplate appends a maintenance template. Components without an ID get one.
func AddTemplate(d *model.Document, in model.NewTemplate) (model.MaintenanceTemplate, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.MaintenanceTemplate{}, err
	}
	t := model.MaintenanceTemplate{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		MachineType: in.MachineType,
		Components:  in.Components,
	}.Clone()
	if err := validateTemplate(&t); err != nil {
		return model.MaintenanceTemplate{}, err
	}
	d.MaintenanceTemplates = append(d.MaintenanceTemplates, t)
	return t.Clone(), nil
}

// UpdateTemplate applies u. When the component list changes, every machine
// using the template keeps the states of surviving components, drops the
// states of removed ones and starts new ones at its current hours.
func UpdateTemplate(d *model.Document, id string, u model.TemplateUpdate, now time.Time) (model.MaintenanceTemplate, error) {
	cur := d.Template(id)
	if cur == nil {
		return model.MaintenanceTemplate{}, notFound("maintenance template", id)
	}
	t := cur.Clone()
	if err := set(&t.Name, u.Name, "name"); err != nil {
		return model.MaintenanceTemplate{}, err
	}
	setNullable(&t.Description, u.Description)
	setNullable(&t.MachineType, u.MachineType)
	if err := set(&t.Components, u.Components, "components"); err != nil {
		return model.MaintenanceTemplate{}, err
	}
	t.Name = strings.TrimSpace(t.Name)
	t = t.Clone()
	if err := validateTemplate(&t); err != nil {
		return model.MaintenanceTemplate{}, err
	}

	*cur = t
	if u.Components.Set {
		for i := range d.Machines {
			m := &d.Machines[i]
			if m.TemplateID() == id {
				m.ComponentStates = maintenance.Sync(m.ComponentStates, cur, m.OperatingHours, now)
			}
		}
	}
	return t.Clone(), nil
}

// DeleteTemplate removes a template that no machine references.
func DeleteTemplate(d *model.Document, id string) error {
	for _, m := range d.Machines {
		if m.TemplateID() == id {
			return inUse("maintenance template", id, "machine", m.Name)
		}
	}
	for i := range d.MaintenanceTemplates {
		if d.MaintenanceTemplates[i].ID == id {
			d.MaintenanceTemplates = removeAt(d.MaintenanceTemplates, i)
			return nil
		}
	}
	return notFound("maintenance template", id)
}

// TemplatesFor lists the templates authored for a machine type.
func TemplatesFor(d *model.Document, machineType string) []model.MaintenanceTemplate {
	if code, err := parse.MachineTypeCode(machineType); err == nil {
		machineType = code
	}
	var out []model.MaintenanceTemplate
	for _, t := range d.MaintenanceTemplates {
		if t.MachineType == machineType {
			out = append(out, t.Clone())
		}
	}
	return out
}

func validateTemplate(t *model.MaintenanceTemplate) error {
	if t.Name == "" {
		return invalid("template name is required")
	}
	t.MachineType = strings.TrimSpace(t.MachineType)
	if t.MachineType != "" {
		code, err := parse.MachineTypeCode(t.MachineType)
		if err != nil {
			return invalid("%v", err)
		}
		t.MachineType = code
	}
	seen := make(map[string]bool, len(t.Components))
	for i := range t.Components {
		c := &t.Components[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalid("component %d has no name", i+1)
		}
		if c.IntervalHours <= 0 {
			return invalid("component %q needs a positive interval", c.Name)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if seen[c.ID] {
			return invalid("component id %q appears twice", c.ID)
		}
		seen[c.ID] = true
		if c.Tasks == nil {
			c.Tasks = []string{}
		}
	}
	if t.Components == nil {
		t.Components = []model.Component{}
	}
	return nil
}
