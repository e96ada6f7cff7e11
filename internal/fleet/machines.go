package fleet

import (
	"encoding/json"
	"strings"
	"time"

	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
)

// AddMachine appends a new machine. When a template is given every component
// starts with a fresh state at the machine's current operating hours.
func AddMachine(d *model.Document, in model.NewMachine, now time.Time) (model.Machine, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.Machine{}, err
	}
	m := model.Machine{
		ID:             id,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Serial:         strings.TrimSpace(in.Serial),
		Location:       strings.TrimSpace(in.Location),
		Year:           in.Year,
		Status:         in.Status,
		OperatingHours: in.OperatingHours,
	}
	if m.Status == "" {
		m.Status = model.MachineOK
	}
	if err := validateMachine(d, &m); err != nil {
		return model.Machine{}, err
	}
	if in.MaintenanceTemplateID != "" {
		t := d.Template(in.MaintenanceTemplateID)
		if t == nil {
			return model.Machine{}, notFound("maintenance template", in.MaintenanceTemplateID)
		}
		tid := t.ID
		m.MaintenanceTemplateID = &tid
		m.ComponentStates = maintenance.NewStates(t, m.OperatingHours, now)
	}
	m.QRCode = qrPayload(&m)

	d.Machines = append(d.Machines, m)
	return m.Clone(), nil
}

// UpdateMachine applies u to the machine. Operating hours never decrease.
// Changing the template rebuilds all component states; clearing it drops them.
func UpdateMachine(d *model.Document, id string, u model.MachineUpdate, now time.Time) (model.Machine, error) {
	cur := d.Machine(id)
	if cur == nil {
		return model.Machine{}, notFound("machine", id)
	}
	m := cur.Clone()

	for _, f := range []struct {
		dst   *string
		o     model.Opt[string]
		field string
	}{
		{&m.Name, u.Name, "name"},
		{&m.Type, u.Type, "type"},
		{&m.Serial, u.Serial, "serial"},
		{&m.Location, u.Location, "location"},
	} {
		if err := set(f.dst, f.o, f.field); err != nil {
			return model.Machine{}, err
		}
	}
	if err := set(&m.Year, u.Year, "year"); err != nil {
		return model.Machine{}, err
	}
	if err := set(&m.Status, u.Status, "status"); err != nil {
		return model.Machine{}, err
	}
	if err := set(&m.OperatingHours, u.OperatingHours, "operatingHours"); err != nil {
		return model.Machine{}, err
	}
	if m.OperatingHours < cur.OperatingHours {
		return model.Machine{}, invalid("operating hours cannot decrease from %d to %d", cur.OperatingHours, m.OperatingHours)
	}
	if err := validateMachine(d, &m); err != nil {
		return model.Machine{}, err
	}

	if u.MaintenanceTemplateID.Set {
		next, _ := u.MaintenanceTemplateID.Get()
		if next != cur.TemplateID() {
			if err := assign(d, &m, next, now); err != nil {
				return model.Machine{}, err
			}
		}
	}
	m.QRCode = qrPayload(&m)

	*cur = m
	return m.Clone(), nil
}

// DeleteMachine removes the machine and its positions on every floor plan.
// History records are kept.
func DeleteMachine(d *model.Document, id string) error {
	for i := range d.Machines {
		if d.Machines[i].ID == id {
			d.Machines = removeAt(d.Machines, i)
			for j := range d.FloorPlans {
				delete(d.FloorPlans[j].MachinePositions, id)
			}
			return nil
		}
	}
	return notFound("machine", id)
}

// AssignTemplate (re)assigns a template and resets every component state to the
// machine's current operating hours, even when the template is unchanged.
// An empty templateID unassigns the template.
func AssignTemplate(d *model.Document, machineID, templateID string, now time.Time) (model.Machine, error) {
	cur := d.Machine(machineID)
	if cur == nil {
		return model.Machine{}, notFound("machine", machineID)
	}
	m := cur.Clone()
	if err := assign(d, &m, templateID, now); err != nil {
		return model.Machine{}, err
	}
	*cur = m
	return m.Clone(), nil
}

// AssignTemplateToMany assigns one template to several machines. Nothing is
// changed unless every machine exists.
func AssignTemplateToMany(d *model.Document, templateID string, machineIDs []string, now time.Time) ([]model.Machine, error) {
	if d.Template(templateID) == nil {
		return nil, notFound("maintenance template", templateID)
	}
	for _, id := range machineIDs {
		if d.Machine(id) == nil {
			return nil, notFound("machine", id)
		}
	}
	out := make([]model.Machine, 0, len(machineIDs))
	for _, id := range machineIDs {
		m, err := AssignTemplate(d, id, templateID, now)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func assign(d *model.Document, m *model.Machine, templateID string, now time.Time) error {
	if templateID == "" {
		m.MaintenanceTemplateID = nil
		m.ComponentStates = nil
		return nil
	}
	t := d.Template(templateID)
	if t == nil {
		return notFound("maintenance template", templateID)
	}
	tid := t.ID
	m.MaintenanceTemplateID = &tid
	m.ComponentStates = maintenance.NewStates(t, m.OperatingHours, now)
	return nil
}

func validateMachine(d *model.Document, m *model.Machine) error {
	if m.Name == "" {
		return invalid("machine name is required")
	}
	if m.OperatingHours < 0 {
		return invalid("operating hours must not be negative")
	}
	if !m.Status.Valid() {
		return invalid("unknown machine status %q", m.Status)
	}
	code, err := machineTypeCode(d, m.Type)
	if err != nil {
		return err
	}
	m.Type = code
	return nil
}

// qrPayload is the content encoded into a machine's QR label.
func qrPayload(m *model.Machine) string {
	b, _ := json.Marshal(struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Serial string `json:"serial"`
	}{m.ID, m.Name, m.Type, m.Serial})
	return string(b)
}
