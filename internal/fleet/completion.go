package fleet

import (
	"slices"
	"time"

	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
)

// ServiceInterval is the calendar time until a serviced machine is next planned.
const ServiceInterval = 60 * 24 * time.Hour

// Completion is everything that changed when maintenance was completed.
type Completion struct {
	Record        model.MaintenanceRecord `json:"record"`
	Machine       model.Machine           `json:"machine"`
	Parts         []model.Part            `json:"parts"`
	Notifications []model.Notification    `json:"notifications"`
}

// CompleteMaintenance records that the components in req were serviced.
//
// All checks run before the document is touched: the machine must exist, the
// new operating hours must not be lower than the current ones, every component
// must belong to the assigned template (at least one is required when a
// template is assigned) and every part must have enough stock for the summed
// quantity requested. Only then is stock deducted, the serviced states reset,
// the machine marked serviced and the record appended.
func CompleteMaintenance(d *model.Document, req model.CompletionRequest, now time.Time) (Completion, error) {
	cur := d.Machine(req.MachineID)
	if cur == nil {
		return Completion{}, notFound("machine", req.MachineID)
	}

	hours := req.OperatingHours
	if hours == 0 {
		hours = cur.OperatingHours
	}
	if hours < cur.OperatingHours {
		return Completion{}, invalid("operating hours cannot decrease from %d to %d", cur.OperatingHours, hours)
	}

	var components []string
	for _, id := range req.Components {
		if !slices.Contains(components, id) {
			components = append(components, id)
		}
	}
	var t *model.MaintenanceTemplate
	if tid := cur.TemplateID(); tid != "" {
		t = d.Template(tid)
	}
	if t == nil && len(components) > 0 {
		return Completion{}, invalid("machine %q has no maintenance template", cur.Name)
	}
	if t != nil {
		if len(components) == 0 {
			return Completion{}, invalid("at least one serviced component is required")
		}
		for _, id := range components {
			if _, ok := t.Component(id); !ok {
				return Completion{}, invalid("component %q is not part of template %q", id, t.Name)
			}
		}
	}

	var order []string
	totals := make(map[string]int)
	for _, pu := range req.Parts {
		if pu.Quantity <= 0 {
			return Completion{}, invalid("part quantity must be positive")
		}
		if _, ok := totals[pu.PartID]; !ok {
			order = append(order, pu.PartID)
		}
		totals[pu.PartID] += pu.Quantity
	}
	for _, id := range order {
		p := d.Part(id)
		if p == nil {
			return Completion{}, notFound("part", id)
		}
		if p.Stock < totals[id] {
			return Completion{}, insufficient(p, totals[id])
		}
	}

	recordID, err := newID(d, req.RecordID)
	if err != nil {
		return Completion{}, err
	}

	var out Completion
	used := make([]model.PartUsage, 0, len(order))
	for _, id := range order {
		p := d.Part(id)
		p.Stock -= totals[id]
		if p.Low() {
			out.Notifications = append(out.Notifications, Notify(d, lowStock(p), now))
		}
		out.Parts = append(out.Parts, p.Clone())
		used = append(used, model.PartUsage{PartID: id, Quantity: totals[id]})
	}

	for _, id := range components {
		cur.ComponentStates = maintenance.Reset(cur.ComponentStates, id, hours, now)
	}
	next := now.Add(ServiceInterval)
	last := now
	cur.Status = model.MachineServiced
	cur.OperatingHours = hours
	cur.LastMaintenance = &last
	cur.NextMaintenance = &next

	record := model.MaintenanceRecord{
		ID:                 recordID,
		MachineID:          cur.ID,
		Technician:         req.Technician,
		Timestamp:          now,
		OperatingHours:     hours,
		Notes:              req.Notes,
		ComponentsServiced: components,
	}
	if len(used) > 0 {
		record.PartsUsed = used
	}
	d.MaintenanceHistory = append(d.MaintenanceHistory, record)

	out.Record = record.Clone()
	out.Machine = cur.Clone()
	if out.Parts == nil {
		out.Parts = []model.Part{}
	}
	if out.Notifications == nil {
		out.Notifications = []model.Notification{}
	}
	return out, nil
}
