package maintenance

import (
	"time"

	"loom-maintenance-backend/internal/model"
)

// ComponentReport is the computed service status of one component.
// Tracked is false when the machine has no recorded state for the component;
// such components are reported with their full interval remaining.
type ComponentReport struct {
	ComponentID         string     `json:"componentId"`
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	IntervalHours       int64      `json:"intervalHours"`
	HoursSinceService   int64      `json:"hoursSinceService"`
	RemainingHours      int64      `json:"remainingHours"`
	Status              Status     `json:"status"`
	Tracked             bool       `json:"tracked"`
	LastMaintenanceDate *time.Time `json:"lastMaintenanceDate,omitempty"`
}

// Report is the service status of a machine against its template.
type Report struct {
	MachineID      string            `json:"machineId"`
	TemplateID     string            `json:"templateId,omitempty"`
	OperatingHours int64             `json:"operatingHours"`
	Components     []ComponentReport `json:"components"`
	NextDueHours   *int64            `json:"nextDueHours"`
	Status         Status            `json:"status"`
}

// Evaluate reports every component of t for machine m. A nil template yields
// a report without components.
func Evaluate(m *model.Machine, t *model.MaintenanceTemplate) Report {
	r := Report{
		MachineID:      m.ID,
		OperatingHours: m.OperatingHours,
		Components:     []ComponentReport{},
		Status:         StatusOK,
	}
	if t == nil {
		return r
	}
	r.TemplateID = t.ID

	for _, c := range t.Components {
		cr := ComponentReport{
			ComponentID:    c.ID,
			Name:           c.Name,
			Category:       c.Category,
			IntervalHours:  c.IntervalHours,
			RemainingHours: c.IntervalHours,
			Status:         StatusOK,
		}
		if s, ok := m.ComponentStates[c.ID]; ok {
			date := s.LastMaintenanceDate
			cr.Tracked = true
			cr.HoursSinceService = HoursSinceService(s, m.OperatingHours)
			cr.RemainingHours = Remaining(c, s, m.OperatingHours)
			cr.Status = Classify(cr.RemainingHours, c.IntervalHours)
			cr.LastMaintenanceDate = &date

			if r.NextDueHours == nil || cr.RemainingHours < *r.NextDueHours {
				next := cr.RemainingHours
				r.NextDueHours = &next
			}
			r.Status = Worse(r.Status, cr.Status)
		}
		r.Components = append(r.Components, cr)
	}
	return r
}

// EvaluateIn looks up the template assigned to m in d and evaluates it.
// A dangling template reference evaluates like an unassigned one.
func EvaluateIn(d *model.Document, m *model.Machine) Report {
	var t *model.MaintenanceTemplate
	if id := m.TemplateID(); id != "" {
		t = d.Template(id)
	}
	return Evaluate(m, t)
}
