// Package maintenance computes how much service life each component of a
// machine has left, based on the machine's operating-hours counter.
package maintenance

import (
	"time"

	"loom-maintenance-backend/internal/model"
)

// Status classifies the remaining service life of a component.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusOverdue Status = "overdue"
)

func (s Status) rank() int {
	switch s {
	case StatusOverdue:
		return 2
	case StatusWarning:
		return 1
	}
	return 0
}

// Worse returns the more severe of a and b.
func Worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// HoursSinceService is the number of operating hours accrued since the state was recorded.
func HoursSinceService(s model.ComponentState, operatingHours int64) int64 {
	return operatingHours - s.LastMaintenanceHours
}

// Remaining returns the operating hours left before c is due. Negative values
// mean the interval has been exceeded.
func Remaining(c model.Component, s model.ComponentState, operatingHours int64) int64 {
	return c.IntervalHours - HoursSinceService(s, operatingHours)
}

// Classify maps remaining hours to a status. A component is overdue once
// nothing remains and in warning once at most a tenth of its interval remains.
func Classify(remaining, interval int64) Status {
	switch {
	case remaining <= 0:
		return StatusOverdue
	case remaining*10 <= interval:
		return StatusWarning
	default:
		return StatusOK
	}
}

// NewStates returns fresh states for every component of t, all serviced at hours.
func NewStates(t *model.MaintenanceTemplate, hours int64, now time.Time) map[string]model.ComponentState {
	states := make(map[string]model.ComponentState, len(t.Components))
	for _, c := range t.Components {
		states[c.ID] = model.ComponentState{LastMaintenanceHours: hours, LastMaintenanceDate: now}
	}
	return states
}

// Reset marks one component as serviced at hours. A nil map is allocated.
func Reset(states map[string]model.ComponentState, componentID string, hours int64, now time.Time) map[string]model.ComponentState {
	if states == nil {
		states = make(map[string]model.ComponentState)
	}
	states[componentID] = model.ComponentState{LastMaintenanceHours: hours, LastMaintenanceDate: now}
	return states
}

// Sync reconciles states with the components of t after the template changed:
// states of removed components are dropped and new components start at hours.
// Existing states are kept.
func Sync(states map[string]model.ComponentState, t *model.MaintenanceTemplate, hours int64, now time.Time) map[string]model.ComponentState {
	out := make(map[string]model.ComponentState, len(t.Components))
	for _, c := range t.Components {
		if s, ok := states[c.ID]; ok {
			out[c.ID] = s
			continue
		}
		out[c.ID] = model.ComponentState{LastMaintenanceHours: hours, LastMaintenanceDate: now}
	}
	return out
}
