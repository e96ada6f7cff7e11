package fleet

import (
	"strings"
	"time"

	"loom-maintenance-backend/internal/model"
)

// AddRecord appends a maintenance record. Records are never updated or deleted.
func AddRecord(d *model.Document, r model.MaintenanceRecord, now time.Time) (model.MaintenanceRecord, error) {
	if d.Machine(r.MachineID) == nil {
		return model.MaintenanceRecord{}, notFound("machine", r.MachineID)
	}
	id, err := newID(d, r.ID)
	if err != nil {
		return model.MaintenanceRecord{}, err
	}
	for _, pu := range r.PartsUsed {
		if pu.Quantity <= 0 {
			return model.MaintenanceRecord{}, invalid("part quantity must be positive")
		}
	}
	r = r.Clone()
	r.ID = id
	r.Technician = strings.TrimSpace(r.Technician)
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	d.MaintenanceHistory = append(d.MaintenanceHistory, r)
	return r.Clone(), nil
}

// History returns the records of one machine, or all records when machineID is empty.
func History(d *model.Document, machineID string) []model.MaintenanceRecord {
	out := []model.MaintenanceRecord{}
	for _, r := range d.MaintenanceHistory {
		if machineID == "" || r.MachineID == machineID {
			out = append(out, r.Clone())
		}
	}
	return out
}
