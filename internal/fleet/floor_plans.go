package fleet

import (
	"strings"
	"time"

	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/parse"
)

// AddFloorPlan appends a floor plan. The dimensions of an inlined image are
// read from the image when they are not given.
func AddFloorPlan(d *model.Document, in model.NewFloorPlan, now time.Time) (model.FloorPlan, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.FloorPlan{}, err
	}
	f := model.FloorPlan{
		ID:               id,
		Name:             strings.TrimSpace(in.Name),
		Image:            in.Image,
		Path:             in.Path,
		Width:            in.Width,
		Height:           in.Height,
		MachinePositions: map[string]model.Position{},
		UploadedAt:       now,
	}
	if err := validateFloorPlan(d, &f); err != nil {
		return model.FloorPlan{}, err
	}
	d.FloorPlans = append(d.FloorPlans, f)
	return f.Clone(), nil
}

// UpdateFloorPlan applies u. MachinePositions replaces all positions.
func UpdateFloorPlan(d *model.Document, id string, u model.FloorPlanUpdate) (model.FloorPlan, error) {
	cur := d.FloorPlan(id)
	if cur == nil {
		return model.FloorPlan{}, notFound("floor plan", id)
	}
	f := cur.Clone()
	if err := set(&f.Name, u.Name, "name"); err != nil {
		return model.FloorPlan{}, err
	}
	setNullable(&f.Image, u.Image)
	setNullable(&f.Path, u.Path)
	if err := set(&f.Width, u.Width, "width"); err != nil {
		return model.FloorPlan{}, err
	}
	if err := set(&f.Height, u.Height, "height"); err != nil {
		return model.FloorPlan{}, err
	}
	setNullable(&f.MachinePositions, u.MachinePositions)
	f = f.Clone()
	if err := validateFloorPlan(d, &f); err != nil {
		return model.FloorPlan{}, err
	}
	*cur = f
	return f.Clone(), nil
}

// DeleteFloorPlan removes the plan and returns it so that callers can clean up
// an uploaded image file.
func DeleteFloorPlan(d *model.Document, id string) (model.FloorPlan, error) {
	for i := range d.FloorPlans {
		if d.FloorPlans[i].ID == id {
			f := d.FloorPlans[i]
			d.FloorPlans = removeAt(d.FloorPlans, i)
			return f, nil
		}
	}
	return model.FloorPlan{}, notFound("floor plan", id)
}

// SetPosition places a machine on a floor plan.
func SetPosition(d *model.Document, planID, machineID string, pos model.Position) (model.FloorPlan, error) {
	f := d.FloorPlan(planID)
	if f == nil {
		return model.FloorPlan{}, notFound("floor plan", planID)
	}
	if d.Machine(machineID) == nil {
		return model.FloorPlan{}, notFound("machine", machineID)
	}
	if !f.Contains(pos) {
		return model.FloorPlan{}, invalid("position (%d,%d) is outside the %dx%d plan", pos.X, pos.Y, f.Width, f.Height)
	}
	if f.MachinePositions == nil {
		f.MachinePositions = map[string]model.Position{}
	}
	f.MachinePositions[machineID] = pos
	return f.Clone(), nil
}

// RemovePosition takes a machine off a floor plan.
func RemovePosition(d *model.Document, planID, machineID string) (model.FloorPlan, error) {
	f := d.FloorPlan(planID)
	if f == nil {
		return model.FloorPlan{}, notFound("floor plan", planID)
	}
	if _, ok := f.MachinePositions[machineID]; !ok {
		return model.FloorPlan{}, notFound("position of machine", machineID)
	}
	delete(f.MachinePositions, machineID)
	return f.Clone(), nil
}

// ClearPositions removes every machine from a floor plan.
func ClearPositions(d *model.Document, planID string) (model.FloorPlan, error) {
	f := d.FloorPlan(planID)
	if f == nil {
		return model.FloorPlan{}, notFound("floor plan", planID)
	}
	f.MachinePositions = map[string]model.Position{}
	return f.Clone(), nil
}

func validateFloorPlan(d *model.Document, f *model.FloorPlan) error {
	if f.Name == "" {
		return invalid("floor plan name is required")
	}
	if f.Width < 0 || f.Height < 0 {
		return invalid("floor plan dimensions must not be negative")
	}
	if f.Image != "" && (f.Width == 0 || f.Height == 0) {
		info, err := parse.ProbeDataURI(f.Image)
		if err != nil {
			return invalid("floor plan image: %v", err)
		}
		f.Width, f.Height = info.Width, info.Height
	}
	if f.MachinePositions == nil {
		f.MachinePositions = map[string]model.Position{}
	}
	for machineID, pos := range f.MachinePositions {
		if d.Machine(machineID) == nil {
			return notFound("machine", machineID)
		}
		if !f.Contains(pos) {
			return invalid("position (%d,%d) is outside the %dx%d plan", pos.X, pos.Y, f.Width, f.Height)
		}
	}
	return nil
}
