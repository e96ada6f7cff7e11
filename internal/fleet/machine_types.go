package fleet

import (
	"fmt"
	"strings"

	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/parse"
)

// AddMachineType appends a machine type with a normalized, unique code.
func AddMachineType(d *model.Document, in model.NewMachineType) (model.MachineType, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.MachineType{}, err
	}
	mt := model.MachineType{
		ID:          id,
		Code:        in.Code,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
	}
	if err := validateMachineType(d, &mt); err != nil {
		return model.MachineType{}, err
	}
	d.MachineTypes = append(d.MachineTypes, mt)
	return mt, nil
}

// UpdateMachineType applies u. The code of a type that is still referenced
// cannot change.
func UpdateMachineType(d *model.Document, id string, u model.MachineTypeUpdate) (model.MachineType, error) {
	cur := d.MachineType(id)
	if cur == nil {
		return model.MachineType{}, notFound("machine type", id)
	}
	mt := *cur
	if err := set(&mt.Code, u.Code, "code"); err != nil {
		return model.MachineType{}, err
	}
	if err := set(&mt.Name, u.Name, "name"); err != nil {
		return model.MachineType{}, err
	}
	setNullable(&mt.Description, u.Description)
	if err := validateMachineType(d, &mt); err != nil {
		return model.MachineType{}, err
	}
	if mt.Code != cur.Code {
		if err := typeUnused(d, cur); err != nil {
			return model.MachineType{}, err
		}
	}
	*cur = mt
	return mt, nil
}

// DeleteMachineType removes a type that no machine or template references.
func DeleteMachineType(d *model.Document, id string) error {
	for i := range d.MachineTypes {
		if d.MachineTypes[i].ID != id {
			continue
		}
		if err := typeUnused(d, &d.MachineTypes[i]); err != nil {
			return err
		}
		d.MachineTypes = removeAt(d.MachineTypes, i)
		return nil
	}
	return notFound("machine type", id)
}

func typeUnused(d *model.Document, mt *model.MachineType) error {
	for _, m := range d.Machines {
		if m.Type == mt.Code {
			return inUse("machine type", mt.Code, "machine", m.Name)
		}
	}
	for _, t := range d.MaintenanceTemplates {
		if t.MachineType == mt.Code {
			return inUse("machine type", mt.Code, "template", t.Name)
		}
	}
	return nil
}

func validateMachineType(d *model.Document, mt *model.MachineType) error {
	code, err := parse.MachineTypeCode(mt.Code)
	if err != nil {
		return invalid("%v", err)
	}
	mt.Code = code
	if mt.Name == "" {
		mt.Name = code
	}
	for _, other := range d.MachineTypes {
		if other.ID != mt.ID && other.Code == code {
			return fmt.Errorf("machine type %q: %w", code, ErrDuplicate)
		}
	}
	return nil
}

// machineTypeCode normalizes raw and checks that a machine type with that code exists.
func machineTypeCode(d *model.Document, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalid("machine type is required")
	}
	code, err := parse.MachineTypeCode(raw)
	if err != nil {
		return "", invalid("%v", err)
	}
	for _, mt := range d.MachineTypes {
		if mt.Code == code {
			return code, nil
		}
	}
	return "", invalid("unknown machine type %q", code)
}
