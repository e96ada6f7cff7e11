package fleet

import (
	"fmt"
	"strings"
	"time"

	"loom-maintenance-backend/internal/model"
)

// AddPart appends a spare part.
func AddPart(d *model.Document, in model.NewPart) (model.Part, error) {
	id, err := newID(d, in.ID)
	if err != nil {
		return model.Part{}, err
	}
	p := model.Part{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		PartNumber:   strings.TrimSpace(in.PartNumber),
		Stock:        in.Stock,
		MinStock:     in.MinStock,
		MachineTypes: in.MachineTypes,
	}.Clone()
	if err := validatePart(&p); err != nil {
		return model.Part{}, err
	}
	d.Parts = append(d.Parts, p)
	return p.Clone(), nil
}

// UpdatePart applies u to the part.
func UpdatePart(d *model.Document, id string, u model.PartUpdate) (model.Part, error) {
	cur := d.Part(id)
	if cur == nil {
		return model.Part{}, notFound("part", id)
	}
	p := cur.Clone()
	if err := set(&p.Name, u.Name, "name"); err != nil {
		return model.Part{}, err
	}
	setNullable(&p.PartNumber, u.PartNumber)
	if err := set(&p.Stock, u.Stock, "stock"); err != nil {
		return model.Part{}, err
	}
	if err := set(&p.MinStock, u.MinStock, "minStock"); err != nil {
		return model.Part{}, err
	}
	setNullable(&p.MachineTypes, u.MachineTypes)
	p = p.Clone()
	if err := validatePart(&p); err != nil {
		return model.Part{}, err
	}
	*cur = p
	return p.Clone(), nil
}

// DeletePart removes the part. History records that used it are kept.
func DeletePart(d *model.Document, id string) error {
	for i := range d.Parts {
		if d.Parts[i].ID == id {
			d.Parts = removeAt(d.Parts, i)
			return nil
		}
	}
	return notFound("part", id)
}

// UsePart takes quantity units out of stock. When the stock falls below its
// minimum an urgent notification is appended and returned.
func UsePart(d *model.Document, id string, quantity int, now time.Time) (model.Part, *model.Notification, error) {
	p := d.Part(id)
	if p == nil {
		return model.Part{}, nil, notFound("part", id)
	}
	if quantity <= 0 {
		return model.Part{}, nil, invalid("quantity must be positive")
	}
	if p.Stock < quantity {
		return model.Part{}, nil, insufficient(p, quantity)
	}
	p.Stock -= quantity
	var n *model.Notification
	if p.Low() {
		low := Notify(d, lowStock(p), now)
		n = &low
	}
	return p.Clone(), n, nil
}

// LowStock lists the parts whose stock is below the minimum.
func LowStock(d *model.Document) []model.Part {
	var out []model.Part
	for _, p := range d.Parts {
		if p.Low() {
			out = append(out, p.Clone())
		}
	}
	return out
}

func lowStock(p *model.Part) model.Notification {
	return model.Notification{
		Message: fmt.Sprintf("Ersatzteil %q unterschreitet Mindestbestand! Aktuell: %d, Minimum: %d", p.Name, p.Stock, p.MinStock),
		Urgent:  true,
		Ref:     "part/" + p.ID + "/low",
	}
}

func insufficient(p *model.Part, quantity int) error {
	return fmt.Errorf("part %q has %d in stock, %d requested: %w", p.Name, p.Stock, quantity, ErrInsufficientStock)
}

func validatePart(p *model.Part) error {
	if p.Name == "" {
		return invalid("part name is required")
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return invalid("stock and minimum stock must not be negative")
	}
	if p.MachineTypes == nil {
		p.MachineTypes = []string{}
	}
	for i, code := range p.MachineTypes {
		p.MachineTypes[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	return nil
}
