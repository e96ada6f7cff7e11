package model

import (
	"time"

	"github.com/google/uuid"
)

// Seed returns the document a fresh installation starts with: the three
// default accounts (password equal to the username) and the machine types.
func Seed(now time.Time) (*Document, error) {
	d := NewDocument()

	accounts := []struct {
		username, name, email string
		role                  Role
	}{
		{"admin", "Administrator", "admin@feiler.com", RoleAdmin},
		{"tech", "Techniker", "tech@feiler.com", RoleTechnician},
		{"viewer", "Betrachter", "viewer@feiler.com", RoleViewer},
	}
	for _, a := range accounts {
		u := User{
			ID:       uuid.NewString(),
			Username: a.username,
			Name:     a.name,
			Email:    a.email,
			Role:     a.role,
			Created:  now,
		}
		if err := u.SetPassword(a.username); err != nil {
			return nil, err
		}
		d.Users = append(d.Users, u)
	}

	d.MachineTypes = append(d.MachineTypes,
		MachineType{ID: uuid.NewString(), Code: "P2", Name: "Greiferwebmaschine P2", Description: "Modernste Generation der Greiferwebmaschinen"},
		MachineType{ID: uuid.NewString(), Code: "P1", Name: "Greiferwebmaschine P1", Description: "Bewährte Greiferwebmaschine"},
		MachineType{ID: uuid.NewString(), Code: "A1", Name: "Luftwebmaschine A1", Description: "Mit ServoControl® Technologie"},
		MachineType{ID: uuid.NewString(), Code: "LWV", Name: "Luftwebmaschine LWV", Description: "Für spezielle Anwendungen"},
	)
	d.LastModified = now
	return d, nil
}
