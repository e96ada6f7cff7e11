package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/parse"
)

// Every mutation validates with the same fleet operation the server runs,
// so a change that fails locally is never sent.

func (m *Manager) AddMachine(ctx context.Context, in model.NewMachine) (model.Machine, error) {
	var out model.Machine
	err := m.mutate(ctx, "machine.add", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AddMachine(d, in, now)
		in.ID = out.ID
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateMachine(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Machines, srv, machineID) }, nil
	})
	return out, err
}

func (m *Manager) UpdateMachine(ctx context.Context, id string, u model.MachineUpdate) (model.Machine, error) {
	var out model.Machine
	err := m.mutate(ctx, "machine.update", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.UpdateMachine(d, id, u, now)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdateMachine(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Machines, srv, machineID) }, nil
	})
	return out, err
}

func (m *Manager) DeleteMachine(ctx context.Context, id string) error {
	return m.mutate(ctx, "machine.delete", func(d *model.Document, _ time.Time) error {
		return fleet.DeleteMachine(d, id)
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeleteMachine(ctx, id)
	})
}

// AssignTemplate assigns a template and resets the machine's component
// states. An empty templateID unassigns.
func (m *Manager) AssignTemplate(ctx context.Context, machine, template string) (model.Machine, error) {
	var out model.Machine
	err := m.mutate(ctx, "machine.template", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AssignTemplate(d, machine, template, now)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.AssignTemplate(ctx, machine, template)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Machines, srv, machineID) }, nil
	})
	return out, err
}

func (m *Manager) AssignTemplateToMany(ctx context.Context, template string, machines []string) ([]model.Machine, error) {
	var out []model.Machine
	err := m.mutate(ctx, "template.assign", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AssignTemplateToMany(d, template, machines, now)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.AssignTemplateToMany(ctx, template, machines)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) {
			for _, mc := range srv {
				upsert(&d.Machines, mc, machineID)
			}
		}, nil
	})
	return out, err
}

// CompleteMaintenance records finished maintenance. The server's
// notifications replace the ones raised locally.
func (m *Manager) CompleteMaintenance(ctx context.Context, req model.CompletionRequest) (fleet.Completion, error) {
	var out fleet.Completion
	err := m.mutate(ctx, "machine.maintenance", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.CompleteMaintenance(d, req, now)
		req.RecordID = out.Record.ID
		return err
	}, func(ctx context.Context) (patch, error) {
		local := make([]string, 0, len(out.Notifications))
		for _, n := range out.Notifications {
			local = append(local, n.ID)
		}
		srv, err := m.api.CompleteMaintenance(ctx, req)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) {
			upsert(&d.Machines, srv.Machine, machineID)
			upsert(&d.MaintenanceHistory, srv.Record, recordID)
			for _, p := range srv.Parts {
				upsert(&d.Parts, p, partID)
			}
			removeIDs(&d.Notifications, notificationID, local...)
			for _, n := range srv.Notifications {
				upsert(&d.Notifications, n, notificationID)
			}
		}, nil
	})
	return out, err
}

func (m *Manager) AddTemplate(ctx context.Context, in model.NewTemplate) (model.MaintenanceTemplate, error) {
	var out model.MaintenanceTemplate
	err := m.mutate(ctx, "template.add", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.AddTemplate(d, in)
		in.ID = out.ID
		in.Components = out.Components
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateTemplate(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.MaintenanceTemplates, srv, templateID) }, nil
	})
	return out, err
}

// UpdateTemplate changes a template. When its components change the states
// of every machine using it are re-synced, so the whole document is pulled
// on the next poll anyway.
func (m *Manager) UpdateTemplate(ctx context.Context, id string, u model.TemplateUpdate) (model.MaintenanceTemplate, error) {
	var out model.MaintenanceTemplate
	err := m.mutate(ctx, "template.update", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.UpdateTemplate(d, id, u, now)
		if err == nil && u.Components.Set {
			u.Components = model.Some(out.Components)
		}
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdateTemplate(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.MaintenanceTemplates, srv, templateID) }, nil
	})
	return out, err
}

func (m *Manager) DeleteTemplate(ctx context.Context, id string) error {
	return m.mutate(ctx, "template.delete", func(d *model.Document, _ time.Time) error {
		return fleet.DeleteTemplate(d, id)
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeleteTemplate(ctx, id)
	})
}

func (m *Manager) AddPart(ctx context.Context, in model.NewPart) (model.Part, error) {
	var out model.Part
	err := m.mutate(ctx, "part.add", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.AddPart(d, in)
		in.ID = out.ID
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreatePart(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Parts, srv, partID) }, nil
	})
	return out, err
}

func (m *Manager) UpdatePart(ctx context.Context, id string, u model.PartUpdate) (model.Part, error) {
	var out model.Part
	err := m.mutate(ctx, "part.update", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.UpdatePart(d, id, u)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdatePart(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Parts, srv, partID) }, nil
	})
	return out, err
}

func (m *Manager) DeletePart(ctx context.Context, id string) error {
	return m.mutate(ctx, "part.delete", func(d *model.Document, _ time.Time) error {
		return fleet.DeletePart(d, id)
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeletePart(ctx, id)
	})
}

// UsePart takes parts out of stock. The returned notification is set when
// the part dropped below its minimum.
func (m *Manager) UsePart(ctx context.Context, id string, quantity int) (model.Part, *model.Notification, error) {
	var (
		out   model.Part
		notif *model.Notification
	)
	err := m.mutate(ctx, "part.use", func(d *model.Document, now time.Time) (err error) {
		out, notif, err = fleet.UsePart(d, id, quantity, now)
		return err
	}, func(ctx context.Context) (patch, error) {
		var local []string
		if notif != nil {
			local = append(local, notif.ID)
		}
		srv, n, err := m.api.UsePart(ctx, id, quantity)
		if err != nil {
			return nil, err
		}
		out, notif = srv, n
		return func(d *model.Document) {
			upsert(&d.Parts, srv, partID)
			removeIDs(&d.Notifications, notificationID, local...)
			if n != nil {
				upsert(&d.Notifications, *n, notificationID)
			}
		}, nil
	})
	return out, notif, err
}

// AddRecord appends a history entry.
func (m *Manager) AddRecord(ctx context.Context, r model.MaintenanceRecord) (model.MaintenanceRecord, error) {
	var out model.MaintenanceRecord
	err := m.mutate(ctx, "history.add", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AddRecord(d, r, now)
		r = out
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.AddRecord(ctx, r)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.MaintenanceHistory, srv, recordID) }, nil
	})
	return out, err
}

func (m *Manager) AddUser(ctx context.Context, in model.NewUser) (model.UserView, error) {
	var out model.UserView
	err := m.mutate(ctx, "user.add", func(d *model.Document, now time.Time) error {
		u, err := fleet.AddUser(d, in, now)
		out = u.View()
		in.ID = u.ID
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateUser(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { mergeUser(d, srv) }, nil
	})
	return out, err
}

func (m *Manager) UpdateUser(ctx context.Context, id string, u model.UserUpdate) (model.UserView, error) {
	var out model.UserView
	err := m.mutate(ctx, "user.update", func(d *model.Document, _ time.Time) error {
		usr, err := fleet.UpdateUser(d, id, u)
		out = usr.View()
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdateUser(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { mergeUser(d, srv) }, nil
	})
	return out, err
}

func (m *Manager) DeleteUser(ctx context.Context, id string) error {
	return m.mutate(ctx, "user.delete", func(d *model.Document, _ time.Time) error {
		return fleet.DeleteUser(d, id)
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeleteUser(ctx, id)
	})
}

func (m *Manager) AddMachineType(ctx context.Context, in model.NewMachineType) (model.MachineType, error) {
	var out model.MachineType
	err := m.mutate(ctx, "machineType.add", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.AddMachineType(d, in)
		in.ID = out.ID
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateMachineType(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.MachineTypes, srv, machineTypeID) }, nil
	})
	return out, err
}

func (m *Manager) UpdateMachineType(ctx context.Context, id string, u model.MachineTypeUpdate) (model.MachineType, error) {
	var out model.MachineType
	err := m.mutate(ctx, "machineType.update", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.UpdateMachineType(d, id, u)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdateMachineType(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.MachineTypes, srv, machineTypeID) }, nil
	})
	return out, err
}

func (m *Manager) DeleteMachineType(ctx context.Context, id string) error {
	return m.mutate(ctx, "machineType.delete", func(d *model.Document, _ time.Time) error {
		return fleet.DeleteMachineType(d, id)
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeleteMachineType(ctx, id)
	})
}

func (m *Manager) AddFloorPlan(ctx context.Context, in model.NewFloorPlan) (model.FloorPlan, error) {
	var out model.FloorPlan
	err := m.mutate(ctx, "floorPlan.add", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AddFloorPlan(d, in, now)
		in.ID, in.Width, in.Height = out.ID, out.Width, out.Height
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateFloorPlan(ctx, in)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.FloorPlans, srv, floorPlanID) }, nil
	})
	return out, err
}

// UploadFloorPlan adds a floor plan from an image file. Connected, the image
// is uploaded and stored on the server; otherwise it is kept inline as a
// data URI in the local plan.
func (m *Manager) UploadFloorPlan(ctx context.Context, name, filename string, image []byte) (model.FloorPlan, error) {
	info, err := parse.ProbeImage(bytes.NewReader(image))
	if err != nil {
		return model.FloorPlan{}, err
	}
	in := model.NewFloorPlan{
		Name:   name,
		Image:  parse.EncodeDataURI(info.MediaType, image),
		Width:  info.Width,
		Height: info.Height,
	}
	var out model.FloorPlan
	err = m.mutate(ctx, "floorPlan.upload", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AddFloorPlan(d, in, now)
		return err
	}, func(ctx context.Context) (patch, error) {
		localID := out.ID
		srv, err := m.api.UploadFloorPlan(ctx, name, filename, image)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) {
			removeIDs(&d.FloorPlans, floorPlanID, localID)
			upsert(&d.FloorPlans, srv, floorPlanID)
		}, nil
	})
	return out, err
}

func (m *Manager) UpdateFloorPlan(ctx context.Context, id string, u model.FloorPlanUpdate) (model.FloorPlan, error) {
	var out model.FloorPlan
	err := m.mutate(ctx, "floorPlan.update", func(d *model.Document, _ time.Time) (err error) {
		out, err = fleet.UpdateFloorPlan(d, id, u)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.UpdateFloorPlan(ctx, id, u)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.FloorPlans, srv, floorPlanID) }, nil
	})
	return out, err
}

func (m *Manager) DeleteFloorPlan(ctx context.Context, id string) error {
	return m.mutate(ctx, "floorPlan.delete", func(d *model.Document, _ time.Time) error {
		_, err := fleet.DeleteFloorPlan(d, id)
		return err
	}, func(ctx context.Context) (patch, error) {
		return nil, m.api.DeleteFloorPlan(ctx, id)
	})
}

func (m *Manager) SetPosition(ctx context.Context, plan, machine string, pos model.Position) error {
	return m.positions(ctx, "floorPlan.position", func(d *model.Document) error {
		_, err := fleet.SetPosition(d, plan, machine, pos)
		return err
	}, func(ctx context.Context) (model.FloorPlan, error) {
		return m.api.SetPosition(ctx, plan, machine, pos)
	})
}

func (m *Manager) RemovePosition(ctx context.Context, plan, machine string) error {
	return m.positions(ctx, "floorPlan.position", func(d *model.Document) error {
		_, err := fleet.RemovePosition(d, plan, machine)
		return err
	}, func(ctx context.Context) (model.FloorPlan, error) {
		return m.api.RemovePosition(ctx, plan, machine)
	})
}

func (m *Manager) ClearPositions(ctx context.Context, plan string) error {
	return m.positions(ctx, "floorPlan.positions", func(d *model.Document) error {
		_, err := fleet.ClearPositions(d, plan)
		return err
	}, func(ctx context.Context) (model.FloorPlan, error) {
		return m.api.ClearPositions(ctx, plan)
	})
}

func (m *Manager) positions(ctx context.Context, op string, local func(d *model.Document) error, remote func(ctx context.Context) (model.FloorPlan, error)) error {
	return m.mutate(ctx, op, func(d *model.Document, _ time.Time) error {
		return local(d)
	}, func(ctx context.Context) (patch, error) {
		srv, err := remote(ctx)
		if err != nil {
			return nil, err
		}
		return func(d *model.Document) { upsert(&d.FloorPlans, srv, floorPlanID) }, nil
	})
}

func (m *Manager) AddNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	var out model.Notification
	err := m.mutate(ctx, "notification.add", func(d *model.Document, now time.Time) (err error) {
		out, err = fleet.AddNotification(d, n, now)
		n = out
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.CreateNotification(ctx, n)
		if err != nil {
			return nil, err
		}
		out = srv
		return func(d *model.Document) { upsert(&d.Notifications, srv, notificationID) }, nil
	})
	return out, err
}

func (m *Manager) MarkRead(ctx context.Context, id string) error {
	return m.mutate(ctx, "notification.read", func(d *model.Document, _ time.Time) error {
		_, err := fleet.MarkRead(d, id)
		return err
	}, func(ctx context.Context) (patch, error) {
		srv, err := m.api.MarkRead(ctx, id)
		if err != nil {
			return nil, err
		}
		return func(d *model.Document) { upsert(&d.Notifications, srv, notificationID) }, nil
	})
}

// Login starts a session. Connected, the server checks the credentials;
// otherwise they are checked against the cached users.
func (m *Manager) Login(ctx context.Context, username, password string) (model.UserView, error) {
	m.op.Lock()
	defer m.op.Unlock()

	if m.State() == Connected {
		u, err := m.api.Login(ctx, username, password)
		var apiErr *APIError
		switch {
		case err == nil:
			m.setUser(&u)
			return u, nil
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
			return model.UserView{}, fleet.ErrBadCredentials
		case !IsConnectivity(err):
			return model.UserView{}, err
		}
		m.readFailed(err)
	}

	m.mu.RLock()
	u, err := fleet.Authenticate(m.doc, username, password)
	m.mu.RUnlock()
	if err != nil {
		return model.UserView{}, err
	}
	v := u.View()
	m.setUser(&v)
	return v, nil
}

// Logout ends the session.
func (m *Manager) Logout() {
	m.setUser(nil)
}

// User returns the logged-in user.
func (m *Manager) User() (model.UserView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return model.UserView{}, false
	}
	return *m.user, true
}

func (m *Manager) setUser(u *model.UserView) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
}
