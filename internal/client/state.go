package client

import (
	"slices"
	"time"

	"loom-maintenance-backend/internal/model"
)

// State is the connection state of a Manager.
type State int

const (
	// Disconnected is the state before the first fetch.
	Disconnected State = iota
	// Connected means mutations go to the server and the cache is polled.
	Connected
	// Degraded means the server is unreachable; mutations stay local and are
	// pushed once the server answers health checks again.
	Degraded
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// ChangeKind says why the cached document changed.
type ChangeKind int

const (
	// Pulled means the cache was replaced with the server document.
	Pulled ChangeKind = iota
	// Local means a mutation changed the cache.
	Local
)

func (k ChangeKind) String() string {
	if k == Local {
		return "local"
	}
	return "pulled"
}

// Pending marks a mutation that only exists in the local cache.
type Pending struct {
	Op string    `json:"op"`
	At time.Time `json:"at"`
}

// patch applies a server response to the cached document.
type patch func(d *model.Document)

// upsert replaces the element with v's ID, or appends v.
func upsert[T any](list *[]T, v T, id func(*T) string) {
	want := id(&v)
	for i := range *list {
		if id(&(*list)[i]) == want {
			(*list)[i] = v
			return
		}
	}
	*list = append(*list, v)
}

func removeIDs[T any](list *[]T, id func(*T) string, ids ...string) {
	*list = slices.DeleteFunc(*list, func(v T) bool {
		return slices.Contains(ids, id(&v))
	})
}

func machineID(m *model.Machine) string { return m.ID }
func partID(p *model.Part) string { return p.ID }
func templateID(t *model.MaintenanceTemplate) string { return t.ID }
func recordID(r *model.MaintenanceRecord) string { return r.ID }
func machineTypeID(mt *model.MachineType) string { return mt.ID }
func floorPlanID(f *model.FloorPlan) string { return f.ID }
func notificationID(n *model.Notification) string { return n.ID }

// mergeUser patches the cached user with a server view. The password hash
// is not part of the view and stays as computed locally.
func mergeUser(d *model.Document, v model.UserView) {
	if u := d.User(v.ID); u != nil {
		u.Username, u.Name, u.Email, u.Role, u.Created = v.Username, v.Name, v.Email, v.Role, v.Created
	}
}
