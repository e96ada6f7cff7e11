package internal

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"loom-maintenance-backend/config"
	"loom-maintenance-backend/internal/api"
	"loom-maintenance-backend/internal/client"
	"loom-maintenance-backend/internal/db"
	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/monitor"
	"loom-maintenance-backend/internal/notification"
	"loom-maintenance-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
	logs.Discard()
	model.PasswordCost = bcrypt.MinCost
}

type collectingSink struct {
	mu  sync.Mutex
	got []model.Notification
}

func (s *collectingSink) Name() string { return "collect" }

func (s *collectingSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return nil
}

func (s *collectingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.got))
	for _, n := range s.got {
		out = append(out, n.Message)
	}
	return out
}

// TestMaintenanceLifecycle runs a machine through a full service interval:
// a client records operating hours, the monitor raises the warning and the
// overdue notification, a failed and a successful completion follow.
func TestMaintenanceLifecycle(t *testing.T) {
	// --- Test Setup ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.Init("sqlite", &config.DatabaseConfig{DSN: "file:lifecycle?mode=memory&cache=shared"})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	s := store.NewGormStore(gormDB, 3)
	seeded, err := store.EnsureSeed(ctx, s, time.Now())
	require.NoError(t, err)
	require.True(t, seeded)

	sink := &collectingSink{}
	pool := notification.NewWorkerPool(2, sink)
	pool.Start(ctx)
	mon := monitor.NewService(config.MonitorConfig{Enabled: true, Interval: time.Hour}, s, pool)

	h := api.NewHandler(s, api.Options{Version: "test", UploadsDir: t.TempDir(), Dispatcher: pool})
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{CacheTTL: time.Minute}))
	defer srv.Close()

	mgr := client.NewManager(client.New(srv.URL, nil), client.Options{})
	require.NoError(t, mgr.Start(ctx))
	require.Equal(t, client.Connected, mgr.State())

	// --- Fleet setup through the client ---
	_, err = mgr.Login(ctx, "admin", "admin")
	require.NoError(t, err)
	_, err = mgr.AddTemplate(ctx, model.NewTemplate{
		ID:          "T1",
		Name:        "Standard P2",
		MachineType: "P2",
		Components:  []model.Component{{ID: "C1", Name: "Greifer", IntervalHours: 500}},
	})
	require.NoError(t, err)
	_, err = mgr.AddMachine(ctx, model.NewMachine{ID: "M1", Name: "Halle 1-A", Type: "P2", MaintenanceTemplateID: "T1"})
	require.NoError(t, err)
	_, err = mgr.AddPart(ctx, model.NewPart{ID: "P1", Name: "Greiferband", PartNumber: "GB-1", Stock: 1, MinStock: 1})
	require.NoError(t, err)

	raised, err := mon.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// --- Warning range ---
	_, err = mgr.UpdateMachine(ctx, "M1", model.MachineUpdate{OperatingHours: model.Some[int64](450)})
	require.NoError(t, err)
	report, err := client.New(srv.URL, nil).Report(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, maintenance.StatusWarning, report.Status)
	assert.Equal(t, int64(50), report.Components[0].RemainingHours)

	raised, err = mon.CheckOnce(ctx)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.False(t, raised[0].Urgent)

	// --- Overdue ---
	_, err = mgr.UpdateMachine(ctx, "M1", model.MachineUpdate{OperatingHours: model.Some[int64](500)})
	require.NoError(t, err)
	raised, err = mon.CheckOnce(ctx)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.True(t, raised[0].Urgent)

	assert.Eventually(t, func() bool { return len(sink.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)

	// --- Completion fails on stock, leaving everything unchanged ---
	_, err = mgr.CompleteMaintenance(ctx, model.CompletionRequest{
		MachineID:  "M1",
		Technician: "Administrator",
		Components: []string{"C1"},
		Parts:      []model.PartUsage{{PartID: "P1", Quantity: 2}},
	})
	assert.ErrorIs(t, err, fleet.ErrInsufficientStock)
	stored, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored.MaintenanceHistory)
	assert.Equal(t, 1, stored.Part("P1").Stock)

	// --- Completion succeeds ---
	out, err := mgr.CompleteMaintenance(ctx, model.CompletionRequest{
		MachineID:  "M1",
		Technician: "Administrator",
		Components: []string{"C1"},
		Parts:      []model.PartUsage{{PartID: "P1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MachineServiced, out.Machine.Status)
	require.Len(t, out.Notifications, 1, "part dropped below minimum stock")

	stored, err = s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, stored.MaintenanceHistory, 1)
	assert.Equal(t, out.Record.ID, stored.MaintenanceHistory[0].ID)
	assert.Equal(t, 0, stored.Part("P1").Stock)
	r := maintenance.EvaluateIn(stored, stored.Machine("M1"))
	assert.Equal(t, int64(500), r.Components[0].RemainingHours)
	assert.Equal(t, maintenance.StatusOK, r.Status)

	raised, err = mon.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// The client mirror converges with the server on the next poll.
	mgr.Tick(ctx)
	assert.True(t, stored.Fingerprint().Equal(mgr.Document().Fingerprint()))

	cancel()
	pool.Wait()
}
