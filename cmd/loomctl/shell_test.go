package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"loom-maintenance-backend/internal/client"
	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

func init() {
	logs.Discard()
	model.PasswordCost = bcrypt.MinCost
}

func TestParseArgs(t *testing.T) {
	testCases := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"machines", []string{"machines"}},
		{"  hours  M1   500 ", []string{"hours", "M1", "500"}},
		{`login admin "pass word"`, []string{"login", "admin", "pass word"}},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, parseArgs(tc.line), tc.line)
	}
}

// offlineShell starts a shell against an address nothing listens on.
func offlineShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	local, err := store.NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)
	mgr := client.NewManager(client.New("http://127.0.0.1:1", nil), client.Options{Local: local})
	require.NoError(t, mgr.Start(context.Background()))
	require.Equal(t, client.Degraded, mgr.State())
	var out bytes.Buffer
	return newShell(mgr, &out), &out
}

func TestShell_Offline(t *testing.T) {
	ctx := context.Background()
	sh, out := offlineShell(t)

	require.NoError(t, sh.exec(ctx, []string{"login", "tech", "tech"}))
	assert.Contains(t, out.String(), "logged in as Techniker")

	assert.ErrorIs(t, sh.exec(ctx, []string{"login", "tech", "nope"}), fleet.ErrBadCredentials)
	assert.ErrorIs(t, sh.exec(ctx, []string{"hours", "ghost", "10"}), fleet.ErrNotFound)
	assert.Error(t, sh.exec(ctx, []string{"hours", "ghost"}))
	assert.Error(t, sh.exec(ctx, []string{"frobnicate"}))
	assert.ErrorIs(t, sh.exec(ctx, []string{"quit"}), errQuit)

	out.Reset()
	require.NoError(t, sh.exec(ctx, []string{"state"}))
	assert.Contains(t, out.String(), "state: degraded")
	assert.Contains(t, out.String(), "user: tech")
}

func TestShell_MachineWorkflow(t *testing.T) {
	ctx := context.Background()
	sh, out := offlineShell(t)

	_, err := sh.mgr.AddTemplate(ctx, model.NewTemplate{
		ID:          "T1",
		Name:        "Standard P2",
		MachineType: "P2",
		Components:  []model.Component{{ID: "C1", Name: "Greifer", IntervalHours: 500}},
	})
	require.NoError(t, err)
	_, err = sh.mgr.AddMachine(ctx, model.NewMachine{ID: "M1", Name: "Halle 1-A", Type: "P2", MaintenanceTemplateID: "T1"})
	require.NoError(t, err)

	require.NoError(t, sh.exec(ctx, []string{"hours", "M1", "450"}))
	out.Reset()
	require.NoError(t, sh.exec(ctx, []string{"report", "M1"}))
	assert.Contains(t, out.String(), "warning")

	require.NoError(t, sh.exec(ctx, []string{"complete", "M1", "C1"}))
	out.Reset()
	require.NoError(t, sh.exec(ctx, []string{"machines"}))
	assert.Contains(t, out.String(), "Halle 1-A")
	assert.Contains(t, out.String(), "500 h")

	assert.Len(t, sh.mgr.Pending(), 4)
}
