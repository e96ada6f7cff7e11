package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-maintenance-backend/internal/model"
)

func TestFloorPlans(t *testing.T) {
	d := fixture(t)
	f, err := AddFloorPlan(d, model.NewFloorPlan{ID: "F1", Name: "Halle 1", Path: "/uploads/halle1.png", Width: 800, Height: 600}, now)
	require.NoError(t, err)
	assert.Equal(t, now, f.UploadedAt)
	assert.NotNil(t, f.MachinePositions)

	_, err = AddFloorPlan(d, model.NewFloorPlan{Name: "broken", Image: "data:image/png;base64,AAAA"}, now)
	assert.ErrorIs(t, err, ErrInvalid)

	testCases := []struct {
		name    string
		plan    string
		machine string
		pos     model.Position
		target  error
	}{
		{name: "inside", plan: "F1", machine: "M1", pos: model.Position{X: 400, Y: 300}},
		{name: "edge", plan: "F1", machine: "M1", pos: model.Position{X: 800, Y: 600}},
		{name: "outside", plan: "F1", machine: "M1", pos: model.Position{X: 801, Y: 10}, target: ErrInvalid},
		{name: "negative", plan: "F1", machine: "M1", pos: model.Position{X: -1, Y: 10}, target: ErrInvalid},
		{name: "unknown machine", plan: "F1", machine: "M9", pos: model.Position{}, target: ErrNotFound},
		{name: "unknown plan", plan: "F9", machine: "M1", pos: model.Position{}, target: ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SetPosition(d, tc.plan, tc.machine, tc.pos)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.pos, d.FloorPlan("F1").MachinePositions[tc.machine])
		})
	}

	_, err = RemovePosition(d, "F1", "M1")
	require.NoError(t, err)
	_, err = RemovePosition(d, "F1", "M1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = SetPosition(d, "F1", "M1", model.Position{X: 1, Y: 1})
	require.NoError(t, err)
	f, err = ClearPositions(d, "F1")
	require.NoError(t, err)
	assert.Empty(t, f.MachinePositions)

	f, err = UpdateFloorPlan(d, "F1", model.FloorPlanUpdate{Path: model.Clear[string](), Name: model.Some("Halle 1 neu")})
	require.NoError(t, err)
	assert.Empty(t, f.Path)
	assert.Equal(t, "Halle 1 neu", f.Name)

	deleted, err := DeleteFloorPlan(d, "F1")
	require.NoError(t, err)
	assert.Equal(t, "F1", deleted.ID)
	assert.Empty(t, d.FloorPlans)
}

func TestNotifications(t *testing.T) {
	d := model.NewDocument()
	n := Notify(d, model.Notification{Message: "Luftdüse unterschreitet Mindestbestand!", Urgent: true}, now)
	assert.Equal(t, now, n.Timestamp)
	assert.Len(t, Unread(d), 1)

	_, err := MarkRead(d, n.ID)
	require.NoError(t, err)
	assert.Empty(t, Unread(d))
	_, err = MarkRead(d, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = AddNotification(d, model.Notification{}, now)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = AddNotification(d, model.Notification{ID: n.ID, Message: "dup"}, now)
	assert.ErrorIs(t, err, ErrDuplicate)
}
