package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineUpdate_Decode(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		wantSet   bool
		wantNull  bool
		wantValue string
		wantHours bool
	}{
		{name: "absent field is unchanged", body: `{"name":"M1"}`},
		{name: "null clears", body: `{"maintenanceTemplateId":null}`, wantSet: true, wantNull: true},
		{name: "value sets", body: `{"maintenanceTemplateId":"T1","operatingHours":450}`, wantSet: true, wantValue: "T1", wantHours: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var u MachineUpdate
			require.NoError(t, json.Unmarshal([]byte(tc.body), &u))
			assert.Equal(t, tc.wantSet, u.MaintenanceTemplateID.Set)
			assert.Equal(t, tc.wantNull, u.MaintenanceTemplateID.Null)
			assert.Equal(t, tc.wantValue, u.MaintenanceTemplateID.Value)
			assert.Equal(t, tc.wantHours, u.OperatingHours.Set)
		})
	}
}

func TestMachineUpdate_EncodeOmitsUnset(t *testing.T) {
	u := MachineUpdate{
		OperatingHours:        Some[int64](500),
		MaintenanceTemplateID: Clear[string](),
	}
	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"operatingHours":500,"maintenanceTemplateId":null}`, string(b))
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	tid := "T1"
	d := NewDocument()
	d.Machines = append(d.Machines, Machine{
		ID:                    "M1",
		MaintenanceTemplateID: &tid,
		ComponentStates:       map[string]ComponentState{"C1": {LastMaintenanceHours: 10}},
	})
	d.MaintenanceTemplates = append(d.MaintenanceTemplates, MaintenanceTemplate{
		ID:         "T1",
		Components: []Component{{ID: "C1", IntervalHours: 500, Tasks: []string{"oil"}}},
	})

	c := d.Clone()
	c.Machines[0].ComponentStates["C1"] = ComponentState{LastMaintenanceHours: 99}
	*c.Machines[0].MaintenanceTemplateID = "T2"
	c.MaintenanceTemplates[0].Components[0].Tasks[0] = "grease"

	assert.Equal(t, int64(10), d.Machines[0].ComponentStates["C1"].LastMaintenanceHours)
	assert.Equal(t, "T1", d.Machines[0].TemplateID())
	assert.Equal(t, "oil", d.MaintenanceTemplates[0].Components[0].Tasks[0])
	assert.True(t, d.Fingerprint().Equal(c.Fingerprint()))

	c.Parts = append(c.Parts, Part{ID: "P"})
	assert.False(t, d.Fingerprint().Equal(c.Fingerprint()))
}

func TestSeed(t *testing.T) {
	PasswordCost = 4
	d, err := Seed(testNow)
	require.NoError(t, err)

	require.Len(t, d.Users, 3)
	assert.True(t, d.Users[0].CheckPassword("admin"))
	assert.False(t, d.Users[0].CheckPassword("tech"))
	assert.Equal(t, RoleTechnician, d.Users[1].Role)

	codes := make([]string, 0, len(d.MachineTypes))
	for _, mt := range d.MachineTypes {
		codes = append(codes, mt.Code)
	}
	assert.Equal(t, []string{"P2", "P1", "A1", "LWV"}, codes)
	assert.Empty(t, d.Machines)
	assert.NotNil(t, d.Machines)
}

var testNow = mustParse("2025-03-01T08:00:00Z")

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
