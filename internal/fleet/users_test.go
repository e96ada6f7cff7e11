package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-maintenance-backend/internal/model"
)

func TestUsers(t *testing.T) {
	d := model.NewDocument()
	admin, err := AddUser(d, model.NewUser{Username: "admin", Password: "s3cret", Name: "Administrator", Role: model.RoleAdmin}, now)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", admin.PasswordHash)

	_, err = AddUser(d, model.NewUser{Username: "ADMIN", Password: "x"}, now)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = AddUser(d, model.NewUser{Username: "nopw"}, now)
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = AddUser(d, model.NewUser{Username: "odd", Password: "x", Role: "owner"}, now)
	assert.ErrorIs(t, err, ErrInvalid)

	tech, err := AddUser(d, model.NewUser{Username: "tech", Password: "tech"}, now)
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, tech.Role)

	t.Run("authenticate", func(t *testing.T) {
		u, err := Authenticate(d, "Admin", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, admin.ID, u.ID)

		_, err = Authenticate(d, "admin", "wrong")
		assert.ErrorIs(t, err, ErrBadCredentials)
		_, err = Authenticate(d, "nobody", "s3cret")
		assert.ErrorIs(t, err, ErrBadCredentials)
	})

	t.Run("password change rehashes", func(t *testing.T) {
		_, err := UpdateUser(d, tech.ID, model.UserUpdate{Password: model.Some("new"), Role: model.Some(model.RoleTechnician)})
		require.NoError(t, err)
		_, err = Authenticate(d, "tech", "tech")
		assert.ErrorIs(t, err, ErrBadCredentials)
		u, err := Authenticate(d, "tech", "new")
		require.NoError(t, err)
		assert.Equal(t, model.RoleTechnician, u.Role)
	})

	t.Run("last admin is protected", func(t *testing.T) {
		_, err := UpdateUser(d, admin.ID, model.UserUpdate{Role: model.Some(model.RoleViewer)})
		assert.ErrorIs(t, err, ErrInUse)
		assert.ErrorIs(t, DeleteUser(d, admin.ID), ErrInUse)
		require.NoError(t, DeleteUser(d, tech.ID))
		assert.ErrorIs(t, DeleteUser(d, tech.ID), ErrNotFound)
	})
}

func TestMachineTypes(t *testing.T) {
	d := fixture(t)

	_, err := AddMachineType(d, model.NewMachineType{Code: "P2"})
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = AddMachineType(d, model.NewMachineType{Code: "bad code!"})
	assert.ErrorIs(t, err, ErrInvalid)

	a1, err := AddMachineType(d, model.NewMachineType{Code: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "A1", a1.Code)
	assert.Equal(t, "A1", a1.Name)

	t.Run("referenced type cannot be deleted or recoded", func(t *testing.T) {
		assert.ErrorIs(t, DeleteMachineType(d, "mt-p2"), ErrInUse)
		_, err := UpdateMachineType(d, "mt-p2", model.MachineTypeUpdate{Code: model.Some("P3")})
		assert.ErrorIs(t, err, ErrInUse)
		mt, err := UpdateMachineType(d, "mt-p2", model.MachineTypeUpdate{Description: model.Some("Modernste Generation")})
		require.NoError(t, err)
		assert.Equal(t, "P2", mt.Code)
	})

	t.Run("template reference alone blocks deletion", func(t *testing.T) {
		require.NoError(t, DeleteMachine(d, "M1"))
		assert.ErrorIs(t, DeleteMachineType(d, "mt-p2"), ErrInUse)
		require.NoError(t, DeleteTemplate(d, "T1"))
		require.NoError(t, DeleteMachineType(d, "mt-p2"))
	})

	require.NoError(t, DeleteMachineType(d, a1.ID))
	assert.Empty(t, d.MachineTypes)
}

func TestParts(t *testing.T) {
	d := fixture(t)
	withPart(t, d, "P1", 10, 2)
	assert.Equal(t, []string{"P2"}, d.Part("P1").MachineTypes)

	_, err := AddPart(d, model.NewPart{Name: "neg", Stock: -1})
	assert.ErrorIs(t, err, ErrInvalid)

	p, err := UpdatePart(d, "P1", model.PartUpdate{Stock: model.Some(1), PartNumber: model.Clear[string]()})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
	assert.Empty(t, p.PartNumber)
	assert.Len(t, LowStock(d), 1)

	require.NoError(t, DeletePart(d, "P1"))
	assert.ErrorIs(t, DeletePart(d, "P1"), ErrNotFound)
}

func TestTemplateMachineTypeIsNormalized(t *testing.T) {
	d := fixture(t)
	require.NoError(t, DeleteMachine(d, "M1"))
	require.NoError(t, DeleteTemplate(d, "T1"))

	tmpl, err := AddTemplate(d, model.NewTemplate{ID: "T2", Name: "Klein", MachineType: " p2 "})
	require.NoError(t, err)
	assert.Equal(t, "P2", tmpl.MachineType)
	assert.ErrorIs(t, DeleteMachineType(d, "mt-p2"), ErrInUse)
	assert.Len(t, TemplatesFor(d, "p2"), 1)

	_, err = UpdateTemplate(d, "T2", model.TemplateUpdate{MachineType: model.Some("bad code!")}, now)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "P2", d.Template("T2").MachineType)

	_, err = UpdateTemplate(d, "T2", model.TemplateUpdate{MachineType: model.Clear[string]()}, now)
	require.NoError(t, err)
	require.NoError(t, DeleteMachineType(d, "mt-p2"))
}
