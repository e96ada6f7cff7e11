package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom-maintenance-backend/config"
	"loom-maintenance-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	db, err := Init("sqlite", &config.DatabaseConfig{DSN: "file:dbinit?mode=memory&cache=shared", MaxOpenConns: 1})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	assert.True(t, db.Migrator().HasTable(&model.DocumentSnapshot{}))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init("mysql", &config.DatabaseConfig{})
	assert.Error(t, err)
}
