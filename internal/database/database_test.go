package database

import (
	"context"
	"testing"

	"agora/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBDriver:                 "postgres",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)

	cfg.DBDriver = "sqlite"
	require.NoError(t, configurePool(db, cfg))
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver string
		name   string
	}{
		{"postgres", "postgres"},
		{"", "postgres"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
	}
	for _, tt := range tests {
		d, err := Dialector(&config.Config{DBDriver: tt.driver, DBPath: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, tt.name, d.Name())
	}

	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestConnectWithOptions_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBPath:       ":memory:",
		DBSchemaMode: SchemaModeHybrid,
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "%T table missing", m)
	}

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"postgres hybrid dev", config.Config{DBDriver: "postgres", Env: "development"}, true, true, false},
		{"postgres hybrid prod", config.Config{DBDriver: "postgres", Env: "production"}, true, false, false},
		{"postgres sql", config.Config{DBDriver: "postgres", DBSchemaMode: "sql"}, true, false, false},
		{"postgres auto prod refused", config.Config{DBDriver: "postgres", DBSchemaMode: "auto", Env: "production"}, false, false, true},
		{"postgres auto prod allowed", config.Config{DBDriver: "postgres", DBSchemaMode: "auto", Env: "production", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"mysql always auto", config.Config{DBDriver: "mysql", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{DBDriver: "postgres", DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestGormLogger_LogMode(t *testing.T) {
	l := NewGormLogger(nil, logger.Warn)
	quiet := l.LogMode(logger.Silent).(*CustomGormLogger)
	assert.Equal(t, logger.Silent, quiet.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)
	assert.Equal(t, "select", sqlOperation("SELECT * FROM forums"))
	assert.Equal(t, "unknown", sqlOperation(""))
}

func TestForumMigrations(t *testing.T) {
	migs, err := ForumMigrations()
	require.NoError(t, err)
	require.Len(t, migs, 2)

	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "init_forum_schema", migs[0].Name)
	assert.Contains(t, migs[0].Up, "CREATE TABLE IF NOT EXISTS forums")
	assert.NotEmpty(t, migs[0].Down)
	assert.Equal(t, "000001_init_forum_schema", migs[0].String())

	assert.Equal(t, 2, migs[1].Version)
	assert.Equal(t, "reply_position_index", migs[1].Name)
}
