package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"agora/internal/middleware"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var forumMigrationFiles embed.FS

// ErrSQLMigrationsUnsupported is returned by NewMigrator for drivers other
// than postgres. Those databases get their schema from AutoMigrate.
var ErrSQLMigrationsUnsupported = errors.New("sql migrations are written for postgres")

// Migration is one numbered forum schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	AppliedAt time.Time
}

func (AppliedMigration) TableName() string { return "schema_migrations" }

// ForumMigrations returns the migrations shipped with the binary, oldest first.
func ForumMigrations() ([]Migration, error) {
	sub, err := fs.Sub(forumMigrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return LoadMigrations(sub)
}

// LoadMigrations reads NNNNNN_name.up.sql / NNNNNN_name.down.sql pairs from
// the root of fsys. Every up script needs its down script and versions must
// be unique.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, ".down.sql") {
			up := strings.TrimSuffix(name, ".down.sql") + ".up.sql"
			if _, err := fs.Stat(fsys, up); err != nil {
				return nil, fmt.Errorf("migration %s has no up script", name)
			}
			continue
		}

		base, ok := strings.CutSuffix(name, ".up.sql")
		if !ok {
			return nil, fmt.Errorf("migration %s must end in .up.sql or .down.sql", name)
		}
		rawVersion, label, ok := strings.Cut(base, "_")
		version, err := strconv.Atoi(rawVersion)
		if !ok || err != nil || version < 1 || label == "" {
			return nil, fmt.Errorf("migration %s must be named NNNNNN_name.up.sql", name)
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, base, version)
		}

		up, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, base+".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script", name)
		}
		byVersion[version] = Migration{Version: version, Name: label, Up: string(up), Down: string(down)}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrator applies the forum schema migrations and records them in
// schema_migrations. Each migration runs in its own transaction together
// with its bookkeeping row.
type Migrator struct {
	db    *gorm.DB
	steps []Migration
}

// NewMigrator returns a Migrator for the embedded forum migrations. It
// refuses databases that are not postgres.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	if name := db.Dialector.Name(); name != "postgres" {
		return nil, fmt.Errorf("%w, got %s", ErrSQLMigrationsUnsupported, name)
	}
	steps, err := ForumMigrations()
	if err != nil {
		return nil, err
	}
	return newMigrator(db, steps), nil
}

func newMigrator(db *gorm.DB, steps []Migration) *Migrator {
	return &Migrator{db: db, steps: steps}
}

// Applied lists the recorded versions, oldest first. A database that never
// ran a migration has none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&AppliedMigration{}) {
		return nil, nil
	}
	var versions []int
	if err := db.Model(&AppliedMigration{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the migrations not yet applied. It fails when the
// database records a version this binary does not know, which means it was
// migrated by a newer build.
func (m *Migrator) Pending(ctx context.Context) (applied []int, pending []Migration, err error) {
	applied, err = m.Applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := m.checkKnown(applied); err != nil {
		return applied, nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	for _, step := range m.steps {
		if !done[step.Version] {
			pending = append(pending, step)
		}
	}
	return applied, pending, nil
}

func (m *Migrator) checkKnown(applied []int) error {
	known := make(map[int]bool, len(m.steps))
	for _, step := range m.steps {
		known[step.Version] = true
	}
	var unknown []string
	for _, v := range applied {
		if !known[v] {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("schema_migrations has versions this build does not ship: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Up applies every pending migration in version order and returns the ones
// it applied.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&AppliedMigration{}); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	_, pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]Migration, 0, len(pending))
	for _, step := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(step.Up).Error; err != nil {
				return err
			}
			return tx.Create(&AppliedMigration{Version: step.Version, Name: step.Name, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", step, err)
		}
		middleware.Logger.Info("migration applied", zap.Stringer("migration", step))
		applied = append(applied, step)
	}
	return applied, nil
}

// Down rolls back version, which must be the newest applied migration so
// later migrations never lose what they were built on.
func (m *Migrator) Down(ctx context.Context, version int) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 || applied[len(applied)-1] != version {
		return fmt.Errorf("migration %06d is not the newest applied migration", version)
	}

	var step *Migration
	for i := range m.steps {
		if m.steps[i].Version == version {
			step = &m.steps[i]
			break
		}
	}
	if step == nil {
		return fmt.Errorf("migration %06d is not shipped with this build", version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(step.Down).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&AppliedMigration{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", step, err)
	}
	middleware.Logger.Info("migration rolled back", zap.Stringer("migration", step))
	return nil
}
