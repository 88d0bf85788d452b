package migrations_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"signalreconciler/src/database/migrations"
	"signalreconciler/src/model"
)

func newMigrationsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Signal{},
		&model.Order{},
		&migrations.DataMigration{},
	))

	return db
}

func TestRunOnceAppliesExactlyOnce(t *testing.T) {
	db := newMigrationsDB(t)

	applied := 0
	fn := func(*gorm.DB) error {
		applied++
		return nil
	}

	require.NoError(t, migrations.RunOnce(db, "test_migration", fn))
	require.NoError(t, migrations.RunOnce(db, "test_migration", fn))

	require.Equal(t, 1, applied)
}

func TestRunOnceRecordsOnlyAfterSuccess(t *testing.T) {
	db := newMigrationsDB(t)

	failing := func(*gorm.DB) error { return errors.New("boom") }
	require.Error(t, migrations.RunOnce(db, "flaky_migration", failing))

	// the failed attempt must not be recorded, so a retry still runs
	applied := 0
	working := func(*gorm.DB) error {
		applied++
		return nil
	}
	require.NoError(t, migrations.RunOnce(db, "flaky_migration", working))
	require.Equal(t, 1, applied)
}

func TestRunOnceRejectsEmptyID(t *testing.T) {
	db := newMigrationsDB(t)

	require.Error(t, migrations.RunOnce(db, "", func(*gorm.DB) error { return nil }))
	require.Error(t, migrations.RunOnce(db, "no_fn", nil))
}

func TestRunBackfillsLegacyRows(t *testing.T) {
	db := newMigrationsDB(t)

	// legacy rows written before entry_type and final_verdict existed
	require.NoError(t, db.Exec(
		`INSERT INTO orders (user_id, symbol, side, quantity, entry_type, status) VALUES (7, 'RELIANCE', 'buy', 10, '', 'PENDING')`,
	).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO signals (symbol, verdict, final_verdict, status, generated_at) VALUES ('RELIANCE', 'buy', '', 'ACTIVE', '2026-08-20 09:00:00')`,
	).Error)

	require.NoError(t, migrations.Run(db))

	var order model.Order
	require.NoError(t, db.First(&order).Error)
	require.Equal(t, model.EntryTypeInitial, order.EntryType)

	var signal model.Signal
	require.NoError(t, db.First(&signal).Error)
	require.Equal(t, model.VerdictBuy, signal.FinalVerdict)

	// replaying the full set is a no-op
	require.NoError(t, migrations.Run(db))
}
