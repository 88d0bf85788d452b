// package migrations
package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DataMigration tracks executed data migrations (like Django).
// Table name is fixed to avoid collisions with other models.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// RunOnce runs fn only if migrationID was not executed before.
// It records the migration as executed only after fn succeeds.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return fmt.Errorf("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var m DataMigration
		err := tx.First(&m, "id = ?", migrationID).Error
		if err == nil {
			// already applied
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}

		// execute migration work
		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}

		// record as applied
		rec := DataMigration{
			ID:        migrationID,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}

		return nil
	})
}

// Run executes all data migrations that go beyond schema auto-migrations.
// Append new migrations at the bottom with a stable unique id.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	if err := RunOnce(db, "00001_backfill_order_entry_type", backfillOrderEntryType); err != nil {
		return err
	}

	if err := RunOnce(db, "00002_backfill_signal_final_verdict", backfillSignalFinalVerdict); err != nil {
		return err
	}

	return nil
}

// backfillOrderEntryType stamps orders created before the re-entry feature
// as initial entries.
func backfillOrderEntryType(db *gorm.DB) error {
	return db.Exec(
		`UPDATE orders SET entry_type = 'initial' WHERE entry_type IS NULL OR entry_type = ''`,
	).Error
}

// backfillSignalFinalVerdict copies the legacy verdict column into
// final_verdict for rows written before the engine emitted both.
func backfillSignalFinalVerdict(db *gorm.DB) error {
	return db.Exec(
		`UPDATE signals SET final_verdict = verdict WHERE (final_verdict IS NULL OR final_verdict = '') AND verdict IS NOT NULL`,
	).Error
}
