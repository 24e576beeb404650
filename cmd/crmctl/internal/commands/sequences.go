package commands

import (
	"context"
	"fmt"

	"funnel-crm/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SyncSequencesCmd struct{}

func (s *SyncSequencesCmd) Run(ctx context.Context, globals *Globals) error {
	_, db, log, err := connect(globals)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	return SyncSequences(ctx, db, log)
}

// SyncSequences moves each postgres id sequence past the largest stored id.
// Rows copied with explicit ids leave the sequences behind otherwise.
func SyncSequences(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	if name := db.Dialector.Name(); name != "postgres" {
		return fmt.Errorf("sequence sync needs postgres, got %s", name)
	}

	for _, m := range models.All() {
		table := tableName(m)
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), coalesce(max(id), 0) + 1, false) FROM %[1]s",
			table)
		if err := db.WithContext(ctx).Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
		log.Info("sequence synced", zap.String("table", table))
	}
	return nil
}
