package commands

import (
	"context"
	"fmt"

	"funnel-crm/internal/database"
	"funnel-crm/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const copyBatchSize = 500

type MigrateDataCmd struct {
	Source string `help:"Path of the sqlite database to copy from" default:"./crm.db"`
}

func (m *MigrateDataCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, dst, log, err := connect(globals)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("destination must be postgres, DB_DRIVER is %q", cfg.DBDriver)
	}

	src, err := gorm.Open(sqlite.Open(database.SQLiteDSN(m.Source)), &gorm.Config{
		Logger: database.NewGormLogger(log, logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open sqlite source: %w", err)
	}
	log.Info("connected to sqlite source", zap.String("path", m.Source))

	if err := CopyAll(ctx, src, dst, log); err != nil {
		return err
	}
	return SyncSequences(ctx, dst, log)
}

// CopyAll copies every table from src to dst in one transaction, parents
// first so foreign keys resolve. Primary keys are preserved.
func CopyAll(ctx context.Context, src, dst *gorm.DB, log *zap.Logger) error {
	return dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []func() (int, error){
			func() (int, error) { return copyTable[models.Account](ctx, src, tx) },
			func() (int, error) { return copyTable[models.Funnel](ctx, src, tx) },
			func() (int, error) { return copyTable[models.Stage](ctx, src, tx) },
			func() (int, error) { return copyTable[models.Contact](ctx, src, tx) },
			func() (int, error) { return copyTable[models.Message](ctx, src, tx) },
			func() (int, error) { return copyTable[models.Media](ctx, src, tx) },
		}
		for i, step := range steps {
			n, err := step()
			if err != nil {
				return err
			}
			log.Info("table copied", zap.String("table", tableName(models.All()[i])), zap.Int("rows", n))
		}
		return nil
	})
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB) (int, error) {
	var rows []T
	if err := src.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("read %T: %w", *new(T), err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := dst.Omit(clause.Associations).CreateInBatches(&rows, copyBatchSize).Error; err != nil {
		return 0, fmt.Errorf("write %T: %w", *new(T), err)
	}
	return len(rows), nil
}

type tabler interface {
	TableName() string
}

func tableName(model any) string {
	if t, ok := model.(tabler); ok {
		return t.TableName()
	}
	return fmt.Sprintf("%T", model)
}
