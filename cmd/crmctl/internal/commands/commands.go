package commands

import (
	"funnel-crm/internal/config"
	"funnel-crm/internal/database"
	"funnel-crm/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Globals struct {
	Debug   bool
	Version string
}

// connect opens the database described by the environment.
func connect(globals *Globals) (*config.Config, *gorm.DB, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	env := cfg.Env
	if globals.Debug {
		env = "development"
	}
	log := logger.New(env)

	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, log, nil
}
