package commands

import (
	"context"
	"fmt"

	"funnel-crm/internal/account"
	"funnel-crm/internal/apperror"

	"go.uber.org/zap"
)

type SeedCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" required:"" env:"SEED_PASSWORD"`
	Admin    bool   `help:"Grant the admin role" default:"false"`
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	_, db, log, err := connect(globals)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	accounts := account.NewService(db)
	acc, err := accounts.Register(ctx, s.Email, s.Password)
	switch {
	case apperror.Is(err, apperror.KindConflict):
		log.Info("account already exists", zap.String("email", s.Email))
	case err != nil:
		return err
	default:
		log.Info("account created", zap.Uint("account_id", acc.ID))
		fmt.Printf("api key: %s\n", acc.APIKey)
	}

	if s.Admin {
		if err := accounts.Promote(ctx, s.Email); err != nil {
			return err
		}
		log.Info("admin role granted", zap.String("email", s.Email))
	}
	return nil
}

type PromoteCmd struct {
	Email string `arg:"" help:"Email of the account to promote"`
}

func (p *PromoteCmd) Run(ctx context.Context, globals *Globals) error {
	_, db, log, err := connect(globals)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := account.NewService(db).Promote(ctx, p.Email); err != nil {
		return err
	}
	log.Info("admin role granted", zap.String("email", p.Email))
	return nil
}
