// Package account manages tenants: registration, password login and API
// key lookup.
package account

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinPasswordLength = 6
	apiKeyPrefix      = "key_"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NewAPIKey returns "key_" followed by two random fragments.
func NewAPIKey() string {
	a, b := uuid.New(), uuid.New()
	return apiKeyPrefix + hex.EncodeToString(a[:])[:13] + hex.EncodeToString(b[:])[:13]
}

// Register creates the account and its default funnel in one transaction.
func (s *Service) Register(ctx context.Context, email, password string) (*models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Validation("email and password are required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.Validation("password must be at least %d characters long", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := models.Account{
		Email:        email,
		PasswordHash: string(hash),
		APIKey:       NewAPIKey(),
		Role:         models.RoleUser,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acc)
		if res.Error != nil {
			return fmt.Errorf("create account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.Conflict("email already registered")
		}
		if _, err := funnel.NewEngine(tx).CreateDefaultFunnel(ctx, acc.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Authenticate checks a password login. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	return &acc, nil
}

// ByAPIKey resolves a static API key. A "Bearer " prefix is tolerated.
func (s *Service) ByAPIKey(ctx context.Context, key string) (*models.Account, error) {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "Bearer "))
	if key == "" {
		return nil, apperror.Unauthorized("api key required")
	}

	var acc models.Account
	err := s.db.WithContext(ctx).Where("api_key = ?", key).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unauthorized("invalid api key")
	}
	if err != nil {
		return nil, fmt.Errorf("load account by api key: %w", err)
	}
	return &acc, nil
}

func (s *Service) ByID(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).First(&acc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &acc, nil
}

func (s *Service) UpdatePassword(ctx context.Context, id uint, password string) error {
	if len(password) < MinPasswordLength {
		return apperror.Validation("password must be at least %d characters long", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("password_hash", string(hash))
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("account not found")
	}
	return nil
}

// AccountStats is an account with its directory size, for the admin view.
type AccountStats struct {
	models.Account
	ContactCount int64 `json:"contact_count"`
	FunnelCount  int64 `json:"funnel_count"`
}

// List returns every account, most recently updated first.
func (s *Service) List(ctx context.Context) ([]AccountStats, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Order("updated_at DESC, id DESC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]AccountStats, 0, len(accounts))
	for _, acc := range accounts {
		st := AccountStats{Account: acc}
		if err := s.db.WithContext(ctx).Model(&models.Contact{}).Where("account_id = ?", acc.ID).Count(&st.ContactCount).Error; err != nil {
			return nil, fmt.Errorf("count contacts: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(&models.Funnel{}).Where("account_id = ?", acc.ID).Count(&st.FunnelCount).Error; err != nil {
			return nil, fmt.Errorf("count funnels: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Promote grants the admin role.
func (s *Service) Promote(ctx context.Context, email string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("email = ?", normalizeEmail(email)).
		Update("role", models.RoleAdmin)
	if res.Error != nil {
		return fmt.Errorf("promote account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("account not found")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
