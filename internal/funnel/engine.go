// Package funnel implements funnels, their ordered stages and moving
// contacts between stages.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/models"

	"gorm.io/gorm"
)

// DefaultStageOrder is assigned when a stage is added without an explicit
// order. Siblings are never renumbered, so ties are possible.
const DefaultStageOrder = 99

const DefaultFunnelName = "Default Sales"

type stageTemplate struct {
	name  string
	order int
}

var (
	defaultStages = []stageTemplate{
		{"New Lead", 1},
		{"Contacted", 2},
		{"Interested", 3},
		{"Closed", 4},
	}
	starterStages = []stageTemplate{
		{"New Lead", 1},
		{"In Progress", 2},
		{"Closed", 3},
	}
)

type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// CreateDefaultFunnel provisions the funnel every new account starts with.
// It is not idempotent: callers invoke it exactly once per account.
func (e *Engine) CreateDefaultFunnel(ctx context.Context, accountID uint) (*models.Funnel, error) {
	return e.create(ctx, accountID, DefaultFunnelName, defaultStages)
}

func (e *Engine) CreateFunnel(ctx context.Context, accountID uint, name string) (*models.Funnel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("funnel name is required")
	}
	return e.create(ctx, accountID, name, starterStages)
}

func (e *Engine) create(ctx context.Context, accountID uint, name string, templates []stageTemplate) (*models.Funnel, error) {
	funnel := models.Funnel{
		AccountID: accountID,
		Name:      name,
		Stages:    make([]models.Stage, 0, len(templates)),
	}
	for _, tmpl := range templates {
		funnel.Stages = append(funnel.Stages, models.Stage{Name: tmpl.name, Order: tmpl.order})
	}

	if err := e.db.WithContext(ctx).Create(&funnel).Error; err != nil {
		return nil, fmt.Errorf("create funnel: %w", err)
	}
	return &funnel, nil
}

// ListFunnels returns the account's funnels with stages in display order.
func (e *Engine) ListFunnels(ctx context.Context, accountID uint) ([]models.Funnel, error) {
	var funnels []models.Funnel
	err := e.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&funnels).Error
	if err != nil {
		return nil, fmt.Errorf("list funnels: %w", err)
	}
	return funnels, nil
}

func (e *Engine) ListStages(ctx context.Context, accountID, funnelID uint) ([]models.Stage, error) {
	if _, err := e.ownedFunnel(ctx, accountID, funnelID); err != nil {
		return nil, err
	}

	stages := []models.Stage{}
	err := e.db.WithContext(ctx).
		Where("funnel_id = ?", funnelID).
		Order("sort_order ASC, id ASC").
		Find(&stages).Error
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return stages, nil
}

// AddStage appends a stage. A nil order places it last under the default
// sentinel without touching sibling orders.
func (e *Engine) AddStage(ctx context.Context, accountID, funnelID uint, name string, order *int) (*models.Stage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("stage name is required")
	}
	if _, err := e.ownedFunnel(ctx, accountID, funnelID); err != nil {
		return nil, err
	}

	stage := models.Stage{FunnelID: funnelID, Name: name, Order: DefaultStageOrder}
	if order != nil {
		stage.Order = *order
	}
	if err := e.db.WithContext(ctx).Create(&stage).Error; err != nil {
		return nil, fmt.Errorf("create stage: %w", err)
	}
	return &stage, nil
}

// UpdateStage applies a partial update; nil fields are left unchanged.
func (e *Engine) UpdateStage(ctx context.Context, accountID, stageID uint, name *string, order *int) (*models.Stage, error) {
	stage, err := e.StageOwnedBy(ctx, accountID, stageID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperror.Validation("stage name cannot be empty")
		}
		updates["name"] = trimmed
	}
	if order != nil {
		updates["sort_order"] = *order
	}
	if len(updates) == 0 {
		return stage, nil
	}

	if err := e.db.WithContext(ctx).Model(stage).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update stage: %w", err)
	}
	if err := e.db.WithContext(ctx).First(stage, stage.ID).Error; err != nil {
		return nil, fmt.Errorf("reload stage: %w", err)
	}
	return stage, nil
}

// DeleteStage removes a stage nobody is currently in. Contacts are never
// reassigned.
func (e *Engine) DeleteStage(ctx context.Context, accountID, stageID uint) error {
	stage, err := e.StageOwnedBy(ctx, accountID, stageID)
	if err != nil {
		return err
	}

	var count int64
	if err := e.db.WithContext(ctx).Model(&models.Contact{}).Where("stage_id = ?", stage.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("count stage contacts: %w", err)
	}
	if count > 0 {
		return apperror.Conflict("stage has contacts")
	}

	if err := e.db.WithContext(ctx).Delete(&models.Stage{}, stage.ID).Error; err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	return nil
}

// MoveContactToStage assigns the contact to stageID. Both the contact and the
// stage (through its funnel) must belong to the requester.
func (e *Engine) MoveContactToStage(ctx context.Context, contactID, stageID, requesterAccountID uint) (*models.Contact, error) {
	var contact models.Contact
	err := e.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", contactID, requesterAccountID).
		First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	stage, err := e.StageOwnedBy(ctx, requesterAccountID, stageID)
	if err != nil {
		return nil, err
	}

	if err := e.db.WithContext(ctx).Model(&contact).Update("stage_id", stage.ID).Error; err != nil {
		return nil, fmt.Errorf("update contact stage: %w", err)
	}
	contact.StageID = &stage.ID
	contact.Stage = stage
	return &contact, nil
}

// StageOwnedBy resolves stage -> funnel -> account and reports NotFound when
// the chain does not end at accountID.
func (e *Engine) StageOwnedBy(ctx context.Context, accountID, stageID uint) (*models.Stage, error) {
	var stage models.Stage
	err := e.db.WithContext(ctx).
		Select("stages.*").
		Joins("JOIN funnels ON funnels.id = stages.funnel_id").
		Where("stages.id = ? AND funnels.account_id = ?", stageID, accountID).
		Take(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("stage not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load stage: %w", err)
	}
	return &stage, nil
}

func (e *Engine) ownedFunnel(ctx context.Context, accountID, funnelID uint) (*models.Funnel, error) {
	var funnel models.Funnel
	err := e.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", funnelID, accountID).
		First(&funnel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("funnel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load funnel: %w", err)
	}
	return &funnel, nil
}
