// Package ledger is the append-only message log kept per contact.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/models"

	"gorm.io/gorm"
)

// Attachment is the optional file metadata carried by a message.
type Attachment struct {
	URL  string
	Type string
	Name string
}

type AppendInput struct {
	ContactID  uint
	Body       string
	Direction  string
	Status     string
	Attachment *Attachment
	// Timestamp defaults to the ledger clock when zero.
	Timestamp time.Time
}

type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// WithClock returns a copy of the ledger reading time from now.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{db: l.db, now: now}
}

// Now is the ledger clock in UTC.
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}

// Append writes a new message. It never touches earlier entries.
func (l *Ledger) Append(ctx context.Context, in AppendInput) (*models.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperror.Validation("message is required")
	}

	status := in.Status
	switch in.Direction {
	case models.DirectionInbound:
		if status == "" {
			status = models.StatusReceived
		}
	case models.DirectionOutbound:
		if status == "" {
			status = models.StatusSent
		}
	default:
		return nil, apperror.Validation("direction must be one of: %s %s", models.DirectionInbound, models.DirectionOutbound)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	msg := models.Message{
		ContactID: in.ContactID,
		Body:      in.Body,
		Direction: in.Direction,
		Status:    status,
		Timestamp: ts.UTC(),
	}
	if a := in.Attachment; a != nil && a.URL != "" {
		msg.FileURL = stringPtr(a.URL)
		msg.FileType = optional(a.Type)
		msg.FileName = optional(a.Name)
	}

	if err := l.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

// List returns the contact's messages oldest first. Callers other than the
// owner need allowAdminOverride.
func (l *Ledger) List(ctx context.Context, contactID, requesterAccountID uint, allowAdminOverride bool) ([]models.Message, error) {
	var contact models.Contact
	err := l.db.WithContext(ctx).Select("id", "account_id").First(&contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact.AccountID != requesterAccountID && !allowAdminOverride {
		return nil, apperror.Forbidden("access denied")
	}

	messages := []models.Message{}
	err = l.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Clear deletes every message of an owned contact. The contact stays.
func (l *Ledger) Clear(ctx context.Context, contactID, requesterAccountID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ? AND account_id = ?", contactID, requesterAccountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("load contact: %w", err)
	}
	if count == 0 {
		return 0, apperror.NotFound("contact not found")
	}

	res := l.db.WithContext(ctx).Where("contact_id = ?", contactID).Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResponseWindow computes the 24h window from the latest inbound message.
func (l *Ledger) ResponseWindow(ctx context.Context, contactID uint) (Window, error) {
	var last models.Message
	err := l.db.WithContext(ctx).
		Where("contact_id = ? AND direction = ?", contactID, models.DirectionInbound).
		Order("timestamp DESC, id DESC").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ComputeWindow(nil, l.now()), nil
	}
	if err != nil {
		return Window{}, fmt.Errorf("latest inbound message: %w", err)
	}
	return ComputeWindow(&last.Timestamp, l.now()), nil
}

// Latest returns the max-timestamp message, nil when the ledger is empty.
func (l *Ledger) Latest(ctx context.Context, contactID uint) (*models.Message, error) {
	var msg models.Message
	err := l.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("timestamp DESC, id DESC").
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return &msg, nil
}

func stringPtr(s string) *string {
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
