// Package contacts manages the per-account lead directory.
package contacts

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/models"
	pkgmodels "funnel-crm/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// View is a contact with its stage and latest message, as shown in the inbox.
type View struct {
	models.Contact
	LastMessage *models.Message `json:"last_message"`
}

type Service struct {
	db      *gorm.DB
	funnels *funnel.Engine
}

func NewService(db *gorm.DB, funnels *funnel.Engine) *Service {
	return &Service{db: db, funnels: funnels}
}

// List returns the account's contacts, most recently active first. Contacts
// without messages sort last.
func (s *Service) List(ctx context.Context, accountID uint) ([]View, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).
		Preload("Stage").
		Where("account_id = ?", accountID).
		Order("id DESC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	latest, err := s.latestMessages(ctx, contactIDs(contacts))
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(contacts))
	for _, c := range contacts {
		v := View{Contact: c}
		if m, ok := latest[c.ID]; ok {
			v.LastMessage = &m
		}
		views = append(views, v)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return lastActivity(views[i]).After(lastActivity(views[j]))
	})
	return views, nil
}

// Summaries returns the flattened shape consumed by automation tools,
// newest contact first. A non-empty phone narrows the result to that number.
func (s *Service) Summaries(ctx context.Context, accountID uint, phone string) ([]pkgmodels.ContactSummary, error) {
	q := s.db.WithContext(ctx).
		Preload("Stage").
		Where("account_id = ?", accountID)
	if phone != "" {
		q = q.Where("phone = ?", phone)
	}

	var contacts []models.Contact
	if err := q.Order("id DESC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	latest, err := s.latestMessages(ctx, contactIDs(contacts))
	if err != nil {
		return nil, err
	}
	funnels, err := s.funnelsFor(ctx, contacts)
	if err != nil {
		return nil, err
	}

	out := make([]pkgmodels.ContactSummary, 0, len(contacts))
	for _, c := range contacts {
		sum := pkgmodels.ContactSummary{ID: c.ID, Name: c.Name, Phone: c.Phone}
		if c.Stage != nil {
			sum.Stage = &pkgmodels.StageRef{ID: c.Stage.ID, Name: c.Stage.Name, Order: c.Stage.Order}
			if f, ok := funnels[c.Stage.FunnelID]; ok {
				sum.Funnel = &pkgmodels.FunnelRef{ID: f.ID, Name: f.Name}
			}
		}
		if m, ok := latest[c.ID]; ok {
			body, ts := m.Body, m.Timestamp
			sum.LastMessage = &body
			sum.LastMessageAt = &ts
		}
		out = append(out, sum)
	}
	return out, nil
}

// Get loads an owned contact with its stage.
func (s *Service) Get(ctx context.Context, accountID, contactID uint) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).
		Preload("Stage").
		Where("id = ? AND account_id = ?", contactID, accountID).
		First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	return &contact, nil
}

// Create adds a lead by hand. The phone must be new for the account.
func (s *Service) Create(ctx context.Context, accountID uint, phone string, name *string, stageID *uint) (*models.Contact, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperror.Validation("phone is required")
	}
	if stageID != nil {
		if _, err := s.funnels.StageOwnedBy(ctx, accountID, *stageID); err != nil {
			return nil, err
		}
	}

	contact := models.Contact{AccountID: accountID, Phone: phone, Name: trimmed(name), StageID: stageID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&contact)
	if res.Error != nil {
		return nil, fmt.Errorf("create contact: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperror.Conflict("contact with phone %s already exists", phone)
	}
	return s.Get(ctx, accountID, contact.ID)
}

// Update applies a partial edit. Stage changes go through the funnel engine
// so the target stage is checked against the owner.
func (s *Service) Update(ctx context.Context, accountID, contactID uint, name *string, stageID *uint) (*models.Contact, error) {
	contact, err := s.Get(ctx, accountID, contactID)
	if err != nil {
		return nil, err
	}
	// Nothing is written unless the target stage belongs to the account.
	if stageID != nil {
		if _, err := s.funnels.StageOwnedBy(ctx, accountID, *stageID); err != nil {
			return nil, err
		}
	}

	if n := trimmed(name); n != nil {
		if err := s.db.WithContext(ctx).Model(contact).Update("name", *n).Error; err != nil {
			return nil, fmt.Errorf("update contact name: %w", err)
		}
	}
	if stageID != nil {
		if _, err := s.funnels.MoveContactToStage(ctx, contactID, *stageID, accountID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, accountID, contactID)
}

// Delete removes the contact and its messages in one transaction.
func (s *Service) Delete(ctx context.Context, accountID, contactID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		err := tx.Where("id = ? AND account_id = ?", contactID, accountID).First(&contact).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("contact not found")
		}
		if err != nil {
			return fmt.Errorf("load contact: %w", err)
		}

		if err := tx.Where("contact_id = ?", contact.ID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Delete(&contact).Error; err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
		return nil
	})
}

// UpsertInbound is the single-statement find-or-create used by inbound
// webhooks. An existing name is only replaced by a supplied name, and the
// stage only by a supplied stage.
func (s *Service) UpsertInbound(ctx context.Context, accountID uint, phone string, name *string, stageID *uint) (*models.Contact, error) {
	contact := models.Contact{AccountID: accountID, Phone: phone, Name: trimmed(name), StageID: stageID}

	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "phone"}},
	}
	var updates []string
	if contact.Name != nil {
		updates = append(updates, "name")
	}
	if stageID != nil {
		updates = append(updates, "stage_id")
	}
	if len(updates) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(append(updates, "updated_at"))
	} else {
		onConflict.DoNothing = true
	}

	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(&contact).Error; err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	return s.byPhone(ctx, accountID, phone)
}

// FindOrCreate returns the contact for phone, creating a nameless one when
// absent. Existing contacts are never modified.
func (s *Service) FindOrCreate(ctx context.Context, accountID uint, phone string) (*models.Contact, error) {
	contact := models.Contact{AccountID: accountID, Phone: phone}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "phone"}},
			DoNothing: true,
		}).
		Create(&contact).Error
	if err != nil {
		return nil, fmt.Errorf("find or create contact: %w", err)
	}
	return s.byPhone(ctx, accountID, phone)
}

// Export writes the account's contacts as CSV.
func (s *Service) Export(ctx context.Context, accountID uint, w io.Writer) error {
	views, err := s.List(ctx, accountID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Phone", "Name", "Stage", "Last Message At", "Created At"}); err != nil {
		return err
	}
	for _, v := range views {
		var name, stage, lastAt string
		if v.Name != nil {
			name = *v.Name
		}
		if v.Stage != nil {
			stage = v.Stage.Name
		}
		if v.LastMessage != nil {
			lastAt = v.LastMessage.Timestamp.UTC().Format(time.RFC3339)
		}
		row := []string{
			strconv.FormatUint(uint64(v.ID), 10),
			v.Phone,
			name,
			stage,
			lastAt,
			v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) byPhone(ctx context.Context, accountID uint, phone string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND phone = ?", accountID, phone).
		First(&contact).Error
	if err != nil {
		return nil, fmt.Errorf("load contact by phone: %w", err)
	}
	return &contact, nil
}

// latestMessages maps contact ID to its max-timestamp message.
func (s *Service) latestMessages(ctx context.Context, ids []uint) (map[uint]models.Message, error) {
	out := make(map[uint]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("contact_id IN ?", ids).
		Where(`id = (SELECT m2.id FROM messages m2 WHERE m2.contact_id = messages.contact_id
			ORDER BY m2.timestamp DESC, m2.id DESC LIMIT 1)`).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	for _, m := range messages {
		out[m.ContactID] = m
	}
	return out, nil
}

func (s *Service) funnelsFor(ctx context.Context, contacts []models.Contact) (map[uint]models.Funnel, error) {
	seen := map[uint]bool{}
	var ids []uint
	for _, c := range contacts {
		if c.Stage != nil && !seen[c.Stage.FunnelID] {
			seen[c.Stage.FunnelID] = true
			ids = append(ids, c.Stage.FunnelID)
		}
	}

	out := make(map[uint]models.Funnel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var funnels []models.Funnel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&funnels).Error; err != nil {
		return nil, fmt.Errorf("load funnels: %w", err)
	}
	for _, f := range funnels {
		out[f.ID] = f
	}
	return out, nil
}

func contactIDs(contacts []models.Contact) []uint {
	ids := make([]uint, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

func lastActivity(v View) time.Time {
	if v.LastMessage == nil {
		return time.Time{}
	}
	return v.LastMessage.Timestamp
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
