// Package webhook bridges the external automation platform and the message
// ledger: it ingests inbound and outbound messages posted with an account API
// key and notifies the platform about messages sent from the dashboard.
package webhook

import (
	"context"
	"strings"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/contacts"
	"funnel-crm/internal/funnel"
	"funnel-crm/internal/ledger"
	"funnel-crm/internal/models"
	pkgmodels "funnel-crm/pkg/models"

	"go.uber.org/zap"
)

// KeyResolver looks up the account owning an API key.
type KeyResolver interface {
	ByAPIKey(ctx context.Context, key string) (*models.Account, error)
}

type Bridge struct {
	accounts KeyResolver
	funnels  *funnel.Engine
	contacts *contacts.Service
	ledger   *ledger.Ledger
	log      *zap.Logger
}

func NewBridge(accounts KeyResolver, funnels *funnel.Engine, contacts *contacts.Service, ledger *ledger.Ledger, log *zap.Logger) *Bridge {
	return &Bridge{
		accounts: accounts,
		funnels:  funnels,
		contacts: contacts,
		ledger:   ledger,
		log:      log.Named("webhook"),
	}
}

// IngestInbound records a message the contact sent. The contact is upserted
// by (account, phone); a supplied name or stage overwrites the stored one.
func (b *Bridge) IngestInbound(ctx context.Context, apiKey string, p pkgmodels.InboundPayload) (*models.Message, error) {
	account, err := b.accounts.ByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	phone := strings.TrimSpace(p.ContactPhone)
	if phone == "" || strings.TrimSpace(p.Message) == "" {
		return nil, apperror.Validation("missing required fields: contactPhone and message")
	}

	ts, err := NormalizeTimestamp(p.Timestamp, b.ledger.Now())
	if err != nil {
		return nil, err
	}

	stageID := p.StageID.Value
	if stageID != nil {
		if _, err := b.funnels.StageOwnedBy(ctx, account.ID, *stageID); err != nil {
			if apperror.Is(err, apperror.KindNotFound) {
				return nil, apperror.Validation("stageId %d does not belong to this account", *stageID)
			}
			return nil, err
		}
	}

	contact, err := b.contacts.UpsertInbound(ctx, account.ID, phone, p.ContactName, stageID)
	if err != nil {
		return nil, err
	}

	msg, err := b.ledger.Append(ctx, ledger.AppendInput{
		ContactID: contact.ID,
		Body:      p.Message,
		Direction: models.DirectionInbound,
		Status:    models.StatusReceived,
		Timestamp: ts,
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("inbound message ingested",
		zap.Uint("account_id", account.ID),
		zap.Uint("contact_id", contact.ID),
		zap.Uint("message_id", msg.ID),
	)
	return msg, nil
}

// IngestOutbound records a message sent to the contact outside the
// dashboard. Unknown phones get a nameless contact; known ones are untouched.
func (b *Bridge) IngestOutbound(ctx context.Context, apiKey string, p pkgmodels.OutboundPayload) (*models.Message, error) {
	account, err := b.accounts.ByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	phone := strings.TrimSpace(p.ContactPhone)
	if phone == "" || strings.TrimSpace(p.Message) == "" {
		return nil, apperror.Validation("missing required fields: contactPhone and message")
	}

	ts, err := NormalizeTimestamp(p.Timestamp, b.ledger.Now())
	if err != nil {
		return nil, err
	}

	contact, err := b.contacts.FindOrCreate(ctx, account.ID, phone)
	if err != nil {
		return nil, err
	}

	msg, err := b.ledger.Append(ctx, ledger.AppendInput{
		ContactID: contact.ID,
		Body:      p.Message,
		Direction: models.DirectionOutbound,
		Status:    models.StatusSent,
		Timestamp: ts,
	})
	if err != nil {
		return nil, err
	}

	b.log.Info("outbound message ingested",
		zap.Uint("account_id", account.ID),
		zap.Uint("contact_id", contact.ID),
		zap.Uint("message_id", msg.ID),
	)
	return msg, nil
}

// Summaries serves the flattened contact list to API key holders.
func (b *Bridge) Summaries(ctx context.Context, apiKey, phone string) ([]pkgmodels.ContactSummary, error) {
	account, err := b.accounts.ByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return b.contacts.Summaries(ctx, account.ID, strings.TrimSpace(phone))
}
