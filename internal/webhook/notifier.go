package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"funnel-crm/internal/models"
	pkgmodels "funnel-crm/pkg/models"

	"go.uber.org/zap"
)

// Notifier posts dashboard-originated outbound messages to the automation
// platform. Delivery is best effort: one attempt, bounded by a timeout,
// failures only logged.
type Notifier struct {
	url           string
	publicBaseURL string
	timeout       time.Duration
	client        *http.Client
	log           *zap.Logger
	wg            sync.WaitGroup
}

// NewNotifier returns a notifier for url. An empty url disables it.
func NewNotifier(url, publicBaseURL string, timeout time.Duration, log *zap.Logger) *Notifier {
	return &Notifier{
		url:           url,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		timeout:       timeout,
		client:        &http.Client{Timeout: timeout},
		log:           log.Named("notifier"),
	}
}

func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Build assembles the payload for msg. Relative attachment URLs are made
// absolute so the platform can download them.
func (n *Notifier) Build(msg *models.Message, contact *models.Contact, account *models.Account) pkgmodels.Notification {
	out := pkgmodels.Notification{
		MessageID:    msg.ID,
		Message:      msg.Body,
		ContactPhone: contact.Phone,
		ContactName:  contact.Name,
		Direction:    models.DirectionOutbound,
		Timestamp:    msg.Timestamp.UTC(),
		UserID:       account.ID,
		UserEmail:    account.Email,
	}
	if msg.FileURL != nil && *msg.FileURL != "" {
		out.FileURL = n.absoluteURL(*msg.FileURL)
		if msg.FileType != nil {
			out.FileType = *msg.FileType
		}
		if msg.FileName != nil {
			out.FileName = *msg.FileName
		}
	}
	return out
}

// NotifyAsync sends the notification in the background and returns
// immediately. It is a no-op when the notifier is disabled.
func (n *Notifier) NotifyAsync(msg *models.Message, contact *models.Contact, account *models.Account) {
	if !n.Enabled() {
		return
	}
	payload := n.Build(msg, contact, account)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.Send(ctx, payload); err != nil {
			n.log.Warn("automation webhook notification failed",
				zap.Uint("message_id", payload.MessageID),
				zap.Error(err),
			)
			return
		}
		n.log.Debug("automation webhook notified", zap.Uint("message_id", payload.MessageID))
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Send performs a single POST of payload.
func (n *Notifier) Send(ctx context.Context, payload pkgmodels.Notification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: %s - %s", resp.Status, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *Notifier) absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return n.publicBaseURL + u
}
