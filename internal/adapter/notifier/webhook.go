package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

const (
	SignatureHeader = "X-Fund-Signature"
	EventTypeHeader = "X-Fund-Event"
)

var _ port.Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier POSTs each event as JSON. When a secret is set the body is
// signed with HMAC-SHA256 and the hex digest sent in SignatureHeader.
type WebhookNotifier struct {
	url      string
	secret   []byte
	currency domain.Currency
	client   *http.Client
}

func NewWebhookNotifier(url, secret string, currency domain.Currency, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, secret: []byte(secret), currency: currency, client: client}
}

type webhookPayload struct {
	AccountID     string    `json:"account_id"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	FundID        string    `json:"fund_id"`
	FundName      string    `json:"fund_name"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(n.payload(event))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventTypeHeader, string(event.Type))
	if len(n.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) payload(event domain.Event) webhookPayload {
	return webhookPayload{
		AccountID:     event.AccountID,
		EventType:     string(event.Type),
		TransactionID: event.Payload.TransactionID,
		FundID:        event.Payload.FundID,
		FundName:      event.Payload.FundName,
		Currency:      n.currency.Code,
		Amount:        n.currency.String(event.Payload.Amount),
		BalanceAfter:  n.currency.String(event.Payload.BalanceAfter),
		Message:       Message(n.currency, event),
		OccurredAt:    event.Payload.OccurredAt,
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Message renders the human readable notification text.
func Message(currency domain.Currency, event domain.Event) string {
	amount := currency.Display(event.Payload.Amount)
	switch event.Type {
	case domain.EventSubscriptionCancelled:
		return fmt.Sprintf("Your subscription to %s was cancelled and %s returned to your balance.", event.Payload.FundName, amount)
	default:
		return fmt.Sprintf("You subscribed %s to %s.", amount, event.Payload.FundName)
	}
}
