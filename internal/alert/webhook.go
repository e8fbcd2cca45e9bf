// Package alert posts security-relevant events to an operator webhook.
// Only the auth service uses it; failures are logged and never surfaced
// to the end user.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Notifier struct {
	webhookURL string
	token      string
	httpClient *http.Client
}

type event struct {
	Event     string `json:"event"`
	AccountID string `json:"accountId"`
	FamilyID  string `json:"familyId"`
	Detail    string `json:"detail,omitempty"`
	Ts        int64  `json:"ts"`
}

func NewNotifier(webhookURL, token string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		token:      token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *Notifier) IsConfigured() bool {
	return n != nil && n.webhookURL != ""
}

// TokenReuse reports a rotated refresh token being presented again,
// the protocol's compromise signal.
func (n *Notifier) TokenReuse(ctx context.Context, accountID, familyID string) error {
	return n.send(ctx, event{
		Event:     "refresh_token_reuse",
		AccountID: accountID,
		FamilyID:  familyID,
		Detail:    "refresh family revoked",
		Ts:        time.Now().Unix(),
	})
}

func (n *Notifier) send(ctx context.Context, ev event) error {
	if !n.IsConfigured() {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}
	return nil
}
