package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"
)

// WebhookNotifier posts pipeline run results to a configured callback URL
type WebhookNotifier struct {
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RunWebhookPayload is the payload sent when a pipeline run finishes
type RunWebhookPayload struct {
	Event            string `json:"event"` // pipeline.run.finished
	RunID            string `json:"run_id"`
	TargetDate       string `json:"target_date"`
	TableSuffix      string `json:"table_suffix"`
	Status           string `json:"status"`
	BaseOrderCount   int    `json:"base_order_count"`
	ProviderUsers    int    `json:"provider_users"`
	TransactionCount int    `json:"transaction_count"`
	ErrorMsg         string `json:"error_msg,omitempty"`
	Timestamp        string `json:"timestamp"` // ISO 8601 format
}

// NotifyRunFinished sends the run-finished webhook.
// Called in a goroutine so pipeline completion is not blocked.
func (wn *WebhookNotifier) NotifyRunFinished(callbackURL string, secret string, run *models.PipelineRun) {
	if callbackURL == "" {
		// No webhook configured, skip
		return
	}

	payload := RunWebhookPayload{
		Event:            "pipeline.run.finished",
		RunID:            run.RunID,
		TargetDate:       run.TargetDate,
		TableSuffix:      run.TableSuffix,
		Status:           run.Status,
		BaseOrderCount:   run.BaseOrderCount,
		ProviderUsers:    run.ProviderUsers,
		TransactionCount: run.TransactionCount,
		ErrorMsg:         run.ErrorMsg,
		Timestamp:        time.Now().Format(time.RFC3339),
	}

	wn.sendWithRetry(callbackURL, secret, payload)
}

// sendWithRetry sends the webhook with retries at 1s, 5s and 30s
func (wn *WebhookNotifier) sendWithRetry(callbackURL string, secret string, payload RunWebhookPayload) {
	retryDelays := []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}
	maxRetries := len(retryDelays)

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := wn.sendWebhook(callbackURL, secret, payload)
		if err == nil {
			logging.Infof("Webhook notification sent - url: %s, run: %s, attempt: %d",
				callbackURL, payload.RunID, attempt+1)
			return
		}

		logging.Errorf("Webhook notification failed - url: %s, run: %s, attempt: %d, error: %v",
			callbackURL, payload.RunID, attempt+1, err)

		if attempt < maxRetries-1 {
			time.Sleep(retryDelays[attempt])
		}
	}

	logging.Errorf("Webhook notification failed after %d attempts - url: %s, run: %s",
		maxRetries, callbackURL, payload.RunID)
}

// sendWebhook sends a single webhook request
func (wn *WebhookNotifier) sendWebhook(callbackURL string, secret string, payload RunWebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", callbackURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DCR-Simulator-Webhook/1.0")

	if secret != "" {
		signature := wn.generateSignature(jsonData, secret)
		req.Header.Set("X-DCR-Signature", signature)
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func (wn *WebhookNotifier) generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
