package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/models"
	"github.com/johanesalxd/data-clean-room-demo/pkg/logging"
)

// EmailNotifier emails subscribers about newly provisioned listings via
// the Brevo API
type EmailNotifier struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{
		APIKey:    config.AppConfig.BrevoAPIKey,
		FromEmail: config.AppConfig.BrevoFromEmail,
		FromName:  config.AppConfig.BrevoFromName,
	}
}

// EmailRequest represents Brevo email request structure
type EmailRequest struct {
	Sender      EmailSender `json:"sender"`
	To          []EmailTo   `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
	TextContent string      `json:"textContent"`
}

type EmailSender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type EmailTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NotifyListingProvisioned emails the subscriber that their listing is
// ready. Called in a goroutine; failures are logged, not propagated.
func (s *EmailNotifier) NotifyListingProvisioned(to string, exchange *models.Exchange) {
	if s.APIKey == "" || s.FromEmail == "" {
		// Email notifications not configured, skip
		return
	}

	kind := "data exchange"
	if exchange.CleanRoom {
		kind = "data clean room"
	}

	subject := fmt.Sprintf("Your %s listing is ready: %s", kind, exchange.ListingID)
	textContent := fmt.Sprintf(`A new %s listing has been shared with you.

Exchange: %s
Listing: %s
Shared dataset: %s

Next steps:
1. Go to Analytics Hub in your project
2. Browse available listings and find this listing
3. Subscribe to create a linked dataset in your project
`, kind, exchange.ExchangeResource, exchange.ListingResource, exchange.Dataset)

	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8f9fa; padding: 30px; border-radius: 10px;">
				<h1 style="color: #333;">Your %s listing is ready</h1>
				<p style="color: #666; font-size: 16px;">A new listing has been shared with you:</p>
				<p style="color: #333; font-family: monospace;">%s</p>
				<p style="color: #666; font-size: 14px;">Subscribe to it from Analytics Hub to create a linked dataset in your project.</p>
			</div>
		</body>
		</html>
	`, kind, exchange.ListingResource)

	emailReq := EmailRequest{
		Sender: EmailSender{
			Name:  s.FromName,
			Email: s.FromEmail,
		},
		To: []EmailTo{
			{Email: to},
		},
		Subject:     subject,
		HTMLContent: htmlContent,
		TextContent: textContent,
	}

	if err := s.sendEmail(emailReq); err != nil {
		logging.Errorf("Failed to notify subscriber %s: %v", to, err)
		return
	}
	logging.Infof("Subscriber %s notified about listing %s", to, exchange.ListingID)
}

// sendEmail sends email via Brevo API
func (s *EmailNotifier) sendEmail(req EmailRequest) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	httpReq, err := http.NewRequest("POST", "https://api.brevo.com/v3/sendEmail", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", s.APIKey)

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("brevo API error: status %d", resp.StatusCode)
	}

	return nil
}
