package workers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CloudAPISender delivers messages through the WhatsApp Cloud API. Numbers
// are expected as E.164 digits without '+'.
type CloudAPISender struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

func NewCloudAPISender(accessToken, phoneNumberID string) *CloudAPISender {
	return &CloudAPISender{
		AccessToken:   accessToken,
		PhoneNumberID: phoneNumberID,
		BaseURL:       "https://graph.facebook.com/v17.0",
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type waTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts a plain text message to the Cloud API.
func (s *CloudAPISender) Send(number, message string) error {
	msg := waTextMessage{
		MessagingProduct: "whatsapp",
		To:               number,
		Type:             "text",
	}
	msg.Text.Body = message

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.BaseURL, s.PhoneNumberID)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call WhatsApp API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("WhatsApp API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
