package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// SMSService forwards messages through an HTTP SMS gateway. Delivery is
// best-effort: failures are logged, never escalated.
type SMSService struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

// NewSMSService creates a new SMS service. With an empty gateway URL every
// send is a logged no-op, which keeps demo mode working without credentials.
func NewSMSService(gatewayURL, apiKey string) *SMSService {
	return &SMSService{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type smsGatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

type smsGatewayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SendSMS posts the message to the gateway and reports whether it accepted.
func (s *SMSService) SendSMS(phoneNumber, message string) bool {
	if s.gatewayURL == "" {
		log.Printf("sms: no gateway configured, dropping message to %s", phoneNumber)
		return false
	}

	if err := s.send(phoneNumber, message); err != nil {
		log.Printf("sms: send to %s failed: %v", phoneNumber, err)
		return false
	}
	return true
}

func (s *SMSService) send(phoneNumber, message string) error {
	body, err := json.Marshal(smsGatewayRequest{
		Phone:   phoneNumber,
		Message: message,
		Key:     s.apiKey,
	})
	if err != nil {
		return fmt.Errorf("sms: failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms: unexpected status %d", resp.StatusCode)
	}

	var gw smsGatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return fmt.Errorf("sms: failed to decode response: %w", err)
	}
	if !gw.Success {
		return fmt.Errorf("sms: gateway rejected message: %s", gw.Error)
	}

	return nil
}
