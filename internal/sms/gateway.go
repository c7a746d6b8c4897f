package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// GatewayService sends SMS through an HTTP gateway (Twilio-style REST API
// behind a single endpoint). The gateway acknowledges acceptance only;
// delivery is not guaranteed.
type GatewayService struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewGatewayService(url, apiKey, from string, timeout time.Duration) *GatewayService {
	return &GatewayService{
		url:    url,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	Ref  string `json:"ref"`
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Dispatch sends a verification code. Satisfies verify.Dispatcher.
func (s *GatewayService) Dispatch(ctx context.Context, to, code string, ttl time.Duration) error {
	body := fmt.Sprintf("Your HotRide verification code is: %s\n\nThis code expires in %d minutes.", code, int(ttl.Minutes()))

	payload, err := json.Marshal(sendRequest{
		Ref:  uuid.NewString(),
		From: s.from,
		To:   to,
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("encoding SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("SMS gateway rejected message: status %d", resp.StatusCode)
	}

	return nil
}
