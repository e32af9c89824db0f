package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PushSender delivers best-effort push notifications. Callers never
// block the send path on it.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

const defaultExpoPushEndpoint = "https://exp.host/--/api/v2/push/send"

// ExpoPushService posts notifications to the Expo push gateway used by
// the mobile clients.
type ExpoPushService struct {
	endpoint   string
	httpClient *http.Client
}

func NewExpoPushService(endpoint string) *ExpoPushService {
	if endpoint == "" {
		endpoint = defaultExpoPushEndpoint
	}
	return &ExpoPushService{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
	}
}

func (s *ExpoPushService) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	payload, err := json.Marshal(map[string]any{
		"to":    token,
		"title": title,
		"body":  body,
		"sound": "default",
		"data":  data,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	return nil
}
