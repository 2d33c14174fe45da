package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WhatsAppSender posts text messages to a WhatsApp business messaging API.
type WhatsAppSender struct {
	url    string
	token  string
	client *http.Client
}

func NewWhatsAppSender(url, token string) *WhatsAppSender {
	return &WhatsAppSender{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (s *WhatsAppSender) Channel() string { return "whatsapp" }

func (s *WhatsAppSender) Accepts(msg Message) bool { return strings.TrimSpace(msg.Phone) != "" }

func (s *WhatsAppSender) Send(ctx context.Context, msg Message) error {
	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}
	payload, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(strings.TrimSpace(msg.Phone), "+"),
		Type:             "text",
		Text:             whatsAppText{Body: text},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp api returned %d", resp.StatusCode)
	}
	return nil
}
