// Package email sends transactional mail through an HTTP mail API, with a
// logging fallback for environments without credentials.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// RenderTemplate substitutes {{key}} markers with the given values. Unknown
// markers are left in place.
func RenderTemplate(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// HTTPSender posts messages to a REST mail API.
type HTTPSender struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

func NewHTTPSender(baseURL, apiKey, from string) *HTTPSender {
	return &HTTPSender{
		baseURL: baseURL,
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"from":    s.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email api returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the message to the log instead of sending it.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	body := msg.HTML
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	s.logger.Info("email stub",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", body))
	return nil
}
