// Package calendar talks to the external calendar provider that hosts the
// video lessons. A placeholder implementation keeps the booking flow working
// when no provider is configured.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Event struct {
	TenantSlug    string    `json:"tenantSlug"`
	LessonID      string    `json:"lessonId"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	StartsAt      time.Time `json:"startsAt"`
	EndsAt        time.Time `json:"endsAt"`
	Timezone      string    `json:"timezone"`
	AttendeeEmail string    `json:"attendeeEmail,omitempty"`
}

type Created struct {
	EventID    string `json:"eventId"`
	MeetingURL string `json:"meetingUrl"`
}

type Client interface {
	CreateEvent(ctx context.Context, event Event) (*Created, error)
	UpdateEvent(ctx context.Context, eventID string, startsAt, endsAt time.Time) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// HTTPClient implements Client against a REST calendar bridge.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) CreateEvent(ctx context.Context, event Event) (*Created, error) {
	var created Created
	if err := c.do(ctx, http.MethodPost, "/events", event, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *HTTPClient) UpdateEvent(ctx context.Context, eventID string, startsAt, endsAt time.Time) error {
	body := map[string]time.Time{"startsAt": startsAt, "endsAt": endsAt}
	return c.do(ctx, http.MethodPatch, "/events/"+eventID, body, nil)
}

func (c *HTTPClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+eventID, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar api: %s %s returned %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Placeholder fabricates a stable meeting room per lesson instead of calling
// a provider. Updates and deletes are no-ops.
type Placeholder struct {
	logger *zap.Logger
}

func NewPlaceholder(logger *zap.Logger) *Placeholder {
	return &Placeholder{logger: logger}
}

func (p *Placeholder) CreateEvent(_ context.Context, event Event) (*Created, error) {
	short := event.LessonID
	if len(short) > 8 {
		short = short[:8]
	}
	meetingURL := fmt.Sprintf("https://meet.jit.si/%s-%s", event.TenantSlug, short)
	p.logger.Info("calendar provider not configured, using placeholder room",
		zap.String("lesson_id", event.LessonID),
		zap.String("meeting_url", meetingURL))
	return &Created{EventID: "placeholder-" + short, MeetingURL: meetingURL}, nil
}

func (p *Placeholder) UpdateEvent(_ context.Context, eventID string, _, _ time.Time) error {
	p.logger.Debug("placeholder calendar update skipped", zap.String("event_id", eventID))
	return nil
}

func (p *Placeholder) DeleteEvent(_ context.Context, eventID string) error {
	p.logger.Debug("placeholder calendar delete skipped", zap.String("event_id", eventID))
	return nil
}
