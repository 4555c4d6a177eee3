// Package plansource talks to the remote care API: it lists the
// patient's medication plans and posts dose events back. The engine
// treats the event side as fire-and-forget; callers here still get the
// error so the outbox can queue a retry.
package plansource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medminder/internal/models"
)

const defaultTimeout = 10 * time.Second

// HTTPError is a non-2xx response from the care API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("care api: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("care api: status=%d body=%s", e.StatusCode, e.Body)
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// ListPlans fetches the patient's medication plans. timesOfDay arrives
// as either a single "HH:MM" string or a list; models.FlexTimes absorbs
// both.
func (c *Client) ListPlans(ctx context.Context) ([]*models.MedicationPlan, error) {
	var out []*models.MedicationPlan
	if err := c.doJSON(ctx, http.MethodGet, "/v1/medication-plans", nil, &out); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return out, nil
}

// RecordDoseEvent posts one taken/skipped event.
func (c *Client) RecordDoseEvent(ctx context.Context, ev models.DoseEvent) error {
	path := fmt.Sprintf("/v1/medication-plans/%s/dose-events", ev.PlanID)
	if err := c.doJSON(ctx, http.MethodPost, path, ev, nil); err != nil {
		return fmt.Errorf("record dose event: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}
