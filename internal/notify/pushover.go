// Package notify delivers chat activity to the Pushover service so friend
// requests and invites reach the user while they are away from the terminal.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// defaultEndpoint is the Pushover API endpoint used for message delivery.
	defaultEndpoint = "https://api.pushover.net/1/messages.json"
	// formContentType is the HTTP form content type required by Pushover.
	formContentType = "application/x-www-form-urlencoded"
	// defaultTimeout is the HTTP timeout used for Pushover requests.
	defaultTimeout = 10 * time.Second
)

// Event is one notification. Key deduplicates repeats: events with the same
// key inside the cooldown window are dropped.
type Event struct {
	Title string
	Body  string
	Key   string
}

// Config describes the credentials and defaults for Pushover delivery.
type Config struct {
	// Token is the application API token.
	Token string
	// UserKey is the destination user key.
	UserKey string
	// Priority is the Pushover priority value for messages.
	Priority int
	// Cooldown is the minimum interval between notifications per event key.
	Cooldown time.Duration
}

// Pushover sends notifications to the Pushover service.
type Pushover struct {
	token    string
	userKey  string
	priority int
	cooldown time.Duration

	endpoint string
	client   *http.Client
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewPushover creates a notifier using the supplied config.
func NewPushover(cfg Config) (*Pushover, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("pushover token is required")
	}
	if strings.TrimSpace(cfg.UserKey) == "" {
		return nil, fmt.Errorf("pushover user key is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("pushover cooldown must be non-negative")
	}

	return &Pushover{
		token:    cfg.Token,
		userKey:  cfg.UserKey,
		priority: cfg.Priority,
		cooldown: cfg.Cooldown,
		endpoint: defaultEndpoint,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}, nil
}

// Notify sends ev unless an event with the same key was sent within the
// cooldown window.
func (p *Pushover) Notify(ctx context.Context, ev Event) error {
	key := strings.TrimSpace(ev.Key)
	if key == "" {
		return fmt.Errorf("notification key is required")
	}
	body := strings.TrimSpace(ev.Body)
	if body == "" {
		return fmt.Errorf("notification body is required")
	}

	now := p.now()
	if !p.shouldSend(key, now) {
		return nil
	}

	if err := p.send(ctx, ev.Title, body); err != nil {
		return err
	}
	p.markSent(key, now)
	return nil
}

// shouldSend returns whether a notification is allowed under cooldown rules.
func (p *Pushover) shouldSend(key string, now time.Time) bool {
	if p.cooldown == 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSent[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= p.cooldown
}

// markSent records a successful send time for a specific event key.
func (p *Pushover) markSent(key string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSent[key] = now
}

// send performs the HTTP request to Pushover.
func (p *Pushover) send(ctx context.Context, title, body string) error {
	form := url.Values{}
	form.Set("token", p.token)
	form.Set("user", p.userKey)
	form.Set("message", body)
	if title = strings.TrimSpace(title); title != "" {
		form.Set("title", title)
	}
	if p.priority != 0 {
		form.Set("priority", fmt.Sprintf("%d", p.priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pushover request build failed: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pushover response read failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("pushover response %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
