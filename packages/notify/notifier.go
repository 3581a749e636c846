// Package notify posts call outcomes to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// NotifyOn specifies when to send notifications.
type NotifyOn string

const (
	NotifyAlways   NotifyOn = "always"
	NotifyFailure  NotifyOn = "failure"
	NotifySuccess  NotifyOn = "success"
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn accepts the names above, case-insensitively. Empty means
// NotifyFailure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(strings.ToLower(strings.TrimSpace(s))); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q", s)
	}
}

// Event describes one call outcome.
type Event struct {
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	Status      int           `json:"status"`
	OK          bool          `json:"ok"`
	Problem     string        `json:"problem"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Environment string        `json:"environment,omitempty"`
	IsRecovery  bool          `json:"is_recovery,omitempty"`
}

// EventFromEnvelope summarizes env.
func EventFromEnvelope(env *http.Envelope) *Event {
	ev := &Event{
		Method:   env.Method(),
		URL:      env.URL,
		Status:   env.Status,
		OK:       env.OK,
		Problem:  env.Problem.String(),
		Duration: env.Duration,
	}
	if env.OriginalError != nil {
		ev.Error = env.OriginalError.Error()
	}
	return ev
}

func (e *Event) title() string {
	switch {
	case !e.OK:
		return fmt.Sprintf("%s %s failed: %s", e.Method, e.URL, e.Problem)
	case e.IsRecovery:
		return fmt.Sprintf("%s %s recovered", e.Method, e.URL)
	default:
		return fmt.Sprintf("%s %s succeeded", e.Method, e.URL)
	}
}

func (e *Event) statusText() string {
	if e.Status == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d", e.Status)
}

// Notifier delivers events to one service.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
	Name() string
}

// Manager decides which events to deliver and fans them out to notifiers.
// Recovery is tracked per method and URL.
type Manager struct {
	mu          sync.Mutex
	notifiers   []Notifier
	notifyOn    NotifyOn
	environment string
	failing     map[string]bool
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		failing:   make(map[string]bool),
	}
}

// FromConfig builds a manager for the configured webhooks. It returns nil
// when no webhook is configured.
func FromConfig(cfg *config.NotifyConfig, environment string) (*Manager, error) {
	if cfg == nil || (cfg.Slack == "" && cfg.Teams == "") {
		return nil, nil
	}
	on, err := ParseNotifyOn(cfg.On)
	if err != nil {
		return nil, err
	}

	m := NewManager(on)
	m.environment = environment
	if cfg.Slack != "" {
		m.AddNotifier(NewSlackNotifier(cfg.Slack))
	}
	if cfg.Teams != "" {
		m.AddNotifier(NewTeamsNotifier(cfg.Teams))
	}
	return m, nil
}

func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// shouldNotify applies the policy and records the outcome.
func (m *Manager) shouldNotify(ev *Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ev.Method + " " + ev.URL
	wasFailing := m.failing[key]
	if ev.OK {
		delete(m.failing, key)
	} else {
		m.failing[key] = true
	}

	switch m.notifyOn {
	case NotifyAlways:
		ev.IsRecovery = ev.OK && wasFailing
		return true
	case NotifyFailure:
		return !ev.OK
	case NotifySuccess:
		return ev.OK
	case NotifyRecovery:
		if ev.OK && wasFailing {
			ev.IsRecovery = true
			return true
		}
		return !ev.OK
	}
	return false
}

// Notify delivers ev when the policy allows it. Every notifier is tried;
// their errors are joined.
func (m *Manager) Notify(ctx context.Context, ev *Event) error {
	if ev.Environment == "" {
		ev.Environment = m.environment
	}
	if !m.shouldNotify(ev) {
		return nil
	}

	m.mu.Lock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.Unlock()

	var errs []error
	for _, n := range notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Monitor returns a monitor that notifies about every envelope.
func (m *Manager) Monitor() http.Monitor {
	return func(ctx context.Context, env *http.Envelope) error {
		return m.Notify(context.WithoutCancel(ctx), EventFromEnvelope(env))
	}
}

// newWebhookClient returns the client notifiers post with. It carries no
// monitors so notifications never trigger further notifications.
func newWebhookClient() *http.Client {
	return http.NewClient(http.WithTimeout(10 * time.Second))
}

// post sends payload as JSON and treats any non-2xx reply as an error.
func post(ctx context.Context, client *http.Client, service, url string, payload any) error {
	env := client.Post(ctx, url, payload)
	if !env.OK {
		return fmt.Errorf("failed to send %s notification: %w", service, env.OriginalError)
	}
	return nil
}
