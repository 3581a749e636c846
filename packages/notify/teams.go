package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// TeamsNotifier posts Adaptive Cards to a Microsoft Teams webhook.
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

type TeamsOption func(*TeamsNotifier)

// WithTeamsClient replaces the client used to post messages.
func WithTeamsClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{webhookURL: webhookURL}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = newWebhookClient()
	}
	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string        `json:"type"`
	Size      string        `json:"size,omitempty"`
	Weight    string        `json:"weight,omitempty"`
	Text      string        `json:"text,omitempty"`
	Color     string        `json:"color,omitempty"`
	Wrap      bool          `json:"wrap,omitempty"`
	Columns   []teamsColumn `json:"columns,omitempty"`
	Spacing   string        `json:"spacing,omitempty"`
	Separator bool          `json:"separator,omitempty"`
}

type teamsColumn struct {
	Type  string       `json:"type"`
	Width string       `json:"width"`
	Items []teamsBlock `json:"items"`
}

func fact(label, value, color string) teamsColumn {
	return teamsColumn{
		Type:  "Column",
		Width: "stretch",
		Items: []teamsBlock{
			{Type: "TextBlock", Text: "**" + label + "**", Wrap: true},
			{Type: "TextBlock", Text: value, Color: color, Wrap: true},
		},
	}
}

func (t *TeamsNotifier) message(ev *Event) teamsMessage {
	color := "good"
	if !ev.OK {
		color = "attention"
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: ev.title(), Color: color, Wrap: true},
		{
			Type:      "ColumnSet",
			Separator: true,
			Spacing:   "Medium",
			Columns: []teamsColumn{
				fact("Status", ev.statusText(), ""),
				fact("Problem", ev.Problem, color),
				fact("Duration", ev.Duration.Round(time.Millisecond).String(), ""),
			},
		},
	}

	if ev.Environment != "" {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "**Environment:** " + ev.Environment, Wrap: true})
	}
	if ev.Error != "" {
		body = append(body, teamsBlock{Type: "TextBlock", Text: "**Error:** " + ev.Error, Wrap: true, Separator: true})
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_hitfetch - %s_", time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	return teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}
}

func (t *TeamsNotifier) Notify(ctx context.Context, ev *Event) error {
	return post(ctx, t.client, "Teams", t.webhookURL, t.message(ev))
}
