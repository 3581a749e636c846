package notify

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

type SlackOption func(*SlackNotifier)

func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

func WithSlackUsername(username string) SlackOption {
	return func(s *SlackNotifier) {
		s.username = username
	}
}

func WithSlackIconEmoji(emoji string) SlackOption {
	return func(s *SlackNotifier) {
		s.iconEmoji = emoji
	}
}

// WithSlackClient replaces the client used to post messages.
func WithSlackClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "hitfetch",
		iconEmoji:  ":satellite_antenna:",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = newWebhookClient()
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) message(ev *Event) slackMessage {
	color, emoji := "good", ":white_check_mark:"
	switch {
	case !ev.OK:
		color, emoji = "danger", ":x:"
	case ev.IsRecovery:
		emoji = ":tada:"
	}

	fields := []slackField{
		{Title: "Status", Value: ev.statusText(), Short: true},
		{Title: "Problem", Value: ev.Problem, Short: true},
		{Title: "Duration", Value: ev.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if ev.Environment != "" {
		fields = append(fields, slackField{Title: "Environment", Value: ev.Environment, Short: true})
	}

	var text string
	if ev.Error != "" {
		text = "```" + ev.Error + "```"
	}

	return slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  emoji + " " + ev.title(),
			Text:   text,
			Fields: fields,
			Footer: "hitfetch",
			TS:     time.Now().Unix(),
		}},
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, ev *Event) error {
	return post(ctx, s.client, "Slack", s.webhookURL, s.message(ev))
}
