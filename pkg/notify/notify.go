// Package notify mirrors delivery outcomes to operator channels (telegram, slack, email, webhooks).
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	ntfy "github.com/go-pkgz/notify"
)

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnFailure     bool
	OnDelivered   bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Service sends outcome events to the configured channels.
type Service struct {
	channels    []channel
	custom      *customChannel
	onFailure   bool
	onDelivered bool
	timeoutMs   int
	hostname    string
	log         lgr.L
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // telegram uses HTML parse mode
}

// Event is one delivery outcome.
type Event struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"` // "delivered" or "failed"
	Request  string `json:"request"`
	Backend  string `json:"backend,omitempty"`
	Reason   string `json:"reason"`
	Artifact string `json:"artifact,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// New creates a notification Service from the given Params.
// returns nil, nil if no channels are configured, Send is nil-safe.
func New(p Params, log lgr.L) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service means "mirror disabled"
	}
	if log == nil {
		log = lgr.NoOp
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onFailure:   p.OnFailure,
		onDelivered: p.OnDelivered,
		timeoutMs:   p.TimeoutMs,
		hostname:    hostname,
		log:         log,
	}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 10000
	}

	for _, ch := range p.Channels {
		switch strings.TrimSpace(strings.ToLower(ch)) {
		case "telegram":
			if p.TelegramToken == "" {
				return nil, errors.New("telegram channel: notify_telegram_token is required")
			}
			if p.TelegramChat == "" {
				return nil, errors.New("telegram channel: notify_telegram_chat is required")
			}
			c, cErr := telegramChannelMaker(p)
			if cErr != nil {
				// bot token is verified with a live call on init, skip the channel if it fails
				errMsg := strings.ReplaceAll(cErr.Error(), p.TelegramToken, "[REDACTED]")
				log.Logf("[WARN] telegram channel disabled: %s", errMsg)
				continue
			}
			svc.channels = append(svc.channels, c)
		case "email":
			c, cErr := makeEmailChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("email channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "slack":
			c, cErr := makeSlackChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("slack channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "webhook":
			chs, cErr := makeWebhookChannels(p)
			if cErr != nil {
				return nil, fmt.Errorf("webhook channel: %w", cErr)
			}
			svc.channels = append(svc.channels, chs...)
		case "custom":
			if p.CustomScript == "" {
				return nil, errors.New("custom channel: notify_custom_script is required")
			}
			svc.custom = newCustomChannel(p.CustomScript)
		default:
			return nil, fmt.Errorf("unknown notification channel: %q", ch)
		}
	}

	if len(svc.channels) == 0 && svc.custom == nil {
		log.Logf("[WARN] all notification channels were disabled due to initialization errors")
	}
	return svc, nil
}

// Send mirrors the event to all channels. nil-safe, errors are logged and never returned.
func (s *Service) Send(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if e.Status == "delivered" && !s.onDelivered {
		return
	}
	if e.Status != "delivered" && !s.onFailure {
		return
	}

	msg := s.formatMessage(e)
	sendCtx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutMs)*time.Millisecond)
	defer cancel()

	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Logf("[WARN] notification failed for %s: %v", ch.notifier, err)
		}
	}

	if s.custom != nil {
		if err := s.custom.send(sendCtx, e); err != nil {
			s.log.Logf("[WARN] custom notification failed: %v", err)
		}
	}
}

func (s *Service) formatMessage(e Event) string {
	var b strings.Builder
	if e.Status == "delivered" {
		fmt.Fprintf(&b, "t3xtart delivered on %s\n", s.hostname)
	} else {
		fmt.Fprintf(&b, "t3xtart failed on %s\n", s.hostname)
	}
	b.WriteString("\n")

	if e.RunID != "" {
		fmt.Fprintf(&b, "run:      %s\n", e.RunID)
	}
	if e.Request != "" {
		fmt.Fprintf(&b, "request:  %s\n", e.Request)
	}
	if e.Backend != "" {
		fmt.Fprintf(&b, "backend:  %s\n", e.Backend)
	}
	if e.Duration != "" {
		fmt.Fprintf(&b, "duration: %s\n", e.Duration)
	}
	fmt.Fprintf(&b, "reason:   %s\n", e.Reason)
	if e.Artifact != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Artifact)
	}
	return b.String()
}

// telegramChannelMaker is overridden in tests to avoid live API calls.
var telegramChannelMaker = makeTelegramChannel

func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}
	dest := fmt.Sprintf("telegram:%s?parseMode=HTML", p.TelegramChat)
	return channel{notifier: tg, dest: dest, htmlEscape: true}, nil
}

func makeEmailChannel(p Params) (channel, error) {
	if p.SMTPHost == "" {
		return channel{}, errors.New("notify_smtp_host is required")
	}
	if p.EmailFrom == "" {
		return channel{}, errors.New("notify_email_from is required")
	}
	if len(p.EmailTo) == 0 {
		return channel{}, errors.New("notify_email_to is required")
	}

	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})
	dest := fmt.Sprintf("mailto:%s?from=%s&subject=%s",
		strings.Join(p.EmailTo, ","), url.QueryEscape(p.EmailFrom), url.QueryEscape("t3xtart delivery"))
	return channel{notifier: em, dest: dest}, nil
}

func makeSlackChannel(p Params) (channel, error) {
	if p.SlackToken == "" {
		return channel{}, errors.New("notify_slack_token is required")
	}
	if p.SlackChannel == "" {
		return channel{}, errors.New("notify_slack_channel is required")
	}
	return channel{notifier: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel}, nil
}

func makeWebhookChannels(p Params) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("notify_webhook_urls is required")
	}
	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	channels := make([]channel, 0, len(p.WebhookURLs))
	for _, u := range p.WebhookURLs {
		channels = append(channels, channel{notifier: wh, dest: u})
	}
	return channels, nil
}
