package poller

import (
	"fmt"
	"time"

	"gopkg.in/telebot.v4"
)

const (
	ModeLongPoll = "long_poll"
	ModeWebhook  = "webhook"
)

// Settings способ получения обновлений от Telegram
type Settings struct {
	Mode        string
	PollTimeout time.Duration
	WebhookURL  string
	ListenAddr  string
}

// New создает Poller в зависимости от режима
func New(s Settings) (telebot.Poller, error) {
	switch s.Mode {
	case "", ModeLongPoll:
		return &telebot.LongPoller{Timeout: s.PollTimeout}, nil
	case ModeWebhook:
		if s.WebhookURL == "" {
			return nil, fmt.Errorf("webhook mode requires webhook_url")
		}
		return &telebot.Webhook{
			Listen:   s.ListenAddr,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: s.WebhookURL},
		}, nil
	}
	return nil, fmt.Errorf("unknown poller mode %q", s.Mode)
}
