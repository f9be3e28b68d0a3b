package poller

import (
	"testing"
	"time"

	"gopkg.in/telebot.v4"
)

func TestNew(t *testing.T) {
	p, err := New(Settings{PollTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New вернул ошибку: %v", err)
	}
	if lp, ok := p.(*telebot.LongPoller); !ok || lp.Timeout != 5*time.Second {
		t.Errorf("по умолчанию ожидался LongPoller с таймаутом 5s, получено %#v", p)
	}

	p, err = New(Settings{Mode: ModeWebhook, WebhookURL: "https://bot.example.com/hook", ListenAddr: ":8443"})
	if err != nil {
		t.Fatalf("New вернул ошибку: %v", err)
	}
	if wh, ok := p.(*telebot.Webhook); !ok || wh.Listen != ":8443" {
		t.Errorf("ожидался Webhook, получено %#v", p)
	}

	if _, err := New(Settings{Mode: ModeWebhook}); err == nil {
		t.Errorf("webhook без адреса должен отклоняться")
	}
	if _, err := New(Settings{Mode: "smoke"}); err == nil {
		t.Errorf("неизвестный режим должен отклоняться")
	}
}
