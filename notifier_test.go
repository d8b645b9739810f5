package main

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	notifier := &TelegramNotifier{bot: sender, chatID: 42}

	text := "Branch Code-Bot/fix_login-k3x9q created for my_org/my_repo#12"
	if err := notifier.Notify(context.Background(), text); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", sender.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != text || !msg.DisableWebPagePreview {
		t.Errorf("message = %+v", msg)
	}
	if msg.ParseMode != "" {
		t.Errorf("ParseMode = %q, names with underscores must be sent as plain text", msg.ParseMode)
	}
}

func TestTelegramNotifier_Errors(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	notifier := &TelegramNotifier{bot: sender, chatID: 42}
	if err := notifier.Notify(context.Background(), "x"); err == nil {
		t.Error("expected send error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sender.err = nil
	sender.sent = nil
	if err := notifier.Notify(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify(cancelled) = %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("nothing should be sent with a cancelled context")
	}
}
