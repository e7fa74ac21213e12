// Package notify pings a host chat when an attendee lands in a waiting
// room, so an operator can pick up the approve/deny workflow elsewhere.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"meetpin/entity"
	"meetpin/internal/config"
	"meetpin/lib/sl"
)

type Telegram struct {
	api    *tgbotapi.Bot
	chatId int64
	log    *slog.Logger
}

// NewTelegram returns nil when the notifier is disabled in configuration.
func NewTelegram(conf *config.Config, log *slog.Logger) (*Telegram, error) {
	if !conf.Telegram.Enabled {
		return nil, nil
	}
	api, err := tgbotapi.NewBot(conf.Telegram.ApiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		api:    api,
		chatId: conf.Telegram.ChatId,
		log:    log.With(sl.Module("notify.telegram")),
	}, nil
}

func (t *Telegram) AccessRequested(req *entity.AccessRequest) {
	if req == nil || req.IsZero() {
		return
	}
	name := req.DisplayName
	if name == "" {
		name = "an anonymous attendee"
	}
	t.plainResponse(t.chatId, fmt.Sprintf("%s is waiting in room %s (%s)",
		name, req.WaitingRoomId, req.Status))
}

func (t *Telegram) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
	}
}
