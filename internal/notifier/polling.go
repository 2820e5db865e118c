package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	pollTimeout = 30 * time.Second
	pollBackoff = 5 * time.Second
)

// CommandHandler answers one bot command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls for commands until ctx is cancelled. Only messages
// from ChatID are handled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	// The client timeout must outlast the server-side long poll.
	client := &http.Client{Timeout: pollTimeout + 5*time.Second, Transport: t.Client.Transport}
	offset := 0
	for ctx.Err() == nil {
		next, err := t.pollOnce(ctx, client, offset, handler)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Msg("telegram poll failed")
			if !sleepCtx(ctx, pollBackoff) {
				break
			}
			continue
		}
		offset = next
	}
	log.Info().Msg("telegram polling stopped")
}

// pollOnce fetches one batch of updates, handles them and returns the next
// offset.
func (t *TelegramNotifier) pollOnce(ctx context.Context, client *http.Client, offset int, handler CommandHandler) (int, error) {
	var updates []update
	params := map[string]int{"offset": offset, "timeout": int(pollTimeout / time.Second)}
	if err := t.call(ctx, client, "getUpdates", params, &updates); err != nil {
		return offset, err
	}
	for _, u := range updates {
		offset = u.UpdateID + 1
		if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
			continue
		}
		if !t.authorised(u.Message.Chat.ID) {
			log.Warn().Int64("chat_id", u.Message.Chat.ID).Msg("ignoring command from unknown chat")
			continue
		}
		cmd := strings.TrimSpace(u.Message.Text)
		log.Info().Str("command", cmd).Msg("received command")
		if reply := handler(ctx, cmd); reply != "" {
			if err := t.Send(ctx, reply); err != nil {
				log.Error().Err(err).Str("command", cmd).Msg("send reply")
			}
		}
	}
	return offset, nil
}

func (t *TelegramNotifier) authorised(chatID int64) bool {
	return t.ChatID == "" || strconv.FormatInt(chatID, 10) == t.ChatID
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
