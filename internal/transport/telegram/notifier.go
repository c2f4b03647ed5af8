package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/meetme/matchmaker/internal/notify"
)

// API is the slice of *tgbotapi.BotAPI the transport uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers events as private chat messages. In private chats the
// chat id equals the user id.
type Notifier struct {
	api API
}

func NewNotifier(api API) *Notifier {
	return &Notifier{api: api}
}

// Notify gives up when ctx ends. The abandoned request is left to the HTTP
// client timeout.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(tgbotapi.NewMessage(ev.Recipient, eventText(ev)))
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
