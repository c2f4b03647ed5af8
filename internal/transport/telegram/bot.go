// Package telegram is the chat front end: it turns bot updates into engine
// and moderation calls and sends back plain-text replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/moderation"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/registration"
)

const (
	likePrefix = "like"
	skipPrefix = "skip"
)

type handler func(ctx context.Context, m *tgbotapi.Message) (string, error)

// Bot routes updates. Updates are handled one at a time.
type Bot struct {
	api      API
	engine   *pairing.Engine
	mod      *moderation.Service
	wizard   *registration.Wizard
	limits   registration.Limits
	notifier notify.Notifier
	log      *slog.Logger

	commands map[string]handler
}

func New(
	api API,
	engine *pairing.Engine,
	mod *moderation.Service,
	wizard *registration.Wizard,
	limits registration.Limits,
	n notify.Notifier,
	log *slog.Logger,
) *Bot {
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		api:      api,
		engine:   engine,
		mod:      mod,
		wizard:   wizard,
		limits:   limits,
		notifier: n,
		log:      log.With("module", "telegram"),
	}
	b.commands = map[string]handler{
		"start":        b.start,
		"help":         b.start,
		"register":     b.register,
		"done":         b.done,
		"cancel":       b.cancel,
		"find":         b.find,
		"status":       b.status,
		"filters":      b.filters,
		"confirm":      b.confirm,
		"decline":      b.decline,
		"unpair":       b.unpair,
		"cancelunpair": b.cancelUnpair,
		"delete":       b.deleteAccount,

		"approve":       b.approve,
		"reject":        b.reject,
		"ban":           b.ban,
		"unban":         b.unban,
		"forceunpair":   b.forceUnpair,
		"approveunpair": b.approveUnpair,
		"denyunpair":    b.denyUnpair,
		"stats":         b.stats,
		"broadcast":     b.broadcast,
		"dm":            b.direct,
		"pending":       b.pending,
		"requests":      b.requests,
		"pairs":         b.pairs,
	}
	return b
}

// pollTimeout is the long-poll window in seconds.
const pollTimeout = 60

// Connect opens the bot API. Every call is capped at requestTimeout on top of
// the long-poll window, so a hung request cannot pin a goroutine forever.
func Connect(token string, requestTimeout time.Duration) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: pollTimeout*time.Second + requestTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return api, nil
}

// Listen long-polls api and handles updates until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	b.log.Info("bot listening", "username", api.Self.UserName)
	b.Run(ctx, updates)
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.Handle(ctx, upd)
		}
	}
}

// Handle processes one update.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "update_id", upd.UpdateID, "panic", r)
		}
	}()

	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.From != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	var (
		text string
		err  error
	)
	if m.IsCommand() {
		h, ok := b.commands[m.Command()]
		if !ok {
			b.send(m.Chat.ID, "Unknown command. Try /help.")
			return
		}
		text, err = h(ctx, m)
	} else {
		text, err = b.answer(ctx, m)
	}
	if err != nil {
		text = b.errorReply(err, m.From.ID)
	}
	if text != "" {
		b.send(m.Chat.ID, text)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	action, raw, _ := strings.Cut(q.Data, ":")
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.ack(q.ID, "")
		return
	}
	userID := q.From.ID

	var res *pairing.Result
	switch action {
	case likePrefix:
		res, err = b.engine.Like(ctx, userID, target)
	case skipPrefix:
		res, err = b.engine.Skip(ctx, userID, target)
	default:
		b.ack(q.ID, "")
		return
	}
	if err != nil {
		b.ack(q.ID, "")
		b.send(userID, b.errorReply(err, userID))
		return
	}
	b.deliver(ctx, res)

	if res.Outcome == pairing.OutcomeMatched {
		b.ack(q.ID, "It's a match!")
		b.send(userID, "It's a match! Use /confirm to pair up or /decline.")
		return
	}
	b.ack(q.ID, "")
	b.showCandidate(ctx, userID)
}

// answer feeds free text and media into the registration wizard.
func (b *Bot) answer(ctx context.Context, m *tgbotapi.Message) (string, error) {
	userID := m.From.ID

	var (
		d   *registration.Draft
		err error
	)
	switch {
	case len(m.Photo) > 0:
		d, err = b.wizard.AttachMedia(ctx, userID, m.Photo[len(m.Photo)-1].FileID, "photo")
	case m.Video != nil:
		d, err = b.wizard.AttachMedia(ctx, userID, m.Video.FileID, "video")
	default:
		d, err = b.wizard.Answer(ctx, userID, m.Text)
	}

	switch {
	case errors.Is(err, svcErr.ErrNotFound):
		return "Send /register to create your profile or /help for commands.", nil
	case errors.Is(err, svcErr.ErrInvalidState):
		cur, cerr := b.wizard.Current(ctx, userID)
		if cerr != nil {
			return "", cerr
		}
		return prompt(cur), nil
	case svcErr.IsValidation(err):
		cur, cerr := b.wizard.Current(ctx, userID)
		if cerr != nil {
			return "", cerr
		}
		return errorText(err) + "\n" + prompt(cur), nil
	case err != nil:
		return "", err
	}
	return prompt(d), nil
}

func (b *Bot) start(_ context.Context, m *tgbotapi.Message) (string, error) {
	text := "Welcome! Here is what I can do:\n" + helpText
	if b.mod.Admins().IsAdmin(m.From.ID) {
		text += "\n\nAdmin:\n" + adminHelpText
	}
	return text, nil
}

func (b *Bot) register(ctx context.Context, m *tgbotapi.Message) (string, error) {
	d, err := b.wizard.Start(ctx, m.From.ID, m.From.UserName)
	if err != nil {
		return "", err
	}
	return prompt(d), nil
}

func (b *Bot) done(ctx context.Context, m *tgbotapi.Message) (string, error) {
	var res *pairing.Result
	in, err := b.wizard.Finish(ctx, m.From.ID, func(ctx context.Context, in registration.ProfileInput) error {
		var err error
		res, err = b.engine.Register(ctx, in)
		return err
	})
	if err != nil {
		if res == nil {
			return "", err
		}
		b.log.Warn("profile registered but draft kept", "user_id", m.From.ID, "err", err)
	}
	b.mod.NotifyAdmins(ctx, notify.KindProfileSubmitted, in.UserID, "")
	if res.Outcome == pairing.OutcomeUpdated {
		return "Profile updated. It is back in review.", nil
	}
	return "Thanks! Your profile is waiting for review.", nil
}

func (b *Bot) cancel(ctx context.Context, m *tgbotapi.Message) (string, error) {
	if err := b.wizard.Cancel(ctx, m.From.ID); err != nil {
		return "", err
	}
	return "Registration cancelled.", nil
}

func (b *Bot) find(ctx context.Context, m *tgbotapi.Message) (string, error) {
	b.showCandidate(ctx, m.From.ID)
	return "", nil
}

// showCandidate sends the next card with like/skip buttons.
func (b *Bot) showCandidate(ctx context.Context, userID int64) {
	c, err := b.engine.NextCandidate(ctx, userID)
	if errors.Is(err, svcErr.ErrNotFound) {
		b.send(userID, "No more candidates right now. Try again later or widen your /filters.")
		return
	}
	if err != nil {
		b.send(userID, b.errorReply(err, userID))
		return
	}

	id := strconv.FormatInt(c.UserID, 10)
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Like", likePrefix+":"+id),
		tgbotapi.NewInlineKeyboardButtonData("Skip", skipPrefix+":"+id),
	))

	var msg tgbotapi.Chattable
	switch mediaKind(c) {
	case "photo":
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileID(*c.MediaFileID))
		photo.Caption = card(c)
		photo.ReplyMarkup = kb
		msg = photo
	case "video":
		video := tgbotapi.NewVideo(userID, tgbotapi.FileID(*c.MediaFileID))
		video.Caption = card(c)
		video.ReplyMarkup = kb
		msg = video
	default:
		text := tgbotapi.NewMessage(userID, card(c))
		text.ReplyMarkup = kb
		msg = text
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send candidate failed", "user_id", userID, "candidate_id", c.UserID, "err", err)
	}
}

func mediaKind(p *db.Profile) string {
	if p.MediaFileID == nil || p.MediaType == nil {
		return ""
	}
	return *p.MediaType
}

func (b *Bot) status(ctx context.Context, m *tgbotapi.Message) (string, error) {
	v, err := b.engine.Status(ctx, m.From.ID)
	if errors.Is(err, svcErr.ErrNotFound) {
		return "You have no profile yet. Send /register.", nil
	}
	if err != nil {
		return "", err
	}
	return statusText(v), nil
}

func (b *Bot) filters(ctx context.Context, m *tgbotapi.Message) (string, error) {
	fields := strings.Fields(m.CommandArguments())
	if len(fields) != 2 {
		return "Usage: /filters <male|female|any> <min-max>", nil
	}
	lo, hi, err := b.limits.ParseAgeRange(fields[1])
	if err != nil {
		return "", err
	}
	p, err := b.engine.UpdateFilters(ctx, m.From.ID, fields[0], lo, hi)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Filters saved: %s, %d-%d.", p.PreferredGender, p.PreferredAgeMin, p.PreferredAgeMax), nil
}

func (b *Bot) confirm(ctx context.Context, m *tgbotapi.Message) (string, error) {
	res, err := b.engine.Confirm(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	b.deliver(ctx, res)
	switch res.Outcome {
	case pairing.OutcomePaired:
		return fmt.Sprintf("You are now paired with %s (@%s).", res.Counterpart.FirstName, res.Counterpart.Username), nil
	case pairing.OutcomeAlreadyConfirmed:
		return "You already confirmed. Waiting for the other side.", nil
	}
	return "Confirmed. Waiting for the other side.", nil
}

func (b *Bot) decline(ctx context.Context, m *tgbotapi.Message) (string, error) {
	res, err := b.engine.Reject(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	b.deliver(ctx, res)
	return "Match declined. Keep browsing with /find.", nil
}

func (b *Bot) unpair(ctx context.Context, m *tgbotapi.Message) (string, error) {
	reason := m.CommandArguments()
	res, err := b.engine.RequestUnpair(ctx, m.From.ID, reason)
	if err != nil {
		return "", err
	}
	b.deliver(ctx, res)
	b.mod.NotifyAdmins(ctx, notify.KindUnpairRequested, m.From.ID,
		fmt.Sprintf("%s (request %d)", res.Request.Reason, res.Request.ID))
	return fmt.Sprintf("Request %d sent to the admins.", res.Request.ID), nil
}

func (b *Bot) cancelUnpair(ctx context.Context, m *tgbotapi.Message) (string, error) {
	res, err := b.engine.CancelUnpair(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	b.deliver(ctx, res)
	return "Unpair request withdrawn.", nil
}

func (b *Bot) deleteAccount(ctx context.Context, m *tgbotapi.Message) (string, error) {
	res, err := b.engine.DeleteAccount(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	b.deliver(ctx, res)
	if err := b.wizard.Cancel(ctx, m.From.ID); err != nil {
		b.log.Warn("drop draft failed", "user_id", m.From.ID, "err", err)
	}
	return "Your account has been deleted.", nil
}

func (b *Bot) deliver(ctx context.Context, res *pairing.Result) {
	notify.Deliver(ctx, b.notifier, b.log, res.Events...)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("send failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Debug("callback ack failed", "err", err)
	}
}

// errorReply renders err for the user; faults are logged, domain errors are not.
func (b *Bot) errorReply(err error, userID int64) string {
	if !isDomain(err) {
		b.log.Error("handler failed", "user_id", userID, "err", err)
	}
	return errorText(err)
}

func isDomain(err error) bool {
	return svcErr.IsValidation(err) ||
		errors.Is(err, svcErr.ErrNotFound) ||
		errors.Is(err, svcErr.ErrInvalidState) ||
		errors.Is(err, svcErr.ErrAccessDenied) ||
		errors.Is(err, svcErr.ErrBanned) ||
		errors.Is(err, svcErr.ErrAlreadyPending)
}
