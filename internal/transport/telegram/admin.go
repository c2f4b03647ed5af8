package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/pairing"
)

const listLimit = 20

// idArg splits "<id> rest..." off the command arguments.
func idArg(m *tgbotapi.Message) (int64, string, error) {
	head, rest, _ := strings.Cut(strings.TrimSpace(m.CommandArguments()), " ")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", svcErr.Invalid("id", "must be a positive number")
	}
	return id, strings.TrimSpace(rest), nil
}

// onUser runs a per-user moderation action and reports the outcome.
func (b *Bot) onUser(m *tgbotapi.Message, fn func(adminID, userID int64, rest string) (*pairing.Result, error)) (string, error) {
	id, rest, err := idArg(m)
	if err != nil {
		return "", err
	}
	res, err := fn(m.From.ID, id, rest)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("User %d: %s.", id, strings.ReplaceAll(string(res.Outcome), "_", " ")), nil
}

func (b *Bot) approve(ctx context.Context, m *tgbotapi.Message) (string, error) {
	return b.onUser(m, func(admin, id int64, _ string) (*pairing.Result, error) {
		return b.mod.Approve(ctx, admin, id)
	})
}

func (b *Bot) reject(ctx context.Context, m *tgbotapi.Message) (string, error) {
	return b.onUser(m, func(admin, id int64, _ string) (*pairing.Result, error) {
		return b.mod.Reject(ctx, admin, id)
	})
}

func (b *Bot) ban(ctx context.Context, m *tgbotapi.Message) (string, error) {
	return b.onUser(m, func(admin, id int64, reason string) (*pairing.Result, error) {
		return b.mod.Ban(ctx, admin, id, reason)
	})
}

func (b *Bot) unban(ctx context.Context, m *tgbotapi.Message) (string, error) {
	return b.onUser(m, func(admin, id int64, _ string) (*pairing.Result, error) {
		return b.mod.Unban(ctx, admin, id)
	})
}

func (b *Bot) forceUnpair(ctx context.Context, m *tgbotapi.Message) (string, error) {
	return b.onUser(m, func(admin, id int64, _ string) (*pairing.Result, error) {
		return b.mod.ForceUnpair(ctx, admin, id)
	})
}

func (b *Bot) approveUnpair(ctx context.Context, m *tgbotapi.Message) (string, error) {
	id, comment, err := idArg(m)
	if err != nil {
		return "", err
	}
	if _, err := b.mod.ApproveUnpair(ctx, m.From.ID, uint64(id), comment); err != nil {
		return "", err
	}
	return fmt.Sprintf("Request %d approved.", id), nil
}

func (b *Bot) denyUnpair(ctx context.Context, m *tgbotapi.Message) (string, error) {
	id, comment, err := idArg(m)
	if err != nil {
		return "", err
	}
	if _, err := b.mod.DenyUnpair(ctx, m.From.ID, uint64(id), comment); err != nil {
		return "", err
	}
	return fmt.Sprintf("Request %d denied.", id), nil
}

func (b *Bot) stats(ctx context.Context, m *tgbotapi.Message) (string, error) {
	s, err := b.mod.Stats(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	return statsText(s), nil
}

func (b *Bot) broadcast(ctx context.Context, m *tgbotapi.Message) (string, error) {
	delivered, total, err := b.mod.Broadcast(ctx, m.From.ID, m.CommandArguments())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Broadcast delivered to %d of %d users.", delivered, total), nil
}

func (b *Bot) direct(ctx context.Context, m *tgbotapi.Message) (string, error) {
	id, text, err := idArg(m)
	if err != nil {
		return "", err
	}
	ok, err := b.mod.DirectMessage(ctx, m.From.ID, id, text)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Could not reach user %d.", id), nil
	}
	return "Sent.", nil
}

func (b *Bot) pending(ctx context.Context, m *tgbotapi.Message) (string, error) {
	profiles, next, err := b.mod.PendingProfiles(ctx, m.From.ID, nil, listLimit)
	if err != nil {
		return "", err
	}
	if len(profiles) == 0 {
		return "No profiles waiting for review.", nil
	}
	var sb strings.Builder
	for i := range profiles {
		p := &profiles[i]
		fmt.Fprintf(&sb, "%d: %s %s, %d, %s\n", p.UserID, p.FirstName, p.LastName, p.Age, p.Gender)
	}
	if next != nil {
		sb.WriteString("...")
	}
	return strings.TrimSpace(sb.String()), nil
}

func (b *Bot) requests(ctx context.Context, m *tgbotapi.Message) (string, error) {
	reqs, next, err := b.mod.PendingUnpairRequests(ctx, m.From.ID, nil, listLimit)
	if err != nil {
		return "", err
	}
	if len(reqs) == 0 {
		return "No pending unpair requests.", nil
	}
	var sb strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&sb, "#%d: %d -> %d: %s\n", r.ID, r.RequesterID, r.PartnerID, r.Reason)
	}
	if next != nil {
		sb.WriteString("...")
	}
	return strings.TrimSpace(sb.String()), nil
}

func (b *Bot) pairs(ctx context.Context, m *tgbotapi.Message) (string, error) {
	pairs, err := b.mod.Pairs(ctx, m.From.ID)
	if err != nil {
		return "", err
	}
	if len(pairs) == 0 {
		return "No pairs.", nil
	}
	var sb strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&sb, "%d (%s) + %d (%s): %s\n",
			p.User.UserID, p.User.FirstName, p.Partner.UserID, p.Partner.FirstName, p.User.Pairing)
	}
	return strings.TrimSpace(sb.String()), nil
}
