// Package notify carries pairing outcomes to users. The core only decides who
// must be told what; rendering and transport live in Notifier implementations.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meetme/matchmaker/internal/metrics"
)

// Kind names what happened to the recipient.
type Kind string

const (
	KindMatchFound            Kind = "match_found"
	KindMatchConfirmedPartial Kind = "match_confirmed_partial"
	KindPaired                Kind = "paired"
	KindMatchRejected         Kind = "match_rejected"
	KindMatchExpired          Kind = "match_expired"
	KindUnpairRequested       Kind = "unpair_requested"
	KindUnpairApproved        Kind = "unpair_approved"
	KindUnpairDenied          Kind = "unpair_denied"
	KindUnpairAutoApproved    Kind = "unpair_auto_approved"
	KindForceUnpaired         Kind = "force_unpaired"
	KindProfileSubmitted      Kind = "profile_submitted"
	KindProfileApproved       Kind = "profile_approved"
	KindProfileRejected       Kind = "profile_rejected"
	KindBanned                Kind = "banned"
	KindUnbanned              Kind = "unbanned"
	KindPartnerLeft           Kind = "partner_left"
	KindBroadcast             Kind = "broadcast"
	KindDirect                Kind = "direct"
)

// Event is one message for one recipient.
type Event struct {
	Kind        Kind   `json:"kind"`
	Recipient   int64  `json:"recipient"`
	Counterpart int64  `json:"counterpart,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Notifier delivers a single event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// DeliveryTimeout bounds a single delivery attempt.
const DeliveryTimeout = 10 * time.Second

// maxInFlight caps how many recipients one Deliver call serves at once.
const maxInFlight = 8

// Deliver sends every event independently. Failures are logged and counted,
// never returned: a committed transition stands whether or not anyone hears
// about it. Returns how many events were delivered.
func Deliver(ctx context.Context, n Notifier, log *slog.Logger, events ...Event) int {
	return DeliverWithin(ctx, n, log, DeliveryTimeout, events...)
}

// DeliverWithin is Deliver with an explicit per-event deadline. Events for the
// same recipient keep their order. Recipients are served concurrently, so a
// stuck attempt only holds up its own recipient.
func DeliverWithin(ctx context.Context, n Notifier, log *slog.Logger, timeout time.Duration, events ...Event) int {
	if n == nil || len(events) == 0 {
		return 0
	}

	var order []int64
	queues := make(map[int64][]Event)
	for _, ev := range events {
		if _, ok := queues[ev.Recipient]; !ok {
			order = append(order, ev.Recipient)
		}
		queues[ev.Recipient] = append(queues[ev.Recipient], ev)
	}

	var (
		delivered atomic.Int64
		wg        sync.WaitGroup
		sem       = make(chan struct{}, maxInFlight)
	)
	for _, recipient := range order {
		queue := queues[recipient]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			for _, ev := range queue {
				if deliverOne(ctx, n, log, timeout, ev) {
					delivered.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	return int(delivered.Load())
}

func deliverOne(ctx context.Context, n Notifier, log *slog.Logger, timeout time.Duration, ev Event) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := n.Notify(ctx, ev); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		if log != nil {
			log.Warn("notification failed",
				"kind", ev.Kind, "recipient", ev.Recipient, "err", err)
		}
		return false
	}
	metrics.Notifications.WithLabelValues("delivered").Inc()
	return true
}

// Multi fans an event out to several notifiers. It fails only when every
// target fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
