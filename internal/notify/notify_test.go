package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	failFor map[int64]bool
	got     []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[ev.Recipient] {
		return errors.New("unreachable")
	}
	r.got = append(r.got, ev)
	return nil
}

func (r *recorder) recipients() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.got))
	for _, ev := range r.got {
		out = append(out, ev.Recipient)
	}
	return out
}

// stalling never answers for one recipient until ctx ends.
type stalling struct {
	recorder
	stuck int64
}

func (s *stalling) Notify(ctx context.Context, ev Event) error {
	if ev.Recipient == s.stuck {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.recorder.Notify(ctx, ev)
}

func TestDeliver_IsolatesFailures(t *testing.T) {
	r := &recorder{failFor: map[int64]bool{2: true}}

	n := Deliver(context.Background(), r, nil,
		Event{Kind: KindBroadcast, Recipient: 1},
		Event{Kind: KindBroadcast, Recipient: 2},
		Event{Kind: KindBroadcast, Recipient: 3},
	)

	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []int64{1, 3}, r.recipients())
}

func TestDeliverWithin_StuckRecipientDoesNotHoldOthers(t *testing.T) {
	n := &stalling{stuck: 1}

	start := time.Now()
	delivered := DeliverWithin(context.Background(), n, nil, 100*time.Millisecond,
		Event{Kind: KindMatchExpired, Recipient: 1},
		Event{Kind: KindMatchExpired, Recipient: 2},
		Event{Kind: KindMatchExpired, Recipient: 1},
		Event{Kind: KindMatchExpired, Recipient: 3},
	)

	assert.Equal(t, 2, delivered)
	assert.ElementsMatch(t, []int64{2, 3}, n.recipients())
	// both attempts for recipient 1 time out, nothing else waits on them
	assert.Less(t, time.Since(start), time.Second)
}

func TestDeliver_KeepsOrderPerRecipient(t *testing.T) {
	r := &recorder{}

	Deliver(context.Background(), r, nil,
		Event{Kind: KindUnpairApproved, Recipient: 5},
		Event{Kind: KindBroadcast, Recipient: 6},
		Event{Kind: KindProfileApproved, Recipient: 5},
	)

	var kinds []Kind
	for _, ev := range r.got {
		if ev.Recipient == 5 {
			kinds = append(kinds, ev.Kind)
		}
	}
	assert.Equal(t, []Kind{KindUnpairApproved, KindProfileApproved}, kinds)
}

func TestDeliver_ParentDeadlineBoundsEveryAttempt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Zero(t, Deliver(ctx, &stalling{stuck: 9}, nil, Event{Recipient: 9}))
	assert.Less(t, time.Since(start), time.Second)
}

func TestDeliver_NilNotifier(t *testing.T) {
	assert.Zero(t, Deliver(context.Background(), nil, nil, Event{Recipient: 1}))
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{failFor: map[int64]bool{1: true}}

	require.NoError(t, Multi{bad, ok}.Notify(context.Background(), Event{Recipient: 1}))
	assert.Len(t, ok.got, 1)

	assert.Error(t, Multi{bad}.Notify(context.Background(), Event{Recipient: 1}))
}

type fakeConn struct{ msgs []*nats.Msg }

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func TestNATSPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{nc: conn}

	require.NoError(t, p.Notify(context.Background(), Event{Kind: KindPaired, Recipient: 31, Counterpart: 20}))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "matchmaker.notify.31", msg.Subject)
	assert.Equal(t, "paired", msg.Header.Get("Kind"))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	_, err := uuid.Parse(env.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(20), env.Event.Counterpart)
}
