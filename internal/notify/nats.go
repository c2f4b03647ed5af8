package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is followed by the recipient id.
const SubjectPrefix = "matchmaker.notify"

// Envelope is the JSON payload published for each event.
type Envelope struct {
	ID        string    `json:"id"`
	Event     Event     `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events so other services (and the chat adapter) can
// subscribe per user.
type NATSPublisher struct {
	nc msgPublisher
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Connect dials NATS with reconnect handlers that log through log.
func Connect(url string, log *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("matchmaker"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Subject returns the per-recipient subject.
func Subject(userID int64) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, userID)
}

func (p *NATSPublisher) Notify(_ context.Context, ev Event) error {
	data, err := json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Event:     ev,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.nc.PublishMsg(&nats.Msg{
		Subject: Subject(ev.Recipient),
		Data:    data,
		Header:  nats.Header{"Kind": []string{string(ev.Kind)}},
	})
}
