package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes NATS subjects: press.<space>.<event type>.
const DefaultSubjectPrefix = "press"

// NATS publishes messages on a subject per space and event type, so
// subscribers can listen to one tenant with a wildcard.
type NATS struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

var _ Broadcaster = (*NATS)(nil)

// NewNATS wraps an existing connection.
func NewNATS(conn *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

// DialNATS connects to url with reconnects enabled. Close releases the
// connection.
func DialNATS(url, prefix string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("press-realtime"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("press: connect nats: %w", err)
	}
	n := NewNATS(conn, prefix)
	n.owned = true
	return n, nil
}

// Subject returns the subject msg is published on.
func (n *NATS) Subject(msg Message) string {
	return n.prefix + "." + msg.SpaceID + "." + msg.Type
}

// Publish implements Broadcaster. It does not wait for an ack.
func (n *NATS) Publish(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("press: encode realtime message: %w", err)
	}
	out := &nats.Msg{
		Subject: n.Subject(msg),
		Data:    data,
		Header:  nats.Header{"entry_id": []string{msg.Data.EntryID}},
	}
	if err := n.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("press: publish to %s: %w", out.Subject, err)
	}
	return nil
}

// Close drains the connection when DialNATS opened it.
func (n *NATS) Close() error {
	if n.owned && n.conn != nil {
		return n.conn.Drain()
	}
	return nil
}
