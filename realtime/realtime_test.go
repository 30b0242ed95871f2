package realtime_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/entry"
	"github.com/xraph/press/event"
	"github.com/xraph/press/id"
	"github.com/xraph/press/realtime"
)

func testMessage(space string) realtime.Message {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &entry.Entry{
		ID:           id.NewEntryID(),
		SpaceID:      space,
		CollectionID: "posts",
		Title:        "Hello",
		Slug:         "hello",
		PublishedAt:  &published,
	}
	return realtime.FromEvent(event.New(event.KindPublished, e, published))
}

func TestFromEvent(t *testing.T) {
	msg := testMessage("space_7")
	assert.Equal(t, "entry.published", msg.Type)
	assert.Equal(t, "space_7", msg.SpaceID)
	assert.Equal(t, "posts", msg.Data.Collection)
	assert.Equal(t, "hello", msg.Data.Slug)
	assert.True(t, strings.HasPrefix(msg.Data.EntryID, "entry_"))
}

func TestHubDeliversPerSpace(t *testing.T) {
	hub := realtime.NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	srv := httptest.NewServer(hub)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	mine, _, err := websocket.DefaultDialer.Dial(wsURL+"?space_id=space_7", nil)
	require.NoError(t, err)
	defer mine.Close()
	other, _, err := websocket.DefaultDialer.Dial(wsURL+"?space_id=space_8", nil)
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool {
		return hub.Clients("space_7") == 1 && hub.Clients("space_8") == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := testMessage("space_7")
	require.NoError(t, hub.Publish(ctx, sent))

	_ = mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := mine.ReadMessage()
	require.NoError(t, err)

	var got realtime.Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sent.Data.EntryID, got.Data.EntryID)

	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "other space must not receive the message")
}

func TestHubRejectsMissingSpace(t *testing.T) {
	hub := realtime.NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaKeysByEntry(t *testing.T) {
	w := &fakeWriter{}
	k := realtime.NewKafkaWithWriter(w, "")
	msg := testMessage("space_7")

	require.NoError(t, k.Publish(context.Background(), msg))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, realtime.DefaultKafkaTopic, w.msgs[0].Topic)
	assert.Equal(t, msg.Data.EntryID, string(w.msgs[0].Key))
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := realtime.NewKafka(nil, "")
	assert.Error(t, err)
}

type failingBroadcaster struct{ calls int }

func (f *failingBroadcaster) Publish(context.Context, realtime.Message) error {
	f.calls++
	return errors.New("down")
}

func TestMultiPublishesToAll(t *testing.T) {
	bad := &failingBroadcaster{}
	w := &fakeWriter{}
	m := realtime.Multi{bad, realtime.NewKafkaWithWriter(w, "t")}

	err := m.Publish(context.Background(), testMessage("space_7"))
	assert.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Len(t, w.msgs, 1)
}

func TestNATSSubject(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	n, err := realtime.DialNATS(url, "")
	require.NoError(t, err)
	defer n.Close()

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	ch := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("press.space_7.>", ch)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	msg := testMessage("space_7")
	assert.Equal(t, "press.space_7.entry.published", n.Subject(msg))
	require.NoError(t, n.Publish(context.Background(), msg))

	select {
	case got := <-ch:
		assert.Equal(t, msg.Data.EntryID, got.Header.Get("entry_id"))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
