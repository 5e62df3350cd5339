package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStreamPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })

	p := NewStreamPublisher(client, "attendance:audit", 100)
	ev := NewEvent(EventRecognition)
	ev.SubjectID = 4
	ev.Outcome = "matched"
	ev.Confidence = 0.91
	require.NoError(t, p.Publish(context.Background(), ev))

	msgs, err := client.XRange(context.Background(), "attendance:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, EventRecognition, msgs[0].Values["type"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, uint(4), decoded.SubjectID)
	assert.Equal(t, "matched", decoded.Outcome)
}

func TestStreamPublisher_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	mr.Close()

	err := NewStreamPublisher(client, "s", 0).Publish(context.Background(), NewEvent(EventAttendance))
	assert.Error(t, err)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMulti_PublishesToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("unreachable")}
	m := Multi{a, nil, b, Nop{}}

	err := m.Publish(context.Background(), NewEvent(EventLeave))
	assert.ErrorContains(t, err, "unreachable")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestHub_BroadcastsToWebsocketClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	ev := NewEvent(EventAttendance)
	ev.SubjectID = 2
	ev.Action = "check_in"
	require.NoError(t, hub.Publish(ctx, ev))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, EventAttendance, got.Type)
	assert.Equal(t, "check_in", got.Action)
	assert.Equal(t, uint(2), got.SubjectID)
}

func TestHub_SubscriberFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?subject_id=7&types=recognition"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	other := NewEvent(EventRecognition)
	other.SubjectID = 8
	wrongType := NewEvent(EventAttendance)
	wrongType.SubjectID = 7
	wanted := NewEvent(EventRecognition)
	wanted.SubjectID = 7
	wanted.Outcome = "matched"
	for _, ev := range []Event{other, wrongType, wanted} {
		require.NoError(t, hub.Publish(ctx, ev))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, uint(7), got.SubjectID)
	assert.Equal(t, "matched", got.Outcome)
}

func TestFilterFromQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed?subject_id=abc&types=leave,%20finalized,", nil)
	f := FilterFromQuery(r)
	assert.Nil(t, f.SubjectID)
	assert.Equal(t, map[string]bool{"leave": true, "finalized": true}, f.Types)

	assert.True(t, Filter{}.matches(NewEvent(EventLeave)))
}
