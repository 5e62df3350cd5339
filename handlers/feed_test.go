package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/permissions"
	"github.com/camden-git/attendancebackend/realtime"
)

func TestFeedPinsSubjectTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(RouterDeps{Hub: hub, JWTSecret: testSecret, Log: zap.NewNop()}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feed"

	// no recognition.view and no subject link
	resp, err := http.Get(srv.URL + "/api/feed?access_token=" + token(t, []string{permissions.AttendanceView}, nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	own := uint(3)
	// asks for subject 9 but is pinned to 3
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?subject_id=9&access_token="+token(t, nil, &own), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	foreign := realtime.NewEvent(realtime.EventAttendance)
	foreign.SubjectID = 9
	mine := realtime.NewEvent(realtime.EventAttendance)
	mine.SubjectID = own
	mine.Action = "check_in"
	require.NoError(t, hub.Publish(ctx, foreign))
	require.NoError(t, hub.Publish(ctx, mine))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got realtime.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, own, got.SubjectID)
	assert.Equal(t, "check_in", got.Action)
}
