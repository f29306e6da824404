package realtime

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
	"go.uber.org/zap/zaptest"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

func TestHubPresence(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	c1 := NewClient("u1", nil)
	c2 := NewClient("u1", nil)

	assert.False(t, h.Online("u1"))
	h.Join(c1)
	h.Join(c2)
	assert.True(t, h.Online("u1"))
	assert.Equal(t, 1, h.OnlineCount())

	assert.Equal(t, 2, h.SendToUser("u1", "ping"))
	assert.Equal(t, 0, h.SendToUser("u2", "ping"))

	h.Leave(c1)
	assert.True(t, h.Online("u1"))
	h.Leave(c2)
	h.Leave(c2)
	assert.False(t, h.Online("u1"))

	// Leave closes the queue after whatever was already queued.
	assert.Equal(t, "ping", <-c1.Send())
	_, ok := <-c1.Send()
	assert.False(t, ok)
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	h := NewHub(nil)
	c := NewClient("u1", nil)
	h.Join(c)
	defer h.Leave(c)

	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, h.SendToUser("u1", i))
	}
	assert.Equal(t, 0, h.SendToUser("u1", "overflow"))
}

func TestHubOnMatchFormedNotifiesBoth(t *testing.T) {
	h := NewHub(nil)
	a := NewClient("a", nil)
	b := NewClient("b", nil)
	h.Join(a)
	h.Join(b)

	h.OnMatchFormed(context.Background(), matching.MatchFormed{MatchID: "m1", Pair: matching.NewPair("b", "a")})

	for _, c := range []*Client{a, b} {
		evt, ok := (<-c.Send()).(Event)
		require.True(t, ok)
		assert.Equal(t, "match_formed", evt.Type)
	}
}

func TestServeWSPushesEvents(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "info", hello.Type)
	require.Eventually(t, func() bool { return h.Online("alice") }, time.Second, 5*time.Millisecond)

	h.OnMatchFormed(context.Background(), matching.MatchFormed{
		MatchID: "m7", Pair: matching.NewPair("alice", "bob"), MatchPercentage: 77,
	})

	var got struct {
		Type string               `json:"type"`
		Data matching.MatchFormed `json:"data"`
	}
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "match_formed", got.Type)
	assert.Equal(t, "m7", got.Data.MatchID)
	assert.Equal(t, 77, got.Data.MatchPercentage)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !h.Online("alice") }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSDispatchesClientFrames(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	type frame struct {
		user string
		in   Inbound
	}
	got := make(chan frame, 4)
	h.HandleInbound(func(_ context.Context, userID string, in Inbound) {
		got <- frame{user: userID, in: in}
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"conversation_id":"c1"}`)))
	require.NoError(t, conn.WriteJSON(Inbound{Type: "typing", ConversationID: "c1", IsTyping: true}))

	select {
	case f := <-got:
		assert.Equal(t, "alice", f.user)
		assert.Equal(t, Inbound{Type: "typing", ConversationID: "c1", IsTyping: true}, f.in)
	case <-time.After(2 * time.Second):
		t.Fatal("typing frame was not dispatched")
	}
	assert.Empty(t, got)
}
