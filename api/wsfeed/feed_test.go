package wsfeed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SlowSubscriberMissesMessages(t *testing.T) {
	h := newHub[int]()
	fast := h.Subscribe(4)
	slow := h.Subscribe(1)

	assert.Equal(t, 2, h.Broadcast(1))
	assert.Equal(t, 1, h.Broadcast(2))
	assert.Equal(t, 1, <-slow.ch)
	assert.Len(t, fast.ch, 2)

	h.Unsubscribe(slow)
	h.Unsubscribe(slow)
	assert.Equal(t, 1, h.Len())

	h.Close()
	_, ok := <-h.Subscribe(1).ch
	assert.False(t, ok)
}

func TestFeed_StreamsPublishedEvents(t *testing.T) {
	f := New()
	srv := httptest.NewServer(f)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.Publish(context.Background(), []byte("mkt"), []byte(`{"type":"fill","coin_qty":3}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Key  string `json:"key"`
		Data struct {
			Type    string `json:"type"`
			CoinQty uint64 `json:"coin_qty"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "mkt", got.Key)
	assert.Equal(t, "fill", got.Data.Type)
	assert.Equal(t, uint64(3), got.Data.CoinQty)

	require.NoError(t, f.Close())
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
