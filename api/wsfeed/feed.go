// Package wsfeed streams published settlement events to websocket clients.
// It is a broadcaster publisher: messages are acknowledged once handed to
// the connected clients.
package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

var zlog, _ = logging.PackageLogger("wsfeed", "matchbook/api/wsfeed")

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
)

type message struct {
	Key  string          `json:"key,omitempty"`
	Data json.RawMessage `json:"data"`
}

type Feed struct {
	hub      *hub[message]
	upgrader websocket.Upgrader
}

func New() *Feed {
	return &Feed{
		hub:      newHub[message](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Publish fans value out to the connected clients. value must be JSON.
func (f *Feed) Publish(_ context.Context, key, value []byte) error {
	if !json.Valid(value) {
		value, _ = json.Marshal(value)
	}
	f.hub.Broadcast(message{Key: string(key), Data: value})
	return nil
}

func (f *Feed) Subscribers() int {
	return f.hub.Len()
}

func (f *Feed) Close() error {
	f.hub.Close()
	return nil
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := f.hub.Subscribe(subscriberBuffer)
	defer f.hub.Unsubscribe(sub)

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	zlog.Debug("feed client connected", zap.String("remote", r.RemoteAddr))
	for {
		select {
		case <-gone:
			return
		case msg, ok := <-sub.ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves the feed on addr under /ws/events until ctx is done.
func (f *Feed) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws/events", f)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zlog.Info("websocket feed listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
