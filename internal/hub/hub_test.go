package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/seedling-live/internal/config"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      8,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteWait:       time.Second,
		MaxMessageSize:  4096,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

// echoServer registers every connection and echoes text frames back through SendMessage.
func echoServer(t *testing.T, h *Hub, released *atomic.Int32) *httptest.Server {
	upgrader := websocket.Upgrader{}
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient("c"+string(rune('0'+n.Add(1))), h, conn)
		c.OnRelease(func() { released.Add(1) })
		if !h.Register(c) {
			return
		}
		go c.WritePump()
		go c.ReadPump(func(c *Client, msg []byte) {
			c.SendMessage(map[string]string{"echo": string(msg)})
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Unmarshal %s: %v", data, err)
	}
}

func TestHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(testConfig())
	go h.Run(ctx)

	var released atomic.Int32
	srv := echoServer(t, h, &released)

	a := dial(t, srv)
	b := dial(t, srv)
	waitFor(t, func() bool { return h.Count() == 2 })

	t.Run("send to one client", func(t *testing.T) {
		if err := a.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
		var got map[string]string
		readJSON(t, a, &got)
		if got["echo"] != "hi" {
			t.Errorf("echo = %v", got)
		}
	})

	t.Run("disconnect releases", func(t *testing.T) {
		a.Close()
		waitFor(t, func() bool { return h.Count() == 1 && released.Load() == 1 })
	})

	t.Run("stop closes remaining clients", func(t *testing.T) {
		cancel()
		waitFor(t, func() bool { return released.Load() == 2 })
		b.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := b.ReadMessage(); err == nil {
			t.Error("expected closed connection")
		}
	})
}

func TestClientAfterClose(t *testing.T) {
	h := NewHub(testConfig())
	c := &Client{ID: "x", Hub: h, Send: make(chan []byte, 1)}

	var calls atomic.Int32
	c.OnRelease(func() { calls.Add(1) })
	c.close()
	c.close()
	if calls.Load() != 1 {
		t.Fatalf("release calls = %d", calls.Load())
	}

	if err := c.SendMessage("late"); err != nil {
		t.Fatalf("SendMessage after close: %v", err)
	}
	c.OnRelease(func() { calls.Add(1) })
	if calls.Load() != 2 {
		t.Errorf("late OnRelease not run immediately")
	}
}
