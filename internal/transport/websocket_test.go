package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestWebSocketEndpoint(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("abc"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("defgh"))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, data)
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ep, err := DialWebSocket(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer ep.Close()

	tr := New(ep)
	defer tr.Stop()

	a := receive(tr, 2)
	b := receive(tr, 6)
	if o := wait(t, a); o.err != nil || string(o.value) != "ab" {
		t.Errorf("first receive = %q, %v; want %q", o.value, o.err, "ab")
	}
	if o := wait(t, b); o.err != nil || string(o.value) != "cdefgh" {
		t.Errorf("second receive = %q, %v; want %q", o.value, o.err, "cdefgh")
	}

	if o := wait(t, send(tr, []byte("echo"))); o.err != nil {
		t.Fatalf("send error = %v", o.err)
	}
	if o := wait(t, receive(tr, 4)); o.err != nil || string(o.value) != "echo" {
		t.Errorf("echo receive = %q, %v; want %q", o.value, o.err, "echo")
	}
}
