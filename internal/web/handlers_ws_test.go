package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"matter-rainmaker/internal/app"
	"matter-rainmaker/internal/matter"
)

func dialWS(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

// readUntil reads messages until one of the given type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read waiting for %s: %v", msgType, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

// registerClient attaches a connectionless client to the server's hub.
func registerClient(t *testing.T, srv *Server, buf int) *wsClient {
	t.Helper()
	c := &wsClient{send: make(chan []byte, buf)}
	select {
	case srv.wsHub.register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept client")
	}
	return c
}

func nextEvent(t *testing.T, c *wsClient) app.Event {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var ev app.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}
	return app.Event{}
}

func TestWSBroadcastsDeviceEvents(t *testing.T) {
	srv, a, _ := setupTestServer(t)
	c := registerClient(t, srv, 64)

	if err := a.Toggle(context.Background()); err != nil {
		t.Fatal(err)
	}

	seen := map[string]app.Event{}
	for len(seen) < 2 {
		ev := nextEvent(t, c)
		seen[ev.Type] = ev
	}

	upd, ok := seen[app.EventAttributeUpdate].Data.(map[string]any)
	if !ok {
		t.Fatalf("attribute_update = %+v", seen[app.EventAttributeUpdate])
	}
	if upd["cluster"] != float64(matter.ClusterOnOff) || upd["value"] != false || upd["origin"] != "local" {
		t.Errorf("attribute_update data = %v", upd)
	}

	rep, ok := seen[app.EventParamReport].Data.(map[string]any)
	if !ok {
		t.Fatalf("param_report = %+v", seen[app.EventParamReport])
	}
	light, _ := rep["Matter Light"].(map[string]any)
	if light["Power"] != false {
		t.Errorf("param_report data = %v", rep)
	}
}

func TestWSWrite(t *testing.T) {
	srv, a, _ := setupTestServer(t)
	conn, ctx := dialWS(t, srv)

	msg := `{"type":"write","data":{"Matter Light":{"Power":false}}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	if reply := readUntil(t, ctx, conn, "write_result"); reply["status"] != "ok" {
		t.Fatalf("reply = %v", reply)
	}
	if s, _ := a.Light().State(a.LightEndpoint()); s.On {
		t.Error("light still on after ws write")
	}
}

func TestWSWriteRejected(t *testing.T) {
	srv, a, _ := setupTestServer(t)
	conn, ctx := dialWS(t, srv)

	msg := `{"type":"write","data":{"Matter Light":{"Brightness":150}}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	// the broadcast event and the direct reply may arrive in either order
	got := map[string]map[string]any{}
	for len(got) < 2 {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v (have %v)", err, got)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if typ, _ := msg["type"].(string); typ == app.EventWriteRejected || typ == "write_result" {
			got[typ] = msg
		}
	}
	rejected := got[app.EventWriteRejected]
	if data, _ := rejected["data"].(map[string]any); data["param"] != "Brightness" {
		t.Errorf("write_rejected = %v", rejected)
	}
	reply := got["write_result"]
	if msg, _ := reply["error"].(string); reply["status"] != "error" || !strings.Contains(msg, "out of range") {
		t.Errorf("reply = %v", reply)
	}
	if s, _ := a.Light().State(a.LightEndpoint()); s.Level != 64 {
		t.Errorf("driver level = %d, want unchanged 64", s.Level)
	}
}

func TestWSBadMessages(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	conn, ctx := dialWS(t, srv)

	tests := []struct {
		msg  string
		want string
	}{
		{`not json`, "invalid message"},
		{`{"type":"subscribe"}`, "unknown message type: subscribe"},
	}
	for _, tt := range tests {
		if err := conn.Write(ctx, websocket.MessageText, []byte(tt.msg)); err != nil {
			t.Fatal(err)
		}
		reply := readUntil(t, ctx, conn, "write_result")
		if reply["status"] != "error" || reply["error"] != tt.want {
			t.Errorf("%s: reply = %v, want error %q", tt.msg, reply, tt.want)
		}
	}
}

func TestWSSlowClientEvicted(t *testing.T) {
	srv, a, _ := setupTestServer(t)
	slow := registerClient(t, srv, 1)
	fast := registerClient(t, srv, 64)

	// one toggle emits an attribute update and a report, overflowing slow
	if err := a.Toggle(context.Background()); err != nil {
		t.Fatal(err)
	}
	nextEvent(t, fast)
	nextEvent(t, fast)

	srv.wsHub.mu.RLock()
	_, slowPresent := srv.wsHub.clients[slow]
	_, fastPresent := srv.wsHub.clients[fast]
	srv.wsHub.mu.RUnlock()
	if slowPresent {
		t.Error("slow client still registered")
	}
	if !fastPresent {
		t.Error("fast client evicted")
	}
}

func TestServerStopClosesClients(t *testing.T) {
	srv, a, _ := setupTestServer(t)
	c := registerClient(t, srv, 16)

	srv.Stop()
	if _, ok := <-c.send; ok {
		t.Error("client channel open after server stop")
	}
	// events after stop are no longer broadcast
	if err := a.Toggle(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv.Stop()
}
