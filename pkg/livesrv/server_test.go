package livesrv_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/livebind/pkg/livesrv"
	"github.com/vango-dev/livebind/pkg/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialLive(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHealthz(t *testing.T) {
	srv := livesrv.NewServer(nil, livesrv.WithServerLogger(testLogger()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := livesrv.NewServer(nil, livesrv.WithServerLogger(testLogger()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "livebind_server_connections_total") {
		t.Error("metrics output missing server metrics")
	}
}

func TestLivePushesFeedValues(t *testing.T) {
	in := make(chan string, 2)
	srv := livesrv.NewServer(
		[]livesrv.Feed{livesrv.NewFeed("greeting", stream.FromChan(in))},
		livesrv.WithServerLogger(testLogger()),
	)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialLive(t, ts)
	in <- "hello"

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var frame livesrv.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("frame decode failed: %v", err)
	}
	if frame.Name != "greeting" {
		t.Errorf("expected feed name greeting, got %q", frame.Name)
	}
	if frame.Value != "hello" {
		t.Errorf("expected value hello, got %v", frame.Value)
	}
	if frame.Seq != 1 {
		t.Errorf("expected seq 1, got %d", frame.Seq)
	}

	// A second value arrives as a second frame.
	in <- "world"
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatalf("frame decode failed: %v", err)
	}
	if frame.Value != "world" || frame.Seq != 2 {
		t.Errorf("expected world/seq 2, got %v/seq %d", frame.Value, frame.Seq)
	}
}

func TestDeliveryFailureClosesConnection(t *testing.T) {
	bad := stream.Future(func(ctx context.Context) (string, error) {
		return "", errors.New("feed broke")
	})
	srv := livesrv.NewServer(
		[]livesrv.Feed{livesrv.NewFeed("bad", bad)},
		livesrv.WithServerLogger(testLogger()),
	)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ws := dialLive(t, ts)

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection after a delivery failure")
	}
}
