package messagebus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"homeassistant-skill/internal/domain"
	"homeassistant-skill/internal/infra"
	"homeassistant-skill/internal/infra/messagebus"
)

// fakeHost accepts skill connections the way the host messagebus does and
// records everything the skill sends.
type fakeHost struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan domain.Message
	reply    func(ctx context.Context, conn *websocket.Conn, msg domain.Message)
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan domain.Message, 64),
	}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
		ctx := context.Background()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			msg, err := domain.UnmarshalMessage(data)
			if err != nil {
				continue
			}
			h.received <- msg
			if h.reply != nil {
				h.reply(ctx, conn, msg)
			}
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHost) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/core"
}

func (h *fakeHost) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-h.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for skill connection")
		return nil
	}
}

func (h *fakeHost) nextMessage(t *testing.T) domain.Message {
	t.Helper()
	select {
	case msg := <-h.received:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from skill")
		return domain.Message{}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg domain.Message) {
	t.Helper()
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func testRetry() infra.RetryConfig {
	return infra.RetryConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2,
	}
}

func newClient(h *fakeHost) *messagebus.Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return messagebus.NewClient(h.url(), "homeassistant-skill", testRetry(), logger)
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestClient_DispatchAndEmit(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	got := make(chan domain.Message, 1)
	client.On("test.ping", func(msg domain.Message) { got <- msg })

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	conn := host.nextConn(t)
	waitSignal(t, connected, "OnConnect")

	if !client.Connected() {
		t.Error("client should report connected")
	}

	send(t, conn, domain.NewMessage("test.ignored", nil))
	send(t, conn, domain.NewMessage("test.ping", map[string]any{"n": float64(1)}))

	select {
	case msg := <-got:
		if msg.Data["n"] != float64(1) {
			t.Errorf("data: got %v", msg.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}

	if err := client.Emit(ctx, domain.NewMessage("test.pong", map[string]any{"ok": true})); err != nil {
		t.Fatalf("emit: %v", err)
	}
	msg := host.nextMessage(t)
	if msg.Type != "test.pong" {
		t.Errorf("type: got %s", msg.Type)
	}
	if msg.Context["source"] != "homeassistant-skill" {
		t.Errorf("source: got %v", msg.Context["source"])
	}
}

func TestClient_WaitForResponse(t *testing.T) {
	host := newFakeHost(t)
	host.reply = func(ctx context.Context, conn *websocket.Conn, msg domain.Message) {
		if msg.Type != domain.EventGetDevices {
			return
		}
		data, _ := msg.Response(map[string]any{"devices": []any{}}).Marshal()
		_ = conn.Write(ctx, websocket.MessageText, data)
	}
	client := newClient(host)

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()
	waitSignal(t, connected, "OnConnect")

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()
	reply, err := client.WaitForResponse(reqCtx, domain.NewMessage(domain.EventGetDevices, nil), domain.EventGetDevicesResponse)
	if err != nil {
		t.Fatalf("wait for response: %v", err)
	}
	if reply.Type != domain.EventGetDevicesResponse {
		t.Errorf("reply type: got %s", reply.Type)
	}
}

func TestClient_WaitForResponseTimeout(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()
	waitSignal(t, connected, "OnConnect")

	reqCtx, reqCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer reqCancel()
	_, err := client.WaitForResponse(reqCtx, domain.NewMessage(domain.EventGetDevices, nil), domain.EventGetDevicesResponse)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error: got %v, want deadline exceeded", err)
	}
}

func TestClient_EmitWithoutConnection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := messagebus.NewClient("ws://127.0.0.1:1/core", "skill", testRetry(), logger)

	err := client.Emit(context.Background(), domain.NewMessage("speak", nil))
	if !errors.Is(err, messagebus.ErrNotConnected) {
		t.Errorf("error: got %v, want ErrNotConnected", err)
	}
}

func TestClient_Reconnects(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	connected := make(chan struct{}, 4)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	first := host.nextConn(t)
	waitSignal(t, connected, "first OnConnect")

	first.Close(websocket.StatusGoingAway, "host restarting")

	host.nextConn(t)
	waitSignal(t, connected, "second OnConnect")
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	waitSignal(t, connected, "OnConnect")

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run error: got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if client.Connected() {
		t.Error("client should report disconnected")
	}
}

func TestClient_EmitKeepsCallerContext(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()
	waitSignal(t, connected, "OnConnect")

	msg := domain.NewMessage("test.pong", nil)
	msg.Context["session"] = "kitchen"
	if err := client.Emit(ctx, msg); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if _, ok := msg.Context["source"]; ok {
		t.Error("Emit must not modify the caller's context")
	}
	sent := host.nextMessage(t)
	if sent.Context["source"] != "homeassistant-skill" || sent.Context["session"] != "kitchen" {
		t.Errorf("sent context: got %v", sent.Context)
	}
}

func TestClient_Remove(t *testing.T) {
	host := newFakeHost(t)
	client := newClient(host)

	var calls atomic.Int32
	client.On("test.removed", func(domain.Message) { calls.Add(1) })
	kept := make(chan struct{}, 1)
	client.On("test.kept", func(domain.Message) { kept <- struct{}{} })
	client.Remove("test.removed")

	connected := make(chan struct{}, 1)
	client.OnConnect(func(context.Context) { connected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	conn := host.nextConn(t)
	waitSignal(t, connected, "OnConnect")

	send(t, conn, domain.NewMessage("test.removed", nil))
	send(t, conn, domain.NewMessage("test.kept", nil))

	// handlers run in arrival order, so once test.kept is handled the
	// removed type would already have been dispatched
	waitSignal(t, kept, "kept handler")
	if n := calls.Load(); n != 0 {
		t.Errorf("removed handler calls: got %d, want 0", n)
	}
}

func TestClient_RetriesDialTimeouts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// accept connections and never answer the websocket upgrade
	var accepted atomic.Int32
	var held []net.Conn
	var heldMu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			heldMu.Lock()
			held = append(held, conn)
			heldMu.Unlock()
		}
	}()
	defer func() {
		heldMu.Lock()
		defer heldMu.Unlock()
		for _, c := range held {
			c.Close()
		}
	}()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := messagebus.NewClient("ws://"+ln.Addr().String()+"/core", "skill", testRetry(), logger)
	client.SetDialTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for accepted.Load() < 3 {
		select {
		case err := <-done:
			t.Fatalf("Run gave up after a dial timeout: %v", err)
		case <-deadline:
			t.Fatalf("dial attempts: got %d, want >= 3", accepted.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run error: got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
