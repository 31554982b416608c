package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// mockHandler implements WebSocketHandler for testing
type mockHandler struct {
	url            string
	onConnectCalls int32
	mu             sync.Mutex
	messages       [][]byte
}

func (m *mockHandler) GetURL() string { return m.url }
func (m *mockHandler) ID() string     { return "MOCK" }
func (m *mockHandler) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	atomic.AddInt32(&m.onConnectCalls, 1)
	return nil
}
func (m *mockHandler) OnMessage(ctx context.Context, msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}
func (m *mockHandler) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}
func (m *mockHandler) received() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// createMockWSServer creates a test WebSocket server
func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestBaseWSWorker_Connect(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"test"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.ReadTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	worker.Start(ctx)
	assert.Eventually(t, func() bool { return handler.received() > 0 }, time.Second, 10*time.Millisecond)
	worker.Stop()

	assert.NotZero(t, atomic.LoadInt32(&handler.onConnectCalls), "OnConnect was not called")
}

func TestBaseWSWorker_ReconnectsAfterServerClose(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		// Close right away; the worker must dial again.
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	worker.Backoff = func(int) time.Duration { return 10 * time.Millisecond }

	worker.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&handler.onConnectCalls) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	worker.Stop()
}

func TestBaseWSWorker_GracefulShutdown(t *testing.T) {
	serverClosed := make(chan struct{})
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		<-serverClosed
	})
	defer server.Close()
	defer close(serverClosed)

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)

	worker.Start(context.Background())
	assert.Eventually(t, worker.Connected, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop did not return within timeout")
	}
	assert.False(t, worker.Connected())
}

func TestBaseWSWorker_Write(t *testing.T) {
	receivedMsg := make(chan []byte, 1)

	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			receivedMsg <- msg
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	handler := &mockHandler{url: httpToWS(server.URL)}
	worker := NewBaseWSWorker(handler)
	defer worker.Stop()

	assert.Error(t, worker.Write(websocket.TextMessage, []byte("early")), "write before connect must fail")

	worker.Start(context.Background())
	assert.Eventually(t, worker.Connected, time.Second, 10*time.Millisecond)

	testMsg := []byte(`{"key":"crypto-theme"}`)
	assert.NoError(t, worker.Write(websocket.TextMessage, testMsg))

	select {
	case msg := <-receivedMsg:
		assert.Equal(t, string(testMsg), string(msg))
	case <-time.After(time.Second):
		t.Error("server did not receive message")
	}
}
