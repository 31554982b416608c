package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/gorilla/websocket"
)

const (
	syncPath       = "/sync"
	syncWriteWait  = 5 * time.Second
	syncSendBuffer = 64
)

// SyncHub serves local storage changes to peer instances over websocket.
// Only changes written by this instance are broadcast; applied remote
// changes are not, so two hubs never echo each other.
type SyncHub struct {
	store    Store
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*hubPeer]struct{}

	unwatch func()
	server  *http.Server
	wg      sync.WaitGroup
}

type hubPeer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewSyncHub creates a hub broadcasting changes of store.
func NewSyncHub(store Store) *SyncHub {
	h := &SyncHub{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[*hubPeer]struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(syncPath, h)
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	h.unwatch = store.WatchAll(h.broadcast)
	return h
}

// ServeHTTP upgrades the request and registers the peer.
func (h *SyncHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Sync upgrade failed", slog.Any("error", err))
		return
	}

	p := &hubPeer{conn: conn, send: make(chan []byte, syncSendBuffer)}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	slog.Info("Sync peer connected", slog.String("remote", conn.RemoteAddr().String()))

	h.wg.Add(1)
	go h.writeLoop(p)

	// Peers only send control frames; reading keeps pong handling alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(p)
}

func (h *SyncHub) writeLoop(p *hubPeer) {
	defer h.wg.Done()
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(syncWriteWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Warn("Sync write failed", slog.Any("error", err))
			p.conn.Close()
			// Drain until drop closes the channel.
			for range p.send {
			}
			return
		}
	}
}

func (h *SyncHub) drop(p *hubPeer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
	h.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
}

func (h *SyncHub) broadcast(ev event.StorageChangeEvent) {
	if ev.Remote {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Sync encode failed", slog.String("key", ev.Key), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		select {
		case p.send <- msg:
		default:
			slog.Warn("Sync peer too slow, dropping change", slog.String("key", ev.Key))
		}
	}
}

// Peers returns the number of connected peers.
func (h *SyncHub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Serve serves the hub on ln until ctx ends.
func (h *SyncHub) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		h.Close()
	}()

	slog.Info("Sync hub listening", slog.String("addr", ln.Addr().String()))
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops watching the store and disconnects every peer.
func (h *SyncHub) Close() error {
	h.unwatch()

	err := h.server.Close()

	h.mu.Lock()
	peers := make([]*hubPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		h.drop(p)
	}

	h.wg.Wait()
	return err
}

// SyncWorker follows one peer hub and applies its changes to the local store.
type SyncWorker struct {
	url    string
	store  Store
	worker *infra.BaseWSWorker
}

// NewSyncWorker creates a worker for the hub at url (ws://host:port/sync).
func NewSyncWorker(url string, store Store) *SyncWorker {
	w := &SyncWorker{url: url, store: store}
	w.worker = infra.NewBaseWSWorker(w)
	return w
}

// PeerURL builds the sync endpoint of a peer listening on addr.
func PeerURL(addr string) string {
	return "ws://" + addr + syncPath
}

func (w *SyncWorker) GetURL() string { return w.url }
func (w *SyncWorker) ID() string     { return "SYNC " + w.url }

func (w *SyncWorker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

func (w *SyncWorker) OnMessage(ctx context.Context, msg []byte) {
	var ev event.StorageChangeEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		slog.Warn("Sync message ignored", slog.String("peer", w.url), slog.Any("error", err))
		return
	}
	if ev.Key == "" {
		return
	}
	if err := w.store.ApplyRemote(ctx, ev); err != nil {
		slog.Warn("Sync apply failed",
			slog.String("peer", w.url),
			slog.String("key", ev.Key),
			slog.Any("error", err))
	}
}

func (w *SyncWorker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(syncWriteWait))
}

// Start connects and keeps reconnecting until Stop or ctx ends.
func (w *SyncWorker) Start(ctx context.Context) { w.worker.Start(ctx) }

// Stop disconnects and waits for the worker goroutines.
func (w *SyncWorker) Stop() { w.worker.Stop() }

// Connected reports whether the peer connection is open.
func (w *SyncWorker) Connected() bool { return w.worker.Connected() }
