package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// clientBuffer is how many outbound messages a client may lag behind
// before it is disconnected
const clientBuffer = 1024

type client struct {
	out    chan Message
	closed chan struct{}
	once   sync.Once
}

func newClient() *client {
	return &client{
		out:    make(chan Message, clientBuffer),
		closed: make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.closed) })
}

// Hub fans outbound messages out to every connected panel and merges their
// inbound messages into one channel.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	onSync  func() []Message

	in  chan Message
	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		in:      make(chan Message, 256),
		log:     log,
	}
}

// Inbound returns panel messages from all clients
func (h *Hub) Inbound() <-chan Message {
	return h.in
}

// OnConnect sets the full-state sync sent to each new client. fn is called
// with the hub locked, so no broadcast can interleave with it.
func (h *Hub) OnConnect(fn func() []Message) {
	h.mu.Lock()
	h.onSync = fn
	h.mu.Unlock()
}

// Broadcast queues msgs for every client without blocking. A client whose
// queue is full is dropped; it resyncs when it reconnects.
func (h *Hub) Broadcast(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		for _, m := range msgs {
			if !h.push(c, m) {
				break
			}
		}
	}
}

// push must be called with h.mu held
func (h *Hub) push(c *client, m Message) bool {
	select {
	case c.out <- m:
		return true
	default:
		h.log.Warn("panel client too slow, disconnecting")
		delete(h.clients, c)
		c.close()
		return false
	}
}

func (h *Hub) register() *client {
	c := newClient()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.onSync != nil {
		for _, m := range h.onSync() {
			if !h.push(c, m) {
				break
			}
		}
	}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) deliver(m Message, done <-chan struct{}) {
	select {
	case h.in <- m:
	case <-done:
	}
}

// Handler serves the websocket endpoint
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(ws *websocket.Conn) {
	c := h.register()
	defer h.unregister(c)
	log := h.log.With("remote", ws.Request().RemoteAddr)
	log.Info("panel connected")

	go func() {
		defer ws.Close()
		for {
			select {
			case <-c.closed:
				return
			case m := <-c.out:
				if err := websocket.JSON.Send(ws, m); err != nil {
					log.Debug("send failed", "err", err)
					c.close()
					return
				}
			}
		}
	}()

	for {
		var m Message
		if err := websocket.JSON.Receive(ws, &m); err != nil {
			log.Info("panel disconnected", "err", err)
			return
		}
		if m.Tag == "" {
			log.Warn("dropping message without tag")
			continue
		}
		h.deliver(m, c.closed)
	}
}

// ListenAndServe serves the panel endpoint at /ws until ctx is done
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Pipe is an in-process panel client
type Pipe struct {
	hub *Hub
	c   *client
}

// Attach connects an in-process client; it receives the full-state sync
// like any websocket client.
func (h *Hub) Attach() *Pipe {
	return &Pipe{hub: h, c: h.register()}
}

// Messages returns outbound messages for this client
func (p *Pipe) Messages() <-chan Message {
	return p.c.out
}

// Closed is closed when the hub drops the client
func (p *Pipe) Closed() <-chan struct{} {
	return p.c.closed
}

// Send delivers an inbound message to the hub
func (p *Pipe) Send(m Message) {
	p.hub.deliver(m, p.c.closed)
}

func (p *Pipe) Close() {
	p.hub.unregister(p.c)
}
