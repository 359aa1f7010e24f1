package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/locomotion/internal/core/observability/log"
)

type quicClient struct {
	id   uuid.UUID
	conn *quic.Conn
	send chan []byte
	once sync.Once
}

func (c *quicClient) close() {
	c.once.Do(func() { close(c.send) })
}

// QUICBroadcaster streams telemetry to QUIC clients. Each client gets one
// unidirectional stream carrying newline-delimited JSON frames.
type QUICBroadcaster struct {
	logger   log.Log
	tlsConf  *tls.Config
	quicConf *quic.Config
	buffer   int

	listener *quic.Listener

	mu      sync.RWMutex
	clients map[uuid.UUID]*quicClient
	closed  bool

	dropped atomic.Uint64
}

func NewQUICBroadcaster(logger log.Log, tlsConf *tls.Config, buffer int) *QUICBroadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &QUICBroadcaster{
		logger:  logger.With(log.String("sink", "quic")),
		tlsConf: tlsConf,
		quicConf: &quic.Config{
			MaxIdleTimeout:        30 * time.Second,
			KeepAlivePeriod:       10 * time.Second,
			MaxIncomingStreams:    -1,
			MaxIncomingUniStreams: -1,
		},
		buffer:  buffer,
		clients: make(map[uuid.UUID]*quicClient),
	}
}

// Listen binds the UDP socket. Use Serve to start accepting.
func (b *QUICBroadcaster) Listen(addr string) error {
	ln, err := quic.ListenAddr(addr, b.tlsConf, b.quicConf)
	if err != nil {
		return fmt.Errorf("%w: quic %s: %w", ErrListenerFailed, addr, err)
	}
	b.listener = ln
	b.logger.Info("quic telemetry listening", log.String("addr", ln.Addr().String()))
	return nil
}

func (b *QUICBroadcaster) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Serve accepts connections until ctx is done or the listener closes.
func (b *QUICBroadcaster) Serve(ctx context.Context) error {
	if b.listener == nil {
		return ErrListenerFailed
	}
	for {
		conn, err := b.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("accept quic connection: %w", err)
		}
		go b.handle(ctx, conn)
	}
}

func (b *QUICBroadcaster) handle(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		b.logger.Warn("open telemetry stream", log.Error(err))
		_ = conn.CloseWithError(0, "no stream")
		return
	}

	c := &quicClient{id: uuid.New(), conn: conn, send: make(chan []byte, b.buffer)}
	if !b.register(c) {
		_ = conn.CloseWithError(0, "shutting down")
		return
	}
	b.logger.Info("quic telemetry client connected",
		log.Stringer("client", c.id),
		log.String("remote", conn.RemoteAddr().String()))

	defer func() {
		b.unregister(c)
		_ = stream.Close()
		b.logger.Info("quic telemetry client disconnected", log.Stringer("client", c.id))
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = conn.CloseWithError(0, "bye")
				return
			}
			line := make([]byte, len(frame)+1)
			copy(line, frame)
			line[len(frame)] = '\n'
			if _, err := stream.Write(line); err != nil {
				b.logger.Debug("quic write failed", log.Stringer("client", c.id), log.Error(err))
				return
			}
		case <-conn.Context().Done():
			return
		}
	}
}

func (b *QUICBroadcaster) register(c *quicClient) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[c.id] = c
	return true
}

func (b *QUICBroadcaster) unregister(c *quicClient) {
	b.mu.Lock()
	if _, ok := b.clients[c.id]; ok {
		delete(b.clients, c.id)
		c.close()
	}
	b.mu.Unlock()
}

// Broadcast queues frame for every client without blocking.
func (b *QUICBroadcaster) Broadcast(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, c := range b.clients {
		select {
		case c.send <- frame:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *QUICBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *QUICBroadcaster) Dropped() uint64 { return b.dropped.Load() }

// Close disconnects all clients and stops the listener.
func (b *QUICBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, c := range b.clients {
		delete(b.clients, id)
		c.close()
	}
	b.mu.Unlock()

	if b.listener != nil {
		return b.listener.Close()
	}
	return nil
}
