package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Icerzack/codecollab/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

// Transport is the duplex channel to the room.
type Transport interface {
	// Send queues a frame. It fails once the transport is closed.
	Send(env protocol.Envelope) error
	// Receive delivers inbound frames in order; it is closed when the channel drops.
	Receive() <-chan protocol.Envelope
	Close() error
}

// Dialer opens a transport.
type Dialer func(ctx context.Context) (Transport, error)

// WebSocketOptions tune DialWebSocket.
type WebSocketOptions struct {
	// DialAttempts is the number of dial attempts before giving up. Zero means one.
	DialAttempts int
	Logger       *zap.Logger
}

// DialWebSocket returns a Dialer for the relay at rawURL, authenticating with token.
func DialWebSocket(rawURL string, tokens TokenProvider, opts WebSocketOptions) Dialer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (Transport, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid url: %v", ErrTransport, err)
		}
		header := http.Header{}
		if tokens != nil && tokens.Token() != "" {
			q := u.Query()
			q.Set("token", tokens.Token())
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+tokens.Token())
		}

		var conn *websocket.Conn
		dial := func() error {
			c, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
			if resp != nil && resp.Body != nil {
				resp.Body.Close()
			}
			if err != nil {
				logger.Debug("Dial attempt failed", zap.String("url", rawURL), zap.Error(err))
				return err
			}
			conn = c
			return nil
		}

		retries := opts.DialAttempts - 1
		if retries < 0 {
			retries = 0
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
		if err := backoff.Retry(dial, policy); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		return newWSTransport(conn, logger), nil
	}
}

type wsTransport struct {
	conn   *websocket.Conn
	send   chan []byte
	recv   chan protocol.Envelope
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSTransport(conn *websocket.Conn, logger *zap.Logger) *wsTransport {
	t := &wsTransport{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		recv:   make(chan protocol.Envelope, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go t.writePump()
	go t.readPump()
	return t
}

func (t *wsTransport) Send(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("error marshaling %s: %w", env.Event, err)
	}
	select {
	case <-t.done:
		return fmt.Errorf("%w: connection closed", ErrTransport)
	default:
	}
	select {
	case t.send <- data:
		return nil
	case <-t.done:
		return fmt.Errorf("%w: connection closed", ErrTransport)
	}
}

func (t *wsTransport) Receive() <-chan protocol.Envelope {
	return t.recv
}

func (t *wsTransport) Close() error {
	t.once.Do(func() {
		close(t.done)
	})
	return nil
}

func (t *wsTransport) readPump() {
	defer func() {
		close(t.recv)
		t.Close()
		t.conn.Close()
	}()

	t.conn.SetReadLimit(maxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Info("Connection dropped", zap.Error(err))
			}
			return
		}
		env, err := protocol.Parse(raw)
		if err != nil {
			t.logger.Debug("Failed to parse frame", zap.Error(err))
			continue
		}
		select {
		case t.recv <- env:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case data := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				t.logger.Debug("Failed to write frame", zap.Error(err))
				t.Close()
				return
			}
		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.Close()
				return
			}
		case <-t.done:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
