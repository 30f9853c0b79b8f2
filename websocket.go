package streamix

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketStream is a stream of JSON-decoded inbound messages over a
// websocket connection, with a JSON-encoding Send for the outbound
// direction. The connection is dialed when the first subscriber attaches
// and torn down when the last one leaves; messages sent before the
// connection is open are queued and flushed on connect.
type WebSocketStream struct {
	*Stream[any]

	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	queue  [][]byte
	closed bool
}

// WebSocket creates a websocket-backed stream for url ("ws://…" or
// "wss://…").
func WebSocket(url string) *WebSocketStream {
	ws := &WebSocketStream{url: url, dialer: websocket.DefaultDialer}
	ws.Stream = FromRegistration("webSocket", ws.register)
	return ws
}

// WithDialer overrides the dialer (buffer sizes, TLS, proxies) and
// returns the stream for chaining.
func (ws *WebSocketStream) WithDialer(d *websocket.Dialer) *WebSocketStream {
	ws.dialer = d
	return ws
}

// WithLogger sets the logger for swallowed teardown errors.
func (ws *WebSocketStream) WithLogger(logger *slog.Logger) *WebSocketStream {
	ws.logger = logger
	return ws
}

func (ws *WebSocketStream) log() *slog.Logger {
	if ws.logger != nil {
		return ws.logger
	}
	return slog.Default()
}

// register dials the connection and pumps inbound messages into the
// receiver. It is invoked by the ref-counted connector when the first
// subscriber attaches.
func (ws *WebSocketStream) register(r Receiver[any]) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ws.mu.Lock()
		if ws.closed {
			ws.mu.Unlock()
			r.Complete()
			return
		}
		ws.mu.Unlock()

		conn, resp, err := ws.dialer.DialContext(ctx, ws.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() == nil {
				r.Error(err)
			}
			return
		}

		ws.mu.Lock()
		if ws.closed {
			ws.mu.Unlock()
			conn.Close()
			r.Complete()
			return
		}
		ws.conn = conn
		backlog := ws.queue
		ws.queue = nil
		ws.mu.Unlock()

		for _, msg := range backlog {
			if err := ws.writeFrame(msg); err != nil {
				ws.log().Warn("websocket backlog write failed", slog.Any("error", err))
				break
			}
		}

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				ws.mu.Lock()
				ws.conn = nil
				closed := ws.closed
				ws.mu.Unlock()
				if closed || ctx.Err() != nil ||
					websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					r.Complete()
				} else {
					r.Error(err)
				}
				return
			}
			var v any
			if err := json.Unmarshal(data, &v); err != nil {
				// Non-JSON frames pass through as raw text.
				v = string(data)
			}
			r.Next(v)
		}
	}()

	return NewSubscription(cancel)
}

// Send JSON-encodes msg and writes it to the connection, or queues it
// until the connection opens. It fails once the stream is closed.
func (ws *WebSocketStream) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return ErrStreamClosed
	}
	if ws.conn == nil {
		ws.queue = append(ws.queue, data)
		ws.mu.Unlock()
		return nil
	}
	ws.mu.Unlock()
	return ws.writeFrame(data)
}

// writeFrame serializes writers; gorilla allows one concurrent writer.
func (ws *WebSocketStream) writeFrame(data []byte) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn == nil {
		ws.queue = append(ws.queue, data)
		return nil
	}
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// Close terminates the stream: subscribers observe complete and further
// Sends fail.
func (ws *WebSocketStream) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	conn := ws.conn
	ws.conn = nil
	ws.mu.Unlock()

	if conn == nil {
		return nil
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		ws.log().Debug("websocket close frame failed", slog.Any("error", err))
	}
	return conn.Close()
}
