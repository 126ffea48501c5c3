// Package listener implements the gateway's connection surface: a
// WebSocket accept loop that binds each connected client to the shared
// session multiplexer.
package listener

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/turngate/turngate/internal/session"
)

const (
	readLimit  = 1 << 20
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Listener accepts WebSocket connections and binds each one to a Session
// as a session.Client.
type Listener struct {
	sess   *session.Session
	server *http.Server
}

// New builds a Listener serving addr. It does not start listening — call
// ListenAndServe.
func New(sess *session.Session, addr string) *Listener {
	l := &Listener{sess: sess}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.serveWS)
	l.server = &http.Server{Addr: addr, Handler: mux}
	return l
}

// ListenAndServe blocks until the listener is shut down via Shutdown, or
// fails to bind. A clean shutdown returns nil.
func (l *Listener) ListenAndServe() error {
	log.Info().Str("addr", l.server.Addr).Msg("listener: accepting connections")
	err := l.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting new connections and waits (bounded by ctx) for
// in-flight requests to finish.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// conn is one WebSocket connection, implementing session.Client.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

func (c *conn) Send(msg []byte) error {
	select {
	case c.send <- msg:
		return nil
	default:
		return errors.New("listener: client send buffer full")
	}
}

func (l *Listener) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("listener: upgrade failed")
		return
	}

	c := &conn{id: uuid.NewString(), ws: ws, send: make(chan []byte, sendBuffer)}
	l.sess.AddClient(c)
	log.Info().Str("client", c.id).Msg("listener: connection accepted")

	done := make(chan struct{})
	go c.writeLoop(done)
	c.readLoop(r.Context(), l.sess, done)
}

// writeLoop drains c.send onto the socket until done is closed.
func (c *conn) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// readLoop reads inbound frames and dispatches each to its own goroutine,
// per spec's one-task-per-in-flight-client-message requirement. It returns
// when the connection closes, and evicts the client from the session.
func (c *conn) readLoop(ctx context.Context, sess *session.Session, done chan struct{}) {
	defer func() {
		close(done)
		sess.RemoveClient(c)
		_ = c.ws.Close()
		log.Info().Str("client", c.id).Msg("listener: connection closed")
	}()

	c.ws.SetReadLimit(readLimit)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		go sess.HandleClientMessage(ctx, c, data)
	}
}
