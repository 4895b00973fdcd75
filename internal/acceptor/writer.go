package acceptor

import (
	"errors"
	"time"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

// errSendQueueFull is returned when a client has not drained its outbound
// queue within writeWait; the router treats this as a write failure and
// drops the session.
var errSendQueueFull = errors.New("acceptor: send queue full, client not draining")
var errWriterClosed = errors.New("acceptor: writer closed")

// wsWriter is the session.Writer backing one upgraded connection. All
// writes to the underlying *websocket.Conn happen on writePump's goroutine;
// Send only ever hands data to the queue, preserving gorilla's
// one-writer-per-connection requirement.
type wsWriter struct {
	conn   *websocket.Conn
	outbox chan []byte
	closed chan struct{}
}

func newWSWriter(conn *websocket.Conn) *wsWriter {
	return &wsWriter{
		conn:   conn,
		outbox: make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
	}
}

// Send encodes msgs as a single wire frame and enqueues it for writePump.
// A full queue after writeWait means the peer isn't draining; the caller
// (the router's send helper) reacts by terminating the session.
func (w *wsWriter) Send(msgs ...protocol.ServerMessage) error {
	data, err := protocol.EncodeServerMessages(msgs...)
	if err != nil {
		return err
	}
	return w.enqueue(data)
}

func (w *wsWriter) enqueue(data []byte) error {
	select {
	case w.outbox <- data:
		return nil
	case <-w.closed:
		return errWriterClosed
	case <-time.After(writeWait):
		return errSendQueueFull
	}
}

// Close signals writePump to send a close frame and stop; it never blocks
// on the underlying connection itself.
func (w *wsWriter) Close() error {
	select {
	case <-w.closed:
	default:
		close(w.closed)
	}
	return nil
}

// writePump owns every write to conn: queued application frames, periodic
// pings, and the final close handshake. It exits (and closes conn) when the
// queue is closed, a write fails, or the read side reports the connection
// dead via readDone.
func (w *wsWriter) writePump(readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case data := <-w.outbox:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.closed:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-readDone:
			return
		}
	}
}
