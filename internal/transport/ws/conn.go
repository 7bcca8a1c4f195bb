package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one live bidirectional channel to one client process. It belongs
// to exactly one participant for its whole lifetime.
type Conn interface {
	ID() string
	ParticipantID() string
	Send(msg Message) error
	Close() error
}

type wsConn struct {
	id            string
	participantID string
	conn          *websocket.Conn
	sendMu        chan struct{}
	closed        chan struct{}
}

func newWsConn(c *websocket.Conn, participantID string) *wsConn {
	return &wsConn{
		id:            uuid.New().String(),
		participantID: participantID,
		conn:          c,
		sendMu:        make(chan struct{}, 1),
		closed:        make(chan struct{}),
	}
}

// Send writes one message. The per-connection mutex keeps writes ordered, so
// messages from one sender to one receiver arrive in send order.
func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) ID() string            { return c.id }
func (c *wsConn) ParticipantID() string { return c.participantID }
