package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meetwire/signal-service/internal/domain"
	"github.com/meetwire/signal-service/internal/metrics"
)

type SessionSvc interface {
	AddParticipant(ctx context.Context, sessionID, participantID string) error
	RemoveParticipant(ctx context.Context, sessionID, participantID string) error
}

type StreamSvc interface {
	Create(ctx context.Context, sessionID, participantID string, kind domain.StreamKind, quality domain.StreamQuality) (*domain.Stream, error)
	StopParticipantStreams(ctx context.Context, sessionID, participantID string) int
}

type Server struct {
	upgrader   websocket.Upgrader
	hub        *Hub
	reg        *Registry
	sessionSvc SessionSvc
	streamSvc  StreamSvc
	met        *metrics.Metrics

	pingEvery time.Duration
}

func NewServer(hub *Hub, reg *Registry, sessions SessionSvc, streams StreamSvc, met *metrics.Metrics) *Server {
	return &Server{
		hub:        hub,
		reg:        reg,
		sessionSvc: sessions,
		streamSvc:  streams,
		met:        met,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

// WS endpoint: GET /ws?access_token=...&participant_id=...
// Token verification happens upstream; by the time a connection reaches the
// core, participant_id is a verified identity.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("access_token")) == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	participantID := strings.TrimSpace(q.Get("participant_id"))
	if participantID == "" {
		http.Error(w, "missing participant_id", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, participantID)
	if s.met != nil {
		s.met.ConnectionsActive.Inc()
	}
	slog.Info("ws connected", "conn", c.ID(), "participant", participantID)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	// Transport-level disconnect: same cleanup as an explicit leave.
	s.drop(r.Context(), c)
	if s.met != nil {
		s.met.ConnectionsActive.Dec()
	}
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", c.ID(), "err", err)
	}
	slog.Info("ws disconnected", "conn", c.ID(), "participant", participantID)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeJoin:
			var p JoinPayload
			if decode(msg.Payload, &p) == nil {
				s.handleJoin(ctx, c, p)
			}
		case TypeLeave:
			s.drop(ctx, c)
		case TypeOffer, TypeAnswer, TypeCandidate:
			var p SignalPayload
			if decode(msg.Payload, &p) == nil {
				s.relay(msg.Type, c, p)
			}
		case TypeMute:
			var p MutePayload
			if decode(msg.Payload, &p) == nil {
				s.handleMute(c, p)
			}
		case TypePing:
			_ = c.Send(Message{Type: TypePong})
		default:
			// ignore
		}
	}
}

// handleJoin admits the connection into a session: directory membership
// first (capacity applies there), then registry bind with a member snapshot,
// then the two-way announcements. The joining connection gets every
// existing-member notice before any relayed message can reach it, because
// relays only flow after the corresponding notice lands on the peer side.
func (s *Server) handleJoin(ctx context.Context, c Conn, p JoinPayload) {
	if p.SessionID == "" {
		_ = c.Send(ackErr(p.SessionID, c.ParticipantID(), "missing session_id"))
		return
	}
	if cur, ok := s.reg.SessionOf(c); ok {
		if cur == p.SessionID {
			_ = c.Send(ackOK(p.SessionID, c.ParticipantID()))
			return
		}
		_ = c.Send(ackErr(p.SessionID, c.ParticipantID(), "connection already in a session"))
		return
	}

	if err := s.sessionSvc.AddParticipant(ctx, p.SessionID, c.ParticipantID()); err != nil {
		if s.met != nil {
			s.met.JoinsRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		slog.Warn("join rejected",
			"session", p.SessionID, "participant", c.ParticipantID(), "err", err)
		_ = c.Send(ackErr(p.SessionID, c.ParticipantID(), err.Error()))
		return
	}

	members, firstConn := s.reg.Bind(c.ParticipantID(), c, p.SessionID, p.DisplayName)
	s.hub.Add(p.SessionID, c)

	_ = c.Send(ackOK(p.SessionID, c.ParticipantID()))

	// Existing membership to the joiner, one notice per member.
	for _, m := range members {
		_ = c.Send(Message{Type: TypeParticipantJoined, Payload: ParticipantJoinedPayload{
			ParticipantID:  m.ParticipantID,
			ConnectionID:   m.Conn.ID(),
			DisplayName:    m.DisplayName,
			ShouldInitiate: c.ParticipantID() < m.ParticipantID,
		}})
	}

	// The joiner to each existing member. ShouldInitiate differs per
	// receiver, so this is a per-member send, not a room broadcast.
	for _, m := range members {
		note := Message{Type: TypeParticipantJoined, Payload: ParticipantJoinedPayload{
			ParticipantID:  c.ParticipantID(),
			ConnectionID:   c.ID(),
			DisplayName:    p.DisplayName,
			ShouldInitiate: m.ParticipantID < c.ParticipantID(),
		}}
		for _, mc := range s.reg.ConnectionsFor(m.ParticipantID) {
			_ = mc.Send(note)
		}
	}

	// Stream records exist once per media kind per participant, not per
	// connection.
	if firstConn {
		if _, err := s.streamSvc.Create(ctx, p.SessionID, c.ParticipantID(), domain.StreamAudio, domain.QualityHigh); err != nil {
			slog.Warn("audio stream record failed", "session", p.SessionID, "participant", c.ParticipantID(), "err", err)
		}
		if p.Video {
			if _, err := s.streamSvc.Create(ctx, p.SessionID, c.ParticipantID(), domain.StreamVideo, domain.QualityHigh); err != nil {
				slog.Warn("video stream record failed", "session", p.SessionID, "participant", c.ParticipantID(), "err", err)
			}
		}
	}

	if s.met != nil {
		s.met.JoinsTotal.Inc()
	}
	slog.Info("joined session",
		"session", p.SessionID, "participant", c.ParticipantID(), "conn", c.ID(), "peers", len(members))
}

// relay forwards one negotiation message to every live connection of the
// receiver, unmodified. From is always the authenticated identity of the
// sending connection; the payload field is never trusted. A receiver with no
// live connection means the message is dropped, which is not an error to the
// sender.
func (s *Server) relay(kind string, c Conn, p SignalPayload) {
	conns := s.reg.ConnectionsFor(p.To)
	if len(conns) == 0 {
		if s.met != nil {
			s.met.RelayDropped.WithLabelValues(kind).Inc()
		}
		slog.Debug("relay dropped, receiver offline", "kind", kind, "to", p.To)
		return
	}

	out := Message{Type: kind, Payload: SignalPayload{
		From:      c.ParticipantID(),
		To:        p.To,
		SessionID: p.SessionID,
		Payload:   p.Payload,
	}}
	for _, rc := range conns {
		_ = rc.Send(out)
	}

	if s.met != nil {
		s.met.MessagesRelayed.WithLabelValues(kind).Inc()
	}
}

func (s *Server) handleMute(c Conn, p MutePayload) {
	sessionID, ok := s.reg.SessionOf(c)
	if !ok {
		return
	}
	s.hub.Broadcast(sessionID, Message{Type: TypeMuteChanged, Payload: MuteChangedPayload{
		ParticipantID: c.ParticipantID(),
		Muted:         p.Muted,
	}}, c)
}

// drop runs the leave-equivalent cleanup for a connection. Safe to call
// twice: the second unbind is a no-op. When the participant's last
// connection in the session goes, the room hears participant-left and the
// directory membership is released, which may cascade into the session
// ending.
func (s *Server) drop(ctx context.Context, c Conn) {
	participantID, sessionID, last := s.reg.Unbind(c)
	if participantID == "" {
		return
	}
	s.hub.Remove(sessionID, c)

	if !last {
		return
	}
	s.hub.Broadcast(sessionID, Message{Type: TypeParticipantLeft, Payload: ParticipantLeftPayload{
		ParticipantID: participantID,
	}}, nil)
	s.streamSvc.StopParticipantStreams(ctx, sessionID, participantID)
	if err := s.sessionSvc.RemoveParticipant(ctx, sessionID, participantID); err != nil {
		slog.Debug("remove participant failed", "session", sessionID, "participant", participantID, "err", err)
	}
	slog.Info("left session", "session", sessionID, "participant", participantID)
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func ackOK(sessionID, participantID string) Message {
	return Message{Type: TypeJoinAck, Payload: JoinAckPayload{
		Success:       true,
		SessionID:     sessionID,
		ParticipantID: participantID,
	}}
}

func ackErr(sessionID, participantID, msg string) Message {
	return Message{Type: TypeJoinAck, Payload: JoinAckPayload{
		Success:       false,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Error:         msg,
	}}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionFull):
		return "capacity"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionEnded):
		return "ended"
	default:
		return "other"
	}
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}
