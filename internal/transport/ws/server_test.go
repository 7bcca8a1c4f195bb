package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/meetwire/signal-service/internal/domain"
	"github.com/meetwire/signal-service/internal/service"
)

func newTestServer(t *testing.T) (*Server, *service.SessionService, *service.StreamService) {
	t.Helper()
	streams := service.NewStreamService(nil, nil, 0)
	sessions := service.NewSessionService(nil, nil, 0)
	sessions.SetStreamStopper(streams)
	return NewServer(NewHub(), NewRegistry(), sessions, streams, nil), sessions, streams
}

func join(t *testing.T, s *Server, c Conn, sessionID string) {
	t.Helper()
	s.handleJoin(context.Background(), c, JoinPayload{SessionID: sessionID})
}

func joinedPayload(t *testing.T, m Message) ParticipantJoinedPayload {
	t.Helper()
	p, ok := m.Payload.(ParticipantJoinedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", m.Payload)
	}
	return p
}

func TestJoinAnnouncesBothWaysWithTieBreak(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 2)

	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	join(t, s, a, sess.ID)
	join(t, s, b, sess.ID)

	// u1 < u2, so u1 initiates toward u2 and u2 does not initiate toward u1.
	aNotices := a.messagesOfType(TypeParticipantJoined)
	if len(aNotices) != 1 {
		t.Fatalf("u1 expected exactly 1 joined notice, got %d", len(aNotices))
	}
	got := joinedPayload(t, aNotices[0])
	if got.ParticipantID != "u2" || !got.ShouldInitiate {
		t.Fatalf("u1 notice = %+v, want u2 with shouldInitiate=true", got)
	}

	bNotices := b.messagesOfType(TypeParticipantJoined)
	if len(bNotices) != 1 {
		t.Fatalf("u2 expected exactly 1 joined notice, got %d", len(bNotices))
	}
	got = joinedPayload(t, bNotices[0])
	if got.ParticipantID != "u1" || got.ShouldInitiate {
		t.Fatalf("u2 notice = %+v, want u1 with shouldInitiate=false", got)
	}
}

func TestTieBreakSymmetricForAllPairs(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "all-hands", "u1", 10)

	ids := []string{"u1", "u3", "u2", "u5", "u4"} // join order != id order
	conns := make(map[string]*fakeConn, len(ids))
	for _, id := range ids {
		c := newFakeConn("conn-"+id, id)
		conns[id] = c
		join(t, s, c, sess.ID)
	}

	// Collect shouldInitiate per (receiver, peer) from every notice.
	initiate := make(map[[2]string]bool)
	for id, c := range conns {
		for _, m := range c.messagesOfType(TypeParticipantJoined) {
			p := joinedPayload(t, m)
			initiate[[2]string{id, p.ParticipantID}] = p.ShouldInitiate
		}
	}

	for i, a := range ids {
		for _, b := range ids[i+1:] {
			ab, okAB := initiate[[2]string{a, b}]
			ba, okBA := initiate[[2]string{b, a}]
			if !okAB || !okBA {
				t.Fatalf("missing notice for pair {%s,%s}", a, b)
			}
			if ab == ba {
				t.Fatalf("pair {%s,%s}: both sides got shouldInitiate=%v", a, b, ab)
			}
			smaller := a
			if b < a {
				smaller = b
			}
			if ab != (a == smaller) {
				t.Fatalf("pair {%s,%s}: initiator is not the smaller id", a, b)
			}
		}
	}
}

func TestJoinAckPrecedesMembershipNotices(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 0)

	join(t, s, newFakeConn("a", "u1"), sess.ID)
	b := newFakeConn("b", "u2")
	join(t, s, b, sess.ID)

	msgs := b.messages()
	if len(msgs) < 2 {
		t.Fatalf("expected ack + notice, got %d messages", len(msgs))
	}
	if msgs[0].Type != TypeJoinAck {
		t.Fatalf("first message = %s, want %s", msgs[0].Type, TypeJoinAck)
	}
	ack := msgs[0].Payload.(JoinAckPayload)
	if !ack.Success || ack.SessionID != sess.ID || ack.ParticipantID != "u2" {
		t.Fatalf("bad ack: %+v", ack)
	}
	if msgs[1].Type != TypeParticipantJoined {
		t.Fatalf("second message = %s, want %s", msgs[1].Type, TypeParticipantJoined)
	}
}

func TestJoinRejectedAtCapacityLeavesStateUnchanged(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 2)

	join(t, s, newFakeConn("a", "u1"), sess.ID)
	join(t, s, newFakeConn("b", "u2"), sess.ID)

	c := newFakeConn("c", "u3")
	join(t, s, c, sess.ID)

	acks := c.messagesOfType(TypeJoinAck)
	if len(acks) != 1 {
		t.Fatalf("expected 1 ack, got %d", len(acks))
	}
	if ack := acks[0].Payload.(JoinAckPayload); ack.Success {
		t.Fatal("join beyond capacity must be rejected")
	}
	if len(c.messagesOfType(TypeParticipantJoined)) != 0 {
		t.Fatal("rejected joiner must not receive membership")
	}

	got, _ := sessions.Get(context.Background(), sess.ID)
	if len(got.Participants) != 2 || !got.IsActive {
		t.Fatalf("session state changed by rejected join: %+v", got)
	}
	if len(s.reg.ConnectionsFor("u3")) != 0 {
		t.Fatal("rejected joiner must not be bound")
	}
}

func TestJoinSecondConnectionSameParticipant(t *testing.T) {
	s, sessions, streams := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 2)

	join(t, s, newFakeConn("a1", "u1"), sess.ID)
	join(t, s, newFakeConn("a2", "u1"), sess.ID)
	b := newFakeConn("b", "u2")
	join(t, s, b, sess.ID)

	// A multi-connected participant is still one participant.
	got, _ := sessions.Get(context.Background(), sess.ID)
	if len(got.Participants) != 2 {
		t.Fatalf("participants = %v, want [u1 u2]", got.Participants)
	}
	if n := len(b.messagesOfType(TypeParticipantJoined)); n != 1 {
		t.Fatalf("joiner saw %d members, want 1 (u1 once)", n)
	}

	// One audio record per participant, not per connection.
	var audio int
	for _, st := range streams.ListBySession(context.Background(), sess.ID) {
		if st.ParticipantID == "u1" && st.Kind == domain.StreamAudio {
			audio++
		}
	}
	if audio != 1 {
		t.Fatalf("u1 has %d audio records, want 1", audio)
	}
}

func TestRelayForwardsToAllReceiverConnections(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 0)

	a := newFakeConn("a", "u1")
	b1 := newFakeConn("b1", "u2")
	b2 := newFakeConn("b2", "u2")
	join(t, s, a, sess.ID)
	join(t, s, b1, sess.ID)
	join(t, s, b2, sess.ID)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	s.relay(TypeOffer, a, SignalPayload{To: "u2", SessionID: sess.ID, Payload: payload})

	for _, c := range []*fakeConn{b1, b2} {
		offers := c.messagesOfType(TypeOffer)
		if len(offers) != 1 {
			t.Fatalf("%s got %d offers, want 1", c.ID(), len(offers))
		}
		p := offers[0].Payload.(SignalPayload)
		if p.From != "u1" || p.To != "u2" {
			t.Fatalf("bad addressing: %+v", p)
		}
		if string(p.Payload) != string(payload) {
			t.Fatalf("payload modified in transit: %s", p.Payload)
		}
	}
}

func TestRelayOverridesAssertedFrom(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 0)

	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	join(t, s, a, sess.ID)
	join(t, s, b, sess.ID)

	// Sender lies about who it is; the relay stamps the authenticated id.
	s.relay(TypeAnswer, a, SignalPayload{From: "u9", To: "u2", SessionID: sess.ID})

	answers := b.messagesOfType(TypeAnswer)
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(answers))
	}
	if p := answers[0].Payload.(SignalPayload); p.From != "u1" {
		t.Fatalf("from = %q, want authenticated u1", p.From)
	}
}

func TestRelayToOfflineParticipantIsDropped(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 0)

	a := newFakeConn("a", "u1")
	join(t, s, a, sess.ID)

	// u2 never joined anything: silent drop, no error back to the sender.
	s.relay(TypeOffer, a, SignalPayload{To: "u2", SessionID: sess.ID})

	for _, m := range a.messages() {
		if m.Type == TypeOffer {
			t.Fatal("sender must not receive anything for an undeliverable relay")
		}
	}
}

func TestMuteBroadcastExcludesSender(t *testing.T) {
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(context.Background(), "standup", "u1", 0)

	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	join(t, s, a, sess.ID)
	join(t, s, b, sess.ID)

	s.handleMute(a, MutePayload{Muted: true})

	if n := len(a.messagesOfType(TypeMuteChanged)); n != 0 {
		t.Fatalf("sender received its own mute notice %d times", n)
	}
	changed := b.messagesOfType(TypeMuteChanged)
	if len(changed) != 1 {
		t.Fatalf("peer got %d mute notices, want 1", len(changed))
	}
	p := changed[0].Payload.(MuteChangedPayload)
	if p.ParticipantID != "u1" || !p.Muted {
		t.Fatalf("bad mute notice: %+v", p)
	}
}

func TestLeaveCascade(t *testing.T) {
	ctx := context.Background()
	s, sessions, streams := newTestServer(t)
	sess, _ := sessions.Create(ctx, "standup", "u1", 2)

	a := newFakeConn("a", "u1")
	b := newFakeConn("b", "u2")
	join(t, s, a, sess.ID)
	join(t, s, b, sess.ID)

	s.drop(ctx, b)

	left := a.messagesOfType(TypeParticipantLeft)
	if len(left) != 1 {
		t.Fatalf("u1 got %d left notices, want 1", len(left))
	}
	if p := left[0].Payload.(ParticipantLeftPayload); p.ParticipantID != "u2" {
		t.Fatalf("left notice = %+v", p)
	}

	// One participant remains: session stays active.
	got, _ := sessions.Get(ctx, sess.ID)
	if !got.IsActive || len(got.Participants) != 1 {
		t.Fatalf("session after one leave: %+v", got)
	}

	// Last participant leaves: session ends, stream records stop.
	s.drop(ctx, a)
	got, _ = sessions.Get(ctx, sess.ID)
	if got.IsActive || got.EndedAt == nil {
		t.Fatalf("session should be ended: %+v", got)
	}
	if active := streams.ListBySession(ctx, sess.ID); len(active) != 0 {
		t.Fatalf("streams still active after session end: %d", len(active))
	}

	// A second drop of the same connection is a no-op.
	s.drop(ctx, a)
}

func TestLeaveOfMultiConnectedParticipantWaitsForLastConn(t *testing.T) {
	ctx := context.Background()
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(ctx, "standup", "u1", 0)

	a1 := newFakeConn("a1", "u1")
	a2 := newFakeConn("a2", "u1")
	b := newFakeConn("b", "u2")
	join(t, s, a1, sess.ID)
	join(t, s, a2, sess.ID)
	join(t, s, b, sess.ID)

	s.drop(ctx, a1)
	if n := len(b.messagesOfType(TypeParticipantLeft)); n != 0 {
		t.Fatalf("departure announced while u1 still has a live conn (%d notices)", n)
	}
	got, _ := sessions.Get(ctx, sess.ID)
	if !got.HasParticipant("u1") {
		t.Fatal("u1 removed from session while still connected")
	}

	s.drop(ctx, a2)
	if n := len(b.messagesOfType(TypeParticipantLeft)); n != 1 {
		t.Fatalf("expected exactly 1 departure notice, got %d", n)
	}
	got, _ = sessions.Get(ctx, sess.ID)
	if got.HasParticipant("u1") {
		t.Fatal("u1 still in session after last conn dropped")
	}
}

func TestRejoinAfterFullDisconnectYieldsFreshBinding(t *testing.T) {
	ctx := context.Background()
	s, sessions, _ := newTestServer(t)
	sess, _ := sessions.Create(ctx, "standup", "u1", 0)

	b := newFakeConn("b", "u2")
	join(t, s, newFakeConn("a", "u1"), sess.ID)
	join(t, s, b, sess.ID)
	s.drop(ctx, b)

	if len(s.reg.ConnectionsFor("u2")) != 0 {
		t.Fatal("u2 should be absent from the registry after disconnect")
	}

	b2 := newFakeConn("b2", "u2")
	join(t, s, b2, sess.ID)
	if len(s.reg.ConnectionsFor("u2")) != 1 {
		t.Fatal("rejoin should produce a fresh binding")
	}
	acks := b2.messagesOfType(TypeJoinAck)
	if len(acks) != 1 || !acks[0].Payload.(JoinAckPayload).Success {
		t.Fatalf("rejoin not acknowledged: %+v", acks)
	}
}
