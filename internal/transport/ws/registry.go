package ws

import "sync"

// Member is one participant visible in a session, with a representative
// connection for addressing.
type Member struct {
	ParticipantID string
	DisplayName   string
	Conn          Conn
}

type binding struct {
	participantID string
	sessionID     string
	displayName   string
}

// Registry owns the participant <-> connection <-> session relation. A
// participant may hold several live connections (tabs, devices); a
// connection is bound to at most one session. All mutations go through one
// mutex; callers never send on connections while it is held.
type Registry struct {
	mu            sync.RWMutex
	byParticipant map[string]map[Conn]struct{}
	byConn        map[Conn]binding
}

func NewRegistry() *Registry {
	return &Registry{
		byParticipant: make(map[string]map[Conn]struct{}),
		byConn:        make(map[Conn]binding),
	}
}

// Bind atomically snapshots the session's current members and binds the
// connection. The snapshot excludes the joining participant and is taken
// before the bind, so the caller can announce the join both ways without a
// window where concurrent joins on the same session miss each other.
// Repeating an identical bind is a no-op; the member set is still returned.
// It reports whether this is the participant's first live connection in the
// session.
func (r *Registry) Bind(participantID string, c Conn, sessionID, displayName string) (existing []Member, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing = r.membersLocked(sessionID, participantID)

	first = true
	for conn, b := range r.byConn {
		if conn != c && b.participantID == participantID && b.sessionID == sessionID {
			first = false
			break
		}
	}

	set, ok := r.byParticipant[participantID]
	if !ok {
		set = make(map[Conn]struct{})
		r.byParticipant[participantID] = set
	}
	set[c] = struct{}{}
	r.byConn[c] = binding{participantID: participantID, sessionID: sessionID, displayName: displayName}

	return existing, first
}

// Unbind removes the connection wherever it is registered. The participant
// entry disappears with its last connection. Unknown connections are a
// no-op returning zero values: disconnects race with other cleanup and must
// never fail.
func (r *Registry) Unbind(c Conn) (participantID, sessionID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byConn[c]
	if !ok {
		return "", "", false
	}
	delete(r.byConn, c)

	if set, ok := r.byParticipant[b.participantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byParticipant, b.participantID)
		}
	}

	// last is scoped to the session the connection was bound to.
	last = true
	for _, other := range r.byConn {
		if other.participantID == b.participantID && other.sessionID == b.sessionID {
			last = false
			break
		}
	}

	return b.participantID, b.sessionID, last
}

// ConnectionsFor returns every live connection of the participant. Empty for
// unknown participants.
func (r *Registry) ConnectionsFor(participantID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byParticipant[participantID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SessionOf returns the session the connection is currently bound to.
func (r *Registry) SessionOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byConn[c]
	if !ok {
		return "", false
	}
	return b.sessionID, true
}

// SessionMembers snapshots the participants with at least one live
// connection bound to the session.
func (r *Registry) SessionMembers(sessionID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.membersLocked(sessionID, "")
}

func (r *Registry) membersLocked(sessionID, exclude string) []Member {
	seen := make(map[string]struct{})
	var out []Member
	for c, b := range r.byConn {
		if b.sessionID != sessionID || b.participantID == exclude {
			continue
		}
		if _, dup := seen[b.participantID]; dup {
			continue
		}
		seen[b.participantID] = struct{}{}
		out = append(out, Member{ParticipantID: b.participantID, DisplayName: b.displayName, Conn: c})
	}
	return out
}
