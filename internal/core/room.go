package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/domain"
)

// Room is the authoritative state of one shared editing session. Every
// intent-level operation mutates and fans out under the same lock, so
// concurrent handlers for the same room never interleave their
// read-modify-broadcast sequences.
//
// Participant names form an ordered set: duplicate names collapse into
// one membership entry, matching presence semantics, while connections
// stay distinct in the members map.
type Room struct {
	id domain.RoomID

	mu           sync.Mutex
	participants []string
	buffer       string
	language     domain.LanguageID
	lastOutput   string
	members      map[SessionID]roomMember
}

type roomMember struct {
	name string
	conn SignalConnection
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:           id,
		participants: []string{},
		buffer:       domain.Snippet(domain.DefaultLanguage),
		language:     domain.DefaultLanguage,
		members:      make(map[SessionID]roomMember),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

// Join registers the connection, adds the display name to the
// participant set, privately replays the current buffer and language to
// the joiner, and announces the updated participant list to the whole
// room, joiner included.
func (r *Room) Join(sid SessionID, name string, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[sid] = roomMember{name: name, conn: conn}
	r.addName(name)

	r.send(conn, EncodeCodeUpdate(r.buffer))
	r.send(conn, EncodeLanguageUpdate(r.language))
	r.fanout("", EncodeUserJoined(r.snapshotNames()))

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("name", name).Msg("member joined")
}

// Leave drops the connection's membership, removes its display name
// from the participant set and announces the shrunken list. Unknown
// sids are ignored, which makes leave and disconnect idempotent.
// Reports whether the room is now empty.
func (r *Room) Leave(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[sid]
	if !ok {
		return len(r.members) == 0
	}
	delete(r.members, sid)
	r.removeName(m.name)

	r.fanout("", EncodeUserJoined(r.snapshotNames()))

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("name", m.name).Msg("member left")
	return len(r.members) == 0
}

// SetBuffer replaces the shared buffer verbatim (last write wins) and
// pushes it to everyone except the sender, who already has it locally.
func (r *Room) SetBuffer(from SessionID, buffer string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = buffer
	r.fanout(from, EncodeCodeUpdate(buffer))
}

// SetLanguage switches the room language and resets the buffer to that
// language's template, discarding current edits. Unknown languages
// reset to an empty buffer. Both updates go to the whole room,
// sender included.
func (r *Room) SetLanguage(id domain.LanguageID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.language = id
	r.buffer = domain.Snippet(id)
	r.fanout("", EncodeLanguageUpdate(id))
	r.fanout("", EncodeCodeUpdate(r.buffer))

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("language", string(id)).Msg("language changed")
}

// Typing relays a typing signal to everyone except the sender. An empty
// name means the sender stopped typing; it is relayed as-is.
func (r *Room) Typing(from SessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fanout(from, EncodeUserTyping(name))
}

// CommitExec stores the execution output and broadcasts the full result
// to the whole room. Called after the remote call returns, never while
// it is in flight, so the room lock is held only for the commit.
func (r *Room) CommitExec(res ExecResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastOutput = res.Run.Output
	r.fanout("", EncodeCodeResponse(res))
}

// Snapshot returns the current buffer and language.
func (r *Room) Snapshot() (string, domain.LanguageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer, r.language
}

// Participants returns the ordered participant names.
func (r *Room) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotNames()
}

// LastOutput returns the most recent execution output, which may be
// stale relative to the buffer.
func (r *Room) LastOutput() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOutput
}

func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// fanout delivers a frame to every member except the one named by skip.
// Pass an empty skip to reach the whole room. Slow consumers drop the
// frame rather than stalling the room.
func (r *Room) fanout(skip SessionID, f Frame) {
	sent, dropped := 0, 0
	for sid, m := range r.members {
		if sid == skip {
			continue
		}
		if err := m.conn.TrySend(f); err != nil {
			dropped++
			continue
		}
		sent++
	}
	if dropped > 0 {
		log.Warn().Str("module", "core.room").Str("room", string(r.id)).Int("dropped", dropped).Msg("slow consumers dropped frame")
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Int("sent_to", sent).Msg("broadcast")
}

func (r *Room) send(conn SignalConnection, f Frame) {
	if err := conn.TrySend(f); err != nil {
		log.Warn().Str("module", "core.room").Str("room", string(r.id)).Err(err).Msg("direct send dropped")
	}
}

func (r *Room) addName(name string) {
	for _, n := range r.participants {
		if n == name {
			return
		}
	}
	r.participants = append(r.participants, name)
}

func (r *Room) removeName(name string) {
	for i, n := range r.participants {
		if n == name {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return
		}
	}
}

func (r *Room) snapshotNames() []string {
	out := make([]string, len(r.participants))
	copy(out, r.participants)
	return out
}
