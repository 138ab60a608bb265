package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/core"
	"github.com/sharepad/sharepad/internal/domain"
)

// bindingEntry is the per-connection record: the transport endpoint
// plus the (room, displayName) pair the connection is bound to, if any.
// It lives here, not in the room, so disconnect can always resolve
// "which room do I leave" even after the room itself is gone.
type bindingEntry struct {
	Conn   core.SignalConnection
	Room   domain.RoomID
	Name   string
	Cancel context.CancelFunc
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*bindingEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*bindingEntry),
	}
}

// BindSignal registers a fresh connection with no room binding yet.
func (r *Registry) BindSignal(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &bindingEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// SetRoom rebinds the connection to a new (room, displayName) pair.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Room = room
	e.Name = name
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Str("name", name).Msg("bound to room")
	return true
}

// RoomOf returns the connection's current binding. ok is false for
// unknown sids and for connections not currently in a room.
func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", "", false
	}
	return e.Room, e.Name, true
}

// ClearRoom drops the room binding but keeps the connection registered.
func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Room = ""
		e.Name = ""
	}
}

// Unbind forgets the connection entirely.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// Cancel fires the connection's cancel func, tearing down its pumps.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
