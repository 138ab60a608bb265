// Package app holds the room session engine: the one place that
// validates intents and mutates authoritative room state. Adapters
// decode wire payloads and call in; rooms fan the reactions out.
package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/core"
	"github.com/sharepad/sharepad/internal/domain"
	execsvc "github.com/sharepad/sharepad/internal/exec"
)

// Runner is the remote execution collaborator. Implemented by
// exec.Client; tests swap in fakes.
type Runner interface {
	Execute(ctx context.Context, req execsvc.Request) (core.ExecResult, error)
}

// failedRunOutput is what clients see when the execution service is
// unreachable or errors. Never a protocol-level error.
const failedRunOutput = "Error during compilation."

type Engine struct {
	rooms      *core.RoomStore
	reg        *Registry
	runner     Runner
	evictEmpty bool
}

type Option func(*Engine)

// WithEmptyRoomEviction drops rooms from the store once their last
// member leaves. Off by default: empty rooms linger, matching the
// no-eviction behavior rooms had historically.
func WithEmptyRoomEviction() Option {
	return func(e *Engine) { e.evictEmpty = true }
}

func NewEngine(rooms *core.RoomStore, reg *Registry, runner Runner, opts ...Option) *Engine {
	e := &Engine{
		rooms:  rooms,
		reg:    reg,
		runner: runner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry { return e.reg }

// Rooms returns a read-only view of every live room.
func (e *Engine) Rooms() []core.RoomInfo { return e.rooms.List() }

// Join binds the connection to a room, creating it on first join with
// the default language and its template. A connection already bound
// elsewhere leaves its old room first, and the old room hears about it
// before the new room hears the join.
func (e *Engine) Join(sid core.SessionID, roomID domain.RoomID, name string) {
	conn, ok := e.reg.Conn(sid)
	if !ok {
		log.Warn().Str("module", "app.engine").Str("sid", string(sid)).Msg("join from unregistered connection")
		return
	}

	// Re-joining the bound room is not a switch: no departure, and the
	// room's state survives untouched.
	if oldRoom, _, bound := e.reg.RoomOf(sid); bound && oldRoom != roomID {
		if room, ok := e.rooms.Lookup(oldRoom); ok {
			empty := room.Leave(sid)
			e.maybeEvict(oldRoom, empty)
		}
	}

	room := e.rooms.GetOrCreate(roomID)
	e.reg.SetRoom(sid, roomID, name)
	room.Join(sid, name, conn)
}

// CodeChange replaces the room buffer, last write wins. Unknown rooms
// are a silent no-op.
func (e *Engine) CodeChange(sid core.SessionID, roomID domain.RoomID, buffer string) {
	room, ok := e.rooms.Lookup(roomID)
	if !ok {
		return
	}
	room.SetBuffer(sid, buffer)
}

// LanguageChange switches the room language, resetting the buffer to
// the language template. Unknown rooms are a silent no-op.
func (e *Engine) LanguageChange(sid core.SessionID, roomID domain.RoomID, id domain.LanguageID) {
	room, ok := e.rooms.Lookup(roomID)
	if !ok {
		return
	}
	room.SetLanguage(id)
}

// Typing relays a typing signal, unthrottled, to the rest of the room.
// Debouncing is the client's job.
func (e *Engine) Typing(sid core.SessionID, roomID domain.RoomID, name string) {
	room, ok := e.rooms.Lookup(roomID)
	if !ok {
		return
	}
	room.Typing(sid, name)
}

// Compile runs the submitted snapshot against the execution service in
// its own goroutine; no room lock is held while the call is in flight,
// so edits arriving meanwhile are never blocked by it. The result, or a
// synthetic failure result, is committed and broadcast whenever the
// call comes back, to whoever is still in the room. There is no
// cancellation of in-flight runs.
func (e *Engine) Compile(roomID domain.RoomID, req execsvc.Request) {
	if _, ok := e.rooms.Lookup(roomID); !ok {
		return
	}

	go func() {
		res, err := e.runner.Execute(context.Background(), req)
		if err != nil {
			log.Warn().Str("module", "app.engine").Str("room", string(roomID)).Err(err).Msg("execution failed")
			res = core.ExecResult{Run: core.RunResult{Output: failedRunOutput}}
		}
		room, ok := e.rooms.Lookup(roomID)
		if !ok {
			return
		}
		room.CommitExec(res)
	}()
}

// Leave removes the connection from its bound room, if any, and clears
// the binding. Idempotent: repeated leaves, or leave without a join,
// do nothing.
func (e *Engine) Leave(sid core.SessionID) {
	roomID, _, bound := e.reg.RoomOf(sid)
	if !bound {
		return
	}
	if room, ok := e.rooms.Lookup(roomID); ok {
		empty := room.Leave(sid)
		e.maybeEvict(roomID, empty)
	}
	e.reg.ClearRoom(sid)
}

// OnDisconnect is the transport-level leave: same room effect as an
// explicit Leave, then the connection's pumps are cancelled and the
// record itself is forgotten.
func (e *Engine) OnDisconnect(sid core.SessionID) {
	e.Leave(sid)
	e.reg.Cancel(sid)
	e.reg.Unbind(sid)
}

func (e *Engine) maybeEvict(roomID domain.RoomID, empty bool) {
	if e.evictEmpty && empty {
		e.rooms.Drop(roomID)
	}
}
