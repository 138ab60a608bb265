package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharepad/sharepad/internal/core"
	"github.com/sharepad/sharepad/internal/domain"
	execsvc "github.com/sharepad/sharepad/internal/exec"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) events() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range f.events() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type fakeRunner struct {
	mu      sync.Mutex
	res     core.ExecResult
	err     error
	calls   int
	lastReq execsvc.Request
	gate    chan struct{} // when non-nil, Execute blocks until closed
}

func (r *fakeRunner) Execute(ctx context.Context, req execsvc.Request) (core.ExecResult, error) {
	r.mu.Lock()
	r.calls++
	r.lastReq = req
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return r.res, r.err
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestEngine(t *testing.T, runner Runner, opts ...Option) (*Engine, *core.RoomStore) {
	t.Helper()
	if runner == nil {
		runner = &fakeRunner{}
	}
	rooms := core.NewRoomStore()
	return NewEngine(rooms, NewRegistry(), runner, opts...), rooms
}

func bind(e *Engine, sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	e.Registry().BindSignal(sid, conn, nil)
	return conn
}

func names(m map[string]any) []string {
	raw := m["participants"].([]any)
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = v.(string)
	}
	return out
}

func TestJoinCreatesRoomWithDefaults(t *testing.T) {
	e, rooms := newTestEngine(t, nil)
	alice := bind(e, "sid-a")

	e.Join("sid-a", "r1", "alice")

	room, ok := rooms.Lookup("r1")
	require.True(t, ok, "join must create the room")
	buffer, lang := room.Snapshot()
	assert.Equal(t, domain.DefaultLanguage, lang)
	assert.Equal(t, "// Write your Java code here", buffer)

	events := alice.events()
	require.Len(t, events, 3)
	assert.Equal(t, "codeUpdate", events[0]["type"])
	assert.Equal(t, "// Write your Java code here", events[0]["buffer"])
	assert.Equal(t, "languageUpdate", events[1]["type"])
	assert.Equal(t, "java", events[1]["languageId"])
	assert.Equal(t, []string{"alice"}, names(events[2]))
}

func TestJoinFromUnregisteredConnectionIsNoop(t *testing.T) {
	e, rooms := newTestEngine(t, nil)

	e.Join("ghost", "r1", "casper")

	_, ok := rooms.Lookup("r1")
	assert.False(t, ok, "unregistered connections must not create rooms")
}

func TestJoinSwitchesRooms(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	alice := bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Join("sid-a", "r2", "alice")

	// Old room heard the departure.
	joins := bob.ofType("userJoined")
	require.NotEmpty(t, joins)
	assert.Equal(t, []string{"bob"}, names(joins[len(joins)-1]))

	// New binding points at r2.
	roomID, name, ok := e.Registry().RoomOf("sid-a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r2"), roomID)
	assert.Equal(t, "alice", name)

	// Mover got a fresh snapshot for the new room.
	snaps := alice.ofType("codeUpdate")
	assert.Len(t, snaps, 2)
}

func TestNewRoomIgnoresJoinersPreviousLanguage(t *testing.T) {
	e, rooms := newTestEngine(t, nil)
	bind(e, "sid-a")

	e.Join("sid-a", "r1", "alice")
	e.LanguageChange("sid-a", "r1", domain.LangPython)
	e.Join("sid-a", "r2", "alice")

	room, ok := rooms.Lookup("r2")
	require.True(t, ok)
	_, lang := room.Snapshot()
	assert.Equal(t, domain.DefaultLanguage, lang, "a fresh room starts on the default language, not the joiner's last one")
}

func TestLeaveClearsBindingAndAnnounces(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Leave("sid-a")

	_, _, ok := e.Registry().RoomOf("sid-a")
	assert.False(t, ok, "binding should be cleared")

	// Exactly one broadcast with just bob, and it is the last one.
	joins := bob.ofType("userJoined")
	solo := 0
	for _, j := range joins {
		if len(names(j)) == 1 && names(j)[0] == "bob" {
			solo++
		}
	}
	assert.Equal(t, 1, solo)
	assert.Equal(t, []string{"bob"}, names(joins[len(joins)-1]))
}

func TestLeaveAndDisconnectCommute(t *testing.T) {
	e, rooms := newTestEngine(t, nil)
	bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")

	baseline := len(bob.ofType("userJoined"))

	e.Leave("sid-a")
	e.OnDisconnect("sid-a")
	e.Leave("sid-a")

	room, _ := rooms.Lookup("r1")
	assert.Equal(t, []string{"bob"}, room.Participants())
	assert.Equal(t, baseline+1, len(bob.ofType("userJoined")), "only the first leave broadcasts")
}

func TestDisconnectCancelsConnectionContext(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e.Registry().BindSignal("sid-a", &fakeConn{}, cancel)

	e.Join("sid-a", "r1", "alice")
	require.NoError(t, ctx.Err(), "pumps run until disconnect")

	e.OnDisconnect("sid-a")

	select {
	case <-ctx.Done():
	default:
		t.Fatal("disconnect must cancel the connection context")
	}

	e.OnDisconnect("sid-a") // second disconnect finds no binding, no panic
}

func TestDisconnectWithoutJoin(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	bind(e, "sid-a")

	e.OnDisconnect("sid-a") // must not panic or broadcast
	e.OnDisconnect("sid-a")
}

func TestCodeChangeUnknownRoomIsNoop(t *testing.T) {
	e, rooms := newTestEngine(t, nil)

	e.CodeChange("sid-a", "nope", "text")
	e.LanguageChange("sid-a", "nope", domain.LangGo)
	e.Typing("sid-a", "nope", "alice")

	assert.Empty(t, rooms.List(), "intents against unknown rooms must not create them")
}

func TestCodeChangeSenderExcluded(t *testing.T) {
	e, rooms := newTestEngine(t, nil)
	alice := bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")

	aliceBefore := len(alice.ofType("codeUpdate"))
	e.CodeChange("sid-a", "r1", "edit 1")
	e.CodeChange("sid-a", "r1", "edit 2")

	assert.Equal(t, aliceBefore, len(alice.ofType("codeUpdate")), "sender never hears its own edits")
	updates := bob.ofType("codeUpdate")
	assert.Equal(t, "edit 2", updates[len(updates)-1]["buffer"])

	room, _ := rooms.Lookup("r1")
	buffer, _ := room.Snapshot()
	assert.Equal(t, "edit 2", buffer, "sender's view equals the last value it sent")
}

func TestCompileSuccessCommitsAndBroadcasts(t *testing.T) {
	runner := &fakeRunner{res: core.ExecResult{
		Language: "go",
		Version:  "1.22.0",
		Run:      core.RunResult{Output: "hello\n"},
	}}
	e, rooms := newTestEngine(t, runner)
	alice := bind(e, "sid-a")

	e.Join("sid-a", "r1", "alice")
	e.Compile("r1", execsvc.Request{Language: domain.LangGo, Version: "1.22.0", Source: "package main", Stdin: "in"})

	require.Eventually(t, func() bool {
		return len(alice.ofType("codeResponse")) == 1
	}, time.Second, 5*time.Millisecond)

	resp := alice.ofType("codeResponse")[0]
	run := resp["run"].(map[string]any)
	assert.Equal(t, "hello\n", run["output"])
	assert.Equal(t, "go", resp["language"])

	room, _ := rooms.Lookup("r1")
	assert.Equal(t, "hello\n", room.LastOutput())
	assert.Equal(t, execsvc.Request{Language: domain.LangGo, Version: "1.22.0", Source: "package main", Stdin: "in"}, runner.lastReq)
}

func TestCompileFailureYieldsSyntheticResult(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection refused")}
	e, rooms := newTestEngine(t, runner)
	alice := bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Compile("r1", execsvc.Request{Language: domain.LangPython})

	for _, conn := range []*fakeConn{alice, bob} {
		require.Eventually(t, func() bool {
			return len(conn.ofType("codeResponse")) == 1
		}, time.Second, 5*time.Millisecond, "failure results reach the whole room")
		run := conn.ofType("codeResponse")[0]["run"].(map[string]any)
		assert.NotEmpty(t, run["output"])
	}

	room, _ := rooms.Lookup("r1")
	assert.Equal(t, failedRunOutput, room.LastOutput(), "lastOutput is committed whole, never torn")
}

func TestCompileUnknownRoomNeverCallsService(t *testing.T) {
	runner := &fakeRunner{}
	e, _ := newTestEngine(t, runner)

	e.Compile("nope", execsvc.Request{})

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runner.callCount())
}

func TestCompileDoesNotBlockEdits(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate, res: core.ExecResult{Run: core.RunResult{Output: "late"}}}
	e, rooms := newTestEngine(t, runner)
	bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Compile("r1", execsvc.Request{Language: domain.LangJava})

	// The run is in flight; edits must go through immediately.
	e.CodeChange("sid-a", "r1", "typed while compiling")
	updates := bob.ofType("codeUpdate")
	require.NotEmpty(t, updates)
	assert.Equal(t, "typed while compiling", updates[len(updates)-1]["buffer"])

	close(gate)
	require.Eventually(t, func() bool {
		room, _ := rooms.Lookup("r1")
		return room.LastOutput() == "late"
	}, time.Second, 5*time.Millisecond)
}

func TestLateResultReachesRemainingParticipants(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate, res: core.ExecResult{Run: core.RunResult{Output: "done"}}}
	e, _ := newTestEngine(t, runner)
	bind(e, "sid-a")
	bob := bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Compile("r1", execsvc.Request{})
	e.Leave("sid-a") // requester gone before the result lands

	close(gate)
	require.Eventually(t, func() bool {
		return len(bob.ofType("codeResponse")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEmptyRoomRetainedByDefault(t *testing.T) {
	e, rooms := newTestEngine(t, nil)
	bind(e, "sid-a")

	e.Join("sid-a", "r1", "alice")
	e.Leave("sid-a")

	_, ok := rooms.Lookup("r1")
	assert.True(t, ok, "rooms linger when eviction is off")
}

func TestRejoinSameRoomKeepsState(t *testing.T) {
	e, rooms := newTestEngine(t, nil, WithEmptyRoomEviction())
	alice := bind(e, "sid-a")

	e.Join("sid-a", "r1", "alice")
	e.LanguageChange("sid-a", "r1", domain.LangPython)
	e.CodeChange("sid-a", "r1", "print('hi')")

	e.Join("sid-a", "r1", "alice")

	room, ok := rooms.Lookup("r1")
	require.True(t, ok, "re-sending join for the bound room must not evict it")
	buffer, lang := room.Snapshot()
	assert.Equal(t, "print('hi')", buffer, "room state survives a same-room rejoin")
	assert.Equal(t, domain.LangPython, lang)
	assert.Equal(t, []string{"alice"}, room.Participants())

	// And no departure round trip: just the rejoin snapshot.
	snaps := alice.ofType("codeUpdate")
	assert.Equal(t, "print('hi')", snaps[len(snaps)-1]["buffer"])
}

func TestEmptyRoomEvictionOption(t *testing.T) {
	e, rooms := newTestEngine(t, nil, WithEmptyRoomEviction())
	bind(e, "sid-a")
	bind(e, "sid-b")

	e.Join("sid-a", "r1", "alice")
	e.Join("sid-b", "r1", "bob")
	e.Leave("sid-a")

	_, ok := rooms.Lookup("r1")
	require.True(t, ok, "room with members stays")

	e.OnDisconnect("sid-b")
	_, ok = rooms.Lookup("r1")
	assert.False(t, ok, "empty room is dropped when eviction is on")
}
