// Package client is the session client adapter: it turns user actions
// into protocol intents, keeps an optimistic local copy of the editor
// buffer, and debounces the outgoing typing signal. All shared state
// still round-trips through the server; the local buffer echo is the
// only exception, and the server's broadcasts reconcile everything
// else.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultTypingDelay is how long after the last keystroke the adapter
// reports that typing stopped.
const DefaultTypingDelay = 1500 * time.Millisecond

var ErrNotJoined = errors.New("not joined to a room")

type Client struct {
	conn   *websocket.Conn
	events Events

	statePath   string
	typingDelay time.Duration

	writeMu sync.Mutex

	mu          sync.Mutex
	room        string
	name        string
	buffer      string
	language    string
	typingTimer *time.Timer

	done chan struct{}
}

type Option func(*Client)

// WithStatePath overrides where the last joined (room, name) pair is
// persisted for auto-rejoin.
func WithStatePath(path string) Option {
	return func(c *Client) { c.statePath = path }
}

func WithTypingDelay(d time.Duration) Option {
	return func(c *Client) { c.typingDelay = d }
}

// Dial connects to the server's ws endpoint and starts the read loop.
func Dial(ctx context.Context, url string, events Events, opts ...Option) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:        conn,
		events:      events,
		typingDelay: DefaultTypingDelay,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.statePath == "" {
		c.statePath = defaultStatePath()
	}

	go c.readLoop()
	return c, nil
}

// Join enters a room and persists the pair for the next startup.
func (c *Client) Join(room, name string) error {
	c.mu.Lock()
	c.room = room
	c.name = name
	c.mu.Unlock()

	if err := saveState(c.statePath, joinState{SessionID: room, DisplayName: name}); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("persist join state")
	}
	return c.sendJSON(joinIntent{Type: "join", SessionID: room, DisplayName: name})
}

// Rejoin replays the previously persisted join, if one exists.
// Reports whether anything was replayed.
func (c *Client) Rejoin() (bool, error) {
	st, ok := loadState(c.statePath)
	if !ok {
		return false, nil
	}
	return true, c.Join(st.SessionID, st.DisplayName)
}

// SetBuffer applies a local edit: optimistic echo first, then the
// codeChange intent, then the typing signals. Every keystroke emits
// "typing started" immediately and re-arms a timer that emits an
// empty-name "typing stopped" once the keystrokes pause.
func (c *Client) SetBuffer(buffer string) error {
	c.mu.Lock()
	room, name := c.room, c.name
	if room == "" {
		c.mu.Unlock()
		return ErrNotJoined
	}
	c.buffer = buffer

	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.typingDelay, func() {
		if err := c.sendJSON(typingIntent{Type: "typing", SessionID: room, DisplayName: ""}); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("typing stop signal")
		}
	})
	c.mu.Unlock()

	if err := c.sendJSON(codeChangeIntent{Type: "codeChange", SessionID: room, Buffer: buffer}); err != nil {
		return err
	}
	return c.sendJSON(typingIntent{Type: "typing", SessionID: room, DisplayName: name})
}

func (c *Client) ChangeLanguage(languageID string) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == "" {
		return ErrNotJoined
	}
	return c.sendJSON(languageChangeIntent{Type: "languageChange", SessionID: room, LanguageID: languageID})
}

// Run submits the current local buffer and language for remote
// execution. The result comes back to the whole room as a
// codeResponse broadcast.
func (c *Client) Run(version, stdin string) error {
	c.mu.Lock()
	room, buffer, language := c.room, c.buffer, c.language
	c.mu.Unlock()
	if room == "" {
		return ErrNotJoined
	}
	return c.sendJSON(compileCodeIntent{
		Type:       "compileCode",
		SessionID:  room,
		Buffer:     buffer,
		LanguageID: language,
		Version:    version,
		Stdin:      stdin,
	})
}

// Leave exits the current room and clears the persisted auto-rejoin
// pair. Safe to call when not joined.
func (c *Client) Leave() error {
	c.mu.Lock()
	c.room = ""
	c.name = ""
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()

	clearState(c.statePath)
	return c.sendJSON(leaveRoomIntent{Type: "leaveRoom"})
}

// Buffer returns the local view of the shared buffer.
func (c *Client) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

func (c *Client) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// Done closes when the read loop exits, normally because the server or
// Close dropped the connection.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) sendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "client").Msg("read loop")
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad server event")
		return
	}

	switch ev.Type {
	case "codeUpdate":
		c.mu.Lock()
		c.buffer = ev.Buffer
		c.mu.Unlock()
		if c.events.OnCodeUpdate != nil {
			c.events.OnCodeUpdate(ev.Buffer)
		}
	case "languageUpdate":
		c.mu.Lock()
		c.language = ev.LanguageID
		c.mu.Unlock()
		if c.events.OnLanguageUpdate != nil {
			c.events.OnLanguageUpdate(ev.LanguageID)
		}
	case "userJoined":
		if c.events.OnUserJoined != nil {
			c.events.OnUserJoined(ev.Participants)
		}
	case "userTyping":
		if c.events.OnUserTyping != nil {
			c.events.OnUserTyping(ev.DisplayName)
		}
	case "codeResponse":
		if c.events.OnCodeResponse != nil {
			c.events.OnCodeResponse(ev.ExecResult)
		}
	default:
		log.Warn().Str("module", "client").Str("type", ev.Type).Msg("unknown server event")
	}
}
