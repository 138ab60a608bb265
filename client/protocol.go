package client

// Wire shapes of the room event protocol. The SDK keeps its own copies
// so importing it never drags in server internals.

type RunResult struct {
	Stdout string  `json:"stdout,omitempty"`
	Stderr string  `json:"stderr,omitempty"`
	Code   int     `json:"code"`
	Signal *string `json:"signal"`
	Output string  `json:"output"`
}

// ExecResult is one remote execution outcome as broadcast to the room.
type ExecResult struct {
	Language string    `json:"language,omitempty"`
	Version  string    `json:"version,omitempty"`
	Run      RunResult `json:"run"`
}

// Events holds the application callbacks. All fields are optional;
// callbacks run on the read-loop goroutine and must not block.
type Events struct {
	OnCodeUpdate     func(buffer string)
	OnLanguageUpdate func(languageID string)
	OnUserJoined     func(participants []string)
	OnUserTyping     func(displayName string)
	OnCodeResponse   func(res ExecResult)
}

type joinIntent struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type codeChangeIntent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Buffer    string `json:"buffer"`
}

type languageChangeIntent struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	LanguageID string `json:"languageId"`
}

type compileCodeIntent struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	Buffer     string `json:"buffer"`
	LanguageID string `json:"languageId"`
	Version    string `json:"version"`
	Stdin      string `json:"stdin"`
}

type typingIntent struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

type leaveRoomIntent struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type         string   `json:"type"`
	Buffer       string   `json:"buffer"`
	LanguageID   string   `json:"languageId"`
	Participants []string `json:"participants"`
	DisplayName  string   `json:"displayName"`
	ExecResult
}
