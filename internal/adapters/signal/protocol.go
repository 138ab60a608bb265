package signal

import "github.com/sharepad/sharepad/internal/domain"

// Client->server intents form a closed set, decoded at this boundary.
// Anything that does not fit one of these shapes never reaches the
// engine.

const (
	intentJoin           = "join"
	intentCodeChange     = "codeChange"
	intentLanguageChange = "languageChange"
	intentCompileCode    = "compileCode"
	intentTyping         = "typing"
	intentLeaveRoom      = "leaveRoom"
)

type joinIntent struct {
	Type        string        `json:"type"`
	SessionID   domain.RoomID `json:"sessionId"`
	DisplayName string        `json:"displayName"`
}

type codeChangeIntent struct {
	Type      string        `json:"type"`
	SessionID domain.RoomID `json:"sessionId"`
	Buffer    string        `json:"buffer"`
}

type languageChangeIntent struct {
	Type       string            `json:"type"`
	SessionID  domain.RoomID     `json:"sessionId"`
	LanguageID domain.LanguageID `json:"languageId"`
}

type compileCodeIntent struct {
	Type       string            `json:"type"`
	SessionID  domain.RoomID     `json:"sessionId"`
	Buffer     string            `json:"buffer"`
	LanguageID domain.LanguageID `json:"languageId"`
	Version    string            `json:"version"`
	Stdin      string            `json:"stdin"`
}

type typingIntent struct {
	Type        string        `json:"type"`
	SessionID   domain.RoomID `json:"sessionId"`
	DisplayName string        `json:"displayName"`
}

// leaveRoom carries no payload; the binding tells us what to leave.
