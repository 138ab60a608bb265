package core

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/domain"
)

// Server->client events form a closed set. Every broadcast a room emits
// is one of the structs below; nothing else goes over the wire.

const (
	EventCodeUpdate     = "codeUpdate"
	EventLanguageUpdate = "languageUpdate"
	EventUserJoined     = "userJoined"
	EventUserTyping     = "userTyping"
	EventCodeResponse   = "codeResponse"
)

type codeUpdateEvent struct {
	Type   string `json:"type"`
	Buffer string `json:"buffer"`
}

type languageUpdateEvent struct {
	Type       string            `json:"type"`
	LanguageID domain.LanguageID `json:"languageId"`
}

type userJoinedEvent struct {
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

type userTypingEvent struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
}

type codeResponseEvent struct {
	Type string `json:"type"`
	ExecResult
}

// RunResult mirrors the execution service's run report. Output is the
// only field the engine relies on; the rest passes through to clients.
type RunResult struct {
	Stdout string  `json:"stdout,omitempty"`
	Stderr string  `json:"stderr,omitempty"`
	Code   int     `json:"code"`
	Signal *string `json:"signal"`
	Output string  `json:"output"`
}

// ExecResult is the structured result of one remote execution.
type ExecResult struct {
	Language string    `json:"language,omitempty"`
	Version  string    `json:"version,omitempty"`
	Run      RunResult `json:"run"`
}

func EncodeCodeUpdate(buffer string) Frame {
	return mustEncode(codeUpdateEvent{Type: EventCodeUpdate, Buffer: buffer})
}

func EncodeLanguageUpdate(id domain.LanguageID) Frame {
	return mustEncode(languageUpdateEvent{Type: EventLanguageUpdate, LanguageID: id})
}

func EncodeUserJoined(participants []string) Frame {
	return mustEncode(userJoinedEvent{Type: EventUserJoined, Participants: participants})
}

func EncodeUserTyping(name string) Frame {
	return mustEncode(userTypingEvent{Type: EventUserTyping, DisplayName: name})
}

func EncodeCodeResponse(res ExecResult) Frame {
	return mustEncode(codeResponseEvent{Type: EventCodeResponse, ExecResult: res})
}

func mustEncode(v any) Frame {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reachable with a broken event struct; never run-time data.
		log.Error().Err(err).Str("module", "core.events").Msg("event marshal")
		return Frame(`{}`)
	}
	return b
}
