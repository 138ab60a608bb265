package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/core"
	execsvc "github.com/sharepad/sharepad/internal/exec"
)

func (ctl *Controller) handleJoin(sid core.SessionID, data []byte) {
	var p joinIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.SessionID)).Str("name", p.DisplayName).Msg("join")
	ctl.Engine.Join(sid, p.SessionID, p.DisplayName)
}

func (ctl *Controller) handleCodeChange(sid core.SessionID, data []byte) {
	var p codeChangeIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad codeChange payload")
		return
	}
	ctl.Engine.CodeChange(sid, p.SessionID, p.Buffer)
}

func (ctl *Controller) handleLanguageChange(sid core.SessionID, data []byte) {
	var p languageChangeIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad languageChange payload")
		return
	}
	ctl.Engine.LanguageChange(sid, p.SessionID, p.LanguageID)
}

func (ctl *Controller) handleCompileCode(sid core.SessionID, data []byte) {
	var p compileCodeIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad compileCode payload")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.SessionID)).Str("language", string(p.LanguageID)).Msg("compile")
	ctl.Engine.Compile(p.SessionID, execsvc.Request{
		Language: p.LanguageID,
		Version:  p.Version,
		Source:   p.Buffer,
		Stdin:    p.Stdin,
	})
}

func (ctl *Controller) handleTyping(sid core.SessionID, data []byte) {
	var p typingIntent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad typing payload")
		return
	}
	ctl.Engine.Typing(sid, p.SessionID, p.DisplayName)
}

func (ctl *Controller) handleLeaveRoom(sid core.SessionID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave room")
	ctl.Engine.Leave(sid)
}
