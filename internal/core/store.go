package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/domain"
)

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID           domain.RoomID     `json:"id"`
	Participants []string          `json:"participants"`
	Language     domain.LanguageID `json:"language"`
	MemberCount  int               `json:"member_count"`
}

// RoomStore owns the authoritative room map. Rooms come into existence
// only through GetOrCreate on a join; every other intent resolves rooms
// through Lookup and treats a miss as a no-op.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomID]*Room),
	}
}

func (s *RoomStore) GetOrCreate(id domain.RoomID) *Room {
	s.mu.RLock()
	room, ok := s.rooms[id]
	s.mu.RUnlock()

	if ok {
		return room
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok = s.rooms[id]; !ok {
		room = NewRoom(id)
		s.rooms[id] = room
		log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room created")
	}
	return room
}

func (s *RoomStore) Lookup(id domain.RoomID) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// Drop removes a room from the store. Used by the engine when empty
// room eviction is enabled; otherwise rooms linger until shutdown.
func (s *RoomStore) Drop(id domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; ok {
		delete(s.rooms, id)
		log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room dropped")
	}
}

func (s *RoomStore) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for _, r := range s.rooms {
		_, lang := r.Snapshot()
		out = append(out, RoomInfo{
			ID:           r.ID(),
			Participants: r.Participants(),
			Language:     lang,
			MemberCount:  r.memberCount(),
		})
	}
	return out
}
