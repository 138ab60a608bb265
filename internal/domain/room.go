package domain

// RoomID is the client-chosen identifier of a shared editing session.
// Opaque to the server; two clients naming the same id share a room.
type RoomID string
