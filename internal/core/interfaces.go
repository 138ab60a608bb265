package core

// Frame is an encoded wire event ready for transport.
type Frame []byte

// SessionID identifies one live connection, not a user. Two tabs of the
// same browser get two session ids.
type SessionID string

// SignalConnection abstracts for a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
