// Package event describes what happens to a session during its lifetime.
// Events carry no message bodies: they are an audit of connections, not chat history.
package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ConnectedType    Type = "CONNECTED"
	JoinedType       Type = "JOINED"
	RejectedType     Type = "REJECTED"
	DisconnectedType Type = "DISCONNECTED"
)

// Event is a single session lifecycle fact.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	SessionID  uuid.UUID `json:"session_id"`
	RemoteAddr string    `json:"remote_addr"`
	Name       string    `json:"name,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newEvent(t Type, sessionID uuid.UUID, remoteAddr string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now().UTC(),
	}
}

func Connected(sessionID uuid.UUID, remoteAddr string) Event {
	return newEvent(ConnectedType, sessionID, remoteAddr)
}

func Joined(sessionID uuid.UUID, remoteAddr, name string) Event {
	e := newEvent(JoinedType, sessionID, remoteAddr)
	e.Name = name
	return e
}

// Rejected records a refused registration attempt and why it was refused.
func Rejected(sessionID uuid.UUID, remoteAddr, reason string) Event {
	e := newEvent(RejectedType, sessionID, remoteAddr)
	e.Reason = reason
	return e
}

func Disconnected(sessionID uuid.UUID, remoteAddr, name, reason string) Event {
	e := newEvent(DisconnectedType, sessionID, remoteAddr)
	e.Name = name
	e.Reason = reason
	return e
}
