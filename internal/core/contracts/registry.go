package contracts

import (
	"context"
)

// Registry is the in-process routing table for rooms: one private room per
// user, one room per conversation. It replaces the pub/sub rooms the
// transport layer would otherwise provide.
type Registry interface {
	// Register adds a connection and joins it to its user's private room.
	Register(c Client)
	// Unregister removes the connection from every room it joined.
	Unregister(c Client)
	// Join adds the connection to a conversation room.
	Join(roomID string, c Client)
	// JoinUser adds every live connection of the user to the room, so
	// devices that connected before the room existed start receiving its
	// broadcasts without a round trip.
	JoinUser(roomID string, userID string)
	Leave(roomID string, c Client)
	// ToRoom fans an event out to every connection in the room.
	ToRoom(ctx context.Context, roomID string, event string, data any)
	// ToUser targets all of a user's connections via their private room.
	ToUser(ctx context.Context, userID string, event string, data any)
	// ToClient targets one connection only.
	ToClient(ctx context.Context, c Client, event string, data any)
}

// Client is the minimal surface the registry needs from a connection. A user
// on several devices holds several Clients with distinct connection ids.
type Client interface {
	ID() string
	UserID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
