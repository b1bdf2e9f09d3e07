package websocket

import (
	"encoding/json"

	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
	"github.com/hypergrid-games/hypergrid-backend/internal/room"
)

// Message is one wire frame: an action name and its payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload is the shared request/response body. Fields are optional;
// each action reads the ones it needs.
type Payload struct {
	RoomID   string `json:"room_id,omitempty"`
	Username string `json:"username,omitempty"`
	Kind     string `json:"kind,omitempty"`

	TargetID string `json:"target_id,omitempty"`
	Role     string `json:"role,omitempty"`

	Board *int `json:"board,omitempty"`
	Cell  *int `json:"cell,omitempty"`

	Member *entity.Member  `json:"member,omitempty"`
	Room   *room.Snapshot  `json:"room,omitempty"`
	Game   json.RawMessage `json:"game,omitempty"`
}
