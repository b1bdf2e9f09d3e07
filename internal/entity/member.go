package entity

import "time"

// Member is one live connection inside a room. The ID is the connection
// handle and is unique per connection; the display name is chosen by
// the user and carries no uniqueness guarantee.
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"username"`
	Host      bool   `json:"is_host"`
	Spectator bool   `json:"spectator,omitempty"`
}

// MatchRecord is the archived summary of a finished game.
type MatchRecord struct {
	RoomID     string        `json:"room_id"`
	Kind       string        `json:"kind"`
	Winner     string        `json:"winner"`
	Rankings   []PolyRanking `json:"rankings,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}
