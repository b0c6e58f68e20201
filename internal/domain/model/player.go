package model

import "time"

// Player is a profile records are credited to. IDs grow with registration
// order, which is also the ranking tie-breaker.
type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"created_at"`
}
