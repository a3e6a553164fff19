package models

import "time"

// Registration is one player's signup for a tournament. The (tournament,
// player) pair is the primary key, so double registration is impossible at
// the store level.
type Registration struct {
	TournamentID     int       `json:"tournament_id" db:"tournament_id"`
	PlayerID         string    `json:"player_id" db:"player_id"`
	PaymentConfirmed bool      `json:"payment_confirmed" db:"payment_confirmed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
