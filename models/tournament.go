package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentOpen      TournamentStatus = "open"
	TournamentClosed    TournamentStatus = "closed"
	TournamentCompleted TournamentStatus = "completed"
)

// Tournament is a single-elimination tournament. Registration stays open
// until MaxPlayers is reached; the closer flips Status open->closed exactly
// once and round 1 is seeded from the registered players.
type Tournament struct {
	ID             int              `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	OrganizerID    int              `json:"organizer_id" db:"organizer_id"`
	MaxPlayers     int              `json:"max_players" db:"max_players"`
	Status         TournamentStatus `json:"status" db:"status"`
	AutoProgress   bool             `json:"auto_progress" db:"auto_progress"`
	SimulationMode bool             `json:"simulation_mode" db:"simulation_mode"`
	ForceAdvance   bool             `json:"force_advance" db:"force_advance"`
	WinnerID       *string          `json:"winner_id,omitempty" db:"winner_id"`
	BannerKey      *string          `json:"-" db:"banner_key"`
	BannerURL      *string          `json:"banner_url,omitempty" db:"-"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	// Related entities, loaded on demand.
	Registrations []Registration `json:"registrations,omitempty" db:"-"`
	Matches       []Match        `json:"matches,omitempty" db:"-"`
}
