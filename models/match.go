package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
	MatchDisputed  MatchStatus = "disputed"
)

// Values recorded in Match.ReportedBy to say how a match was resolved.
const (
	ResolvedByAuto       = "auto"
	ResolvedByBye        = "bye"
	ResolvedByAdmin      = "admin"
	ResolvedBySimulation = "simulation"
)

// Report is a single player's claim about a match outcome.
type Report struct {
	Winner string `json:"winner"`
	ScoreA int    `json:"score_a"`
	ScoreB int    `json:"score_b"`
}

func (r Report) Equal(other Report) bool {
	return r.Winner == other.Winner && r.ScoreA == other.ScoreA && r.ScoreB == other.ScoreB
}

// ReportSet maps reporter player id to their submitted report. A match holds
// at most two entries, one per participant. Stored as JSONB.
type ReportSet map[string]Report

func (rs ReportSet) Value() (driver.Value, error) {
	if rs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(rs)
}

func (rs *ReportSet) Scan(src interface{}) error {
	if src == nil {
		*rs = ReportSet{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ReportSet", src)
	}
	return json.Unmarshal(b, rs)
}

// Match is one slot of a bracket round. PlayerB is nil for a bye. A round's
// match set is immutable once generated: matches change status and scores
// but are never added to or removed from an existing round.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	Slot         int         `json:"slot" db:"slot"`
	PlayerA      string      `json:"player_a" db:"player_a"`
	PlayerB      *string     `json:"player_b,omitempty" db:"player_b"`
	ScoreA       int         `json:"score_a" db:"score_a"`
	ScoreB       int         `json:"score_b" db:"score_b"`
	WinnerID     *string     `json:"winner_id,omitempty" db:"winner_id"`
	Status       MatchStatus `json:"status" db:"status"`
	Reports      ReportSet   `json:"reports" db:"reports"`
	ReportedBy   *string     `json:"reported_by,omitempty" db:"reported_by"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// IsBye reports whether the match has only one real player.
func (m *Match) IsBye() bool {
	return m.PlayerB == nil
}

// HasPlayer reports whether the given player id occupies one of the match's
// two slots.
func (m *Match) HasPlayer(playerID string) bool {
	if m.PlayerA == playerID {
		return true
	}
	return m.PlayerB != nil && *m.PlayerB == playerID
}

// ValidWinner reports whether id names one of the match's players.
func (m *Match) ValidWinner(id string) bool {
	return id != "" && m.HasPlayer(id)
}
