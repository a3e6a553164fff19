package brackets

import (
	"errors"
	"math/rand"
	"time"

	"github.com/knockoutlab/bracket-engine/models"
)

var ErrNotEnoughPlayers = errors.New("not enough players to seed a bracket (minimum 2)")

// Seeder produces the round-1 pairing for a closed tournament.
type Seeder struct {
	rng *rand.Rand
}

// NewSeeder returns a seeder backed by the given source. Pass nil for a
// time-seeded one; tests pass a fixed source for deterministic pairings.
func NewSeeder(rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Seeder{rng: rng}
}

// SeedRound shuffles the player list uniformly and pairs consecutive
// players into round-1 matches: slot i takes players[2i] and players[2i+1].
// An odd trailing player gets a bye, created already completed with the
// lone player as winner so the round cannot stall on it.
func (s *Seeder) SeedRound(tournamentID int, playerIDs []string) ([]*models.Match, error) {
	if len(playerIDs) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	shuffled := make([]string, len(playerIDs))
	copy(shuffled, playerIDs)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return PairPlayers(tournamentID, 1, shuffled, true), nil
}

// PairPlayers pairs an ordered player list two-at-a-time into matches for
// the given round. When includeTrailingBye is true an unpaired trailing
// player is emitted as a bye match; otherwise the trailing player is
// dropped.
func PairPlayers(tournamentID, round int, playerIDs []string, includeTrailingBye bool) []*models.Match {
	matches := make([]*models.Match, 0, (len(playerIDs)+1)/2)

	slot := 0
	for i := 0; i+1 < len(playerIDs); i += 2 {
		playerB := playerIDs[i+1]
		matches = append(matches, &models.Match{
			TournamentID: tournamentID,
			Round:        round,
			Slot:         slot,
			PlayerA:      playerIDs[i],
			PlayerB:      &playerB,
			Status:       models.MatchPending,
			Reports:      models.ReportSet{},
		})
		slot++
	}

	if len(playerIDs)%2 == 1 && includeTrailingBye {
		matches = append(matches, byeMatch(tournamentID, round, slot, playerIDs[len(playerIDs)-1]))
	}

	return matches
}

// byeMatch builds an already-completed match for a lone player. The winner
// is set and the completion feeds the advancement engine like any other.
func byeMatch(tournamentID, round, slot int, playerID string) *models.Match {
	winner := playerID
	resolvedBy := models.ResolvedByBye
	return &models.Match{
		TournamentID: tournamentID,
		Round:        round,
		Slot:         slot,
		PlayerA:      playerID,
		PlayerB:      nil,
		WinnerID:     &winner,
		Status:       models.MatchCompleted,
		Reports:      models.ReportSet{},
		ReportedBy:   &resolvedBy,
	}
}
