package brackets

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knockoutlab/bracket-engine/models"
)

func TestSeedRoundRejectsTooFewPlayers(t *testing.T) {
	s := NewSeeder(rand.New(rand.NewSource(1)))

	_, err := s.SeedRound(1, nil)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = s.SeedRound(1, []string{"p1"})
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestSeedRoundIsDeterministicForFixedSource(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}

	first, err := NewSeeder(rand.New(rand.NewSource(42))).SeedRound(7, players)
	require.NoError(t, err)
	second, err := NewSeeder(rand.New(rand.NewSource(42))).SeedRound(7, players)
	require.NoError(t, err)

	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].PlayerA, second[i].PlayerA)
		assert.Equal(t, first[i].PlayerB, second[i].PlayerB)
	}
}

func TestSeedRoundDoesNotMutateInput(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4"}
	original := append([]string(nil), players...)

	_, err := NewSeeder(rand.New(rand.NewSource(3))).SeedRound(1, players)
	require.NoError(t, err)
	assert.Equal(t, original, players)
}

func TestSeedRoundCoversEveryPlayerExactlyOnce(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4", "p5"}

	matches, err := NewSeeder(rand.New(rand.NewSource(9))).SeedRound(1, players)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	seen := map[string]int{}
	for _, m := range matches {
		seen[m.PlayerA]++
		if m.PlayerB != nil {
			seen[*m.PlayerB]++
		}
	}
	for _, p := range players {
		assert.Equal(t, 1, seen[p], "player %s", p)
	}
}

func TestPairPlayersSlotOrderAndBye(t *testing.T) {
	matches := PairPlayers(3, 2, []string{"a", "b", "c", "d", "e"}, true)
	require.Len(t, matches, 3)

	for i, m := range matches {
		assert.Equal(t, 3, m.TournamentID)
		assert.Equal(t, 2, m.Round)
		assert.Equal(t, i, m.Slot)
	}

	assert.Equal(t, "a", matches[0].PlayerA)
	require.NotNil(t, matches[0].PlayerB)
	assert.Equal(t, "b", *matches[0].PlayerB)
	assert.Equal(t, models.MatchPending, matches[0].Status)

	bye := matches[2]
	assert.True(t, bye.IsBye())
	assert.Equal(t, "e", bye.PlayerA)
	assert.Equal(t, models.MatchCompleted, bye.Status)
	require.NotNil(t, bye.WinnerID)
	assert.Equal(t, "e", *bye.WinnerID)
	require.NotNil(t, bye.ReportedBy)
	assert.Equal(t, models.ResolvedByBye, *bye.ReportedBy)
}

func TestPairPlayersDropsTrailingPlayerWithoutBye(t *testing.T) {
	matches := PairPlayers(1, 2, []string{"a", "b", "c"}, false)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].PlayerA)
	require.NotNil(t, matches[0].PlayerB)
	assert.Equal(t, "b", *matches[0].PlayerB)
}
