package services

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knockoutlab/bracket-engine/brackets"
	"github.com/knockoutlab/bracket-engine/models"
)

type registrationFixture struct {
	tournaments   *fakeTournamentRepo
	matches       *fakeMatchRepo
	registrations *fakeRegistrationRepo
	notifier      *fakeNotifier
	service       RegistrationService
}

func newRegistrationFixture(t *models.Tournament) *registrationFixture {
	f := &registrationFixture{
		tournaments:   newFakeTournamentRepo(),
		matches:       newFakeMatchRepo(),
		registrations: newFakeRegistrationRepo(),
		notifier:      &fakeNotifier{},
	}
	f.tournaments.add(t)
	progression := NewProgressionService(f.matches, f.tournaments, f.notifier, testLogger(), nil)
	f.service = NewRegistrationService(
		f.registrations,
		f.tournaments,
		f.matches,
		brackets.NewSeeder(rand.New(rand.NewSource(5))),
		progression,
		f.notifier,
		testLogger(),
	)
	return f
}

func openTournament(id, maxPlayers int) *models.Tournament {
	return &models.Tournament{
		ID:           id,
		Name:         "open cup",
		MaxPlayers:   maxPlayers,
		Status:       models.TournamentOpen,
		AutoProgress: true,
	}
}

func (f *registrationFixture) register(t *testing.T, playerID string) *models.Registration {
	t.Helper()
	reg, err := f.service.Register(context.Background(), 1, playerID, true)
	require.NoError(t, err)
	return reg
}

func TestRegisterValidation(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 4))

	_, err := f.service.Register(context.Background(), 1, "", true)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.service.Register(context.Background(), 99, "p1", true)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestRegisterRejectsDuplicatePlayer(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 4))
	f.register(t, "p1")

	_, err := f.service.Register(context.Background(), 1, "p1", true)
	assert.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestRegisterRejectsClosedTournament(t *testing.T) {
	tour := openTournament(1, 4)
	tour.Status = models.TournamentClosed
	f := newRegistrationFixture(tour)

	_, err := f.service.Register(context.Background(), 1, "p1", true)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestCapacityClosesTournamentAndSeedsRoundOne(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 4))
	for i := 1; i <= 4; i++ {
		f.register(t, fmt.Sprintf("p%d", i))
	}

	tour, err := f.tournaments.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentClosed, tour.Status)

	round := 1
	matches, err := f.matches.ListByTournament(context.Background(), 1, &round, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	seen := map[string]bool{}
	for _, m := range matches {
		assert.Equal(t, models.MatchPending, m.Status)
		seen[m.PlayerA] = true
		require.NotNil(t, m.PlayerB)
		seen[*m.PlayerB] = true
	}
	assert.Len(t, seen, 4)

	_, err = f.service.Register(context.Background(), 1, "p5", true)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestDuplicateRegistrationEventDoesNotReseed(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 2))
	f.register(t, "p1")
	last := f.register(t, "p2")

	round := 1
	before, err := f.matches.ListByTournament(context.Background(), 1, &round, nil)
	require.NoError(t, err)
	require.Len(t, before, 1)

	// Re-delivered event after close and seed.
	require.NoError(t, f.service.OnRegistrationCreated(context.Background(), last))

	after, err := f.matches.ListByTournament(context.Background(), 1, &round, nil)
	require.NoError(t, err)
	assert.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
}

func TestOddFieldSeedsAutoWinningBye(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 3))
	for i := 1; i <= 3; i++ {
		f.register(t, fmt.Sprintf("p%d", i))
	}

	round := 1
	matches, err := f.matches.ListByTournament(context.Background(), 1, &round, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	bye := matches[1]
	require.True(t, bye.IsBye())
	assert.Equal(t, models.MatchCompleted, bye.Status)
	require.NotNil(t, bye.WinnerID)
	assert.Equal(t, bye.PlayerA, *bye.WinnerID)

	// The bye completion alone must not advance past the undecided match.
	next := 2
	round2, err := f.matches.ListByTournament(context.Background(), 1, &next, nil)
	require.NoError(t, err)
	assert.Empty(t, round2)
}

func TestClosedBroadcastFiresOnce(t *testing.T) {
	f := newRegistrationFixture(openTournament(1, 2))
	f.register(t, "p1")
	last := f.register(t, "p2")

	require.NoError(t, f.service.OnRegistrationCreated(context.Background(), last))

	closes := 0
	for _, msg := range f.notifier.sent() {
		if hubMsg, ok := msg.(brackets.Message); ok && hubMsg.Type == brackets.EventTournamentClosed {
			closes++
		}
	}
	assert.Equal(t, 1, closes)
}
