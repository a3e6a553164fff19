package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knockoutlab/bracket-engine/models"
)

type reconcileFixture struct {
	tournaments *fakeTournamentRepo
	matches     *fakeMatchRepo
	notifier    *fakeNotifier
	service     ReconcileService
}

func newReconcileFixture(t *models.Tournament) *reconcileFixture {
	f := &reconcileFixture{
		tournaments: newFakeTournamentRepo(),
		matches:     newFakeMatchRepo(),
		notifier:    &fakeNotifier{},
	}
	f.tournaments.add(t)
	progression := NewProgressionService(f.matches, f.tournaments, f.notifier, testLogger(), nil)
	f.service = NewReconcileService(f.matches, progression, f.notifier, testLogger())
	return f
}

func TestSubmitReportRejectsOutsiders(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))

	_, err := f.service.SubmitReport(context.Background(), m.ID, "p9",
		models.Report{Winner: "p1", ScoreA: 1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrReportSubmitterInvalid)

	_, err = f.service.SubmitReport(context.Background(), 99, "p1",
		models.Report{Winner: "p1", ScoreA: 1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestSubmitReportRejectsInvalidContent(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))

	_, err := f.service.SubmitReport(context.Background(), m.ID, "p1",
		models.Report{Winner: "p9", ScoreA: 1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrReportInvalid)

	_, err = f.service.SubmitReport(context.Background(), m.ID, "p1",
		models.Report{Winner: "p1", ScoreA: -1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrReportInvalid)
}

func TestSubmitReportSingleReportWaits(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))

	got, err := f.service.SubmitReport(context.Background(), m.ID, "p1",
		models.Report{Winner: "p1", ScoreA: 2, ScoreB: 1})
	require.NoError(t, err)

	assert.Equal(t, models.MatchPending, got.Status)
	assert.Nil(t, got.WinnerID)
	assert.Len(t, got.Reports, 1)
}

func TestSubmitReportAgreementCompletesMatch(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))
	f.matches.add(pendingMatch(1, 1, 1, "p3", "p4"))

	report := models.Report{Winner: "p2", ScoreA: 1, ScoreB: 3}
	_, err := f.service.SubmitReport(context.Background(), m.ID, "p1", report)
	require.NoError(t, err)

	got, err := f.service.SubmitReport(context.Background(), m.ID, "p2", report)
	require.NoError(t, err)

	assert.Equal(t, models.MatchCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "p2", *got.WinnerID)
	assert.Equal(t, 1, got.ScoreA)
	assert.Equal(t, 3, got.ScoreB)
	require.NotNil(t, got.ReportedBy)
	assert.Equal(t, models.ResolvedByAuto, *got.ReportedBy)
}

func TestSubmitReportDisagreementDisputes(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))

	_, err := f.service.SubmitReport(context.Background(), m.ID, "p1",
		models.Report{Winner: "p1", ScoreA: 2, ScoreB: 1})
	require.NoError(t, err)

	got, err := f.service.SubmitReport(context.Background(), m.ID, "p2",
		models.Report{Winner: "p2", ScoreA: 1, ScoreB: 2})
	require.NoError(t, err)

	assert.Equal(t, models.MatchDisputed, got.Status)
	assert.Nil(t, got.WinnerID)
	assert.Equal(t, 0, got.ScoreA)
	assert.Equal(t, 0, got.ScoreB)
}

func TestSubmitReportResubmissionIsNoOp(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))
	f.matches.add(pendingMatch(1, 1, 1, "p3", "p4"))

	report := models.Report{Winner: "p1", ScoreA: 2, ScoreB: 0}
	_, err := f.service.SubmitReport(context.Background(), m.ID, "p1", report)
	require.NoError(t, err)
	_, err = f.service.SubmitReport(context.Background(), m.ID, "p2", report)
	require.NoError(t, err)

	// The match is settled; a late duplicate changes nothing.
	got, err := f.service.SubmitReport(context.Background(), m.ID, "p1", report)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, got.Status)
	assert.Equal(t, "p1", *got.WinnerID)
	assert.Equal(t, 2, got.ScoreA)
}

func TestSubmitReportAgreementFiresAdvancement(t *testing.T) {
	f := newReconcileFixture(closedTournament(1))
	m1 := f.matches.add(pendingMatch(1, 1, 0, "p1", "p2"))
	m2 := f.matches.add(pendingMatch(1, 1, 1, "p3", "p4"))

	submitBoth := func(id int, winner string, scoreA, scoreB int) {
		report := models.Report{Winner: winner, ScoreA: scoreA, ScoreB: scoreB}
		var playerA, playerB string
		got, err := f.matches.GetByID(context.Background(), id)
		require.NoError(t, err)
		playerA, playerB = got.PlayerA, *got.PlayerB

		_, err = f.service.SubmitReport(context.Background(), id, playerA, report)
		require.NoError(t, err)
		_, err = f.service.SubmitReport(context.Background(), id, playerB, report)
		require.NoError(t, err)
	}

	submitBoth(m1.ID, "p1", 2, 0)
	submitBoth(m2.ID, "p4", 0, 2)

	round := 2
	next, err := f.matches.ListByTournament(context.Background(), 1, &round, nil)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "p1", next[0].PlayerA)
	assert.Equal(t, "p4", *next[0].PlayerB)
}
