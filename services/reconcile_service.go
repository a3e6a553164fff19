package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/knockoutlab/bracket-engine/brackets"
	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
)

// ReconcileService compares the two player-submitted reports on a match and
// either auto-completes it or flags a dispute.
type ReconcileService interface {
	// SubmitReport records one player's report. With a single report the
	// match waits; with two matching reports it completes (firing the
	// advancement engine); with two conflicting reports it becomes
	// disputed with score and winner untouched. Re-submitting the same
	// report is a no-op.
	SubmitReport(ctx context.Context, matchID int, playerID string, report models.Report) (*models.Match, error)
}

type reconcileService struct {
	matchRepo   repositories.MatchRepository
	progression ProgressionService
	notifier    Notifier
	logger      *slog.Logger
}

func NewReconcileService(
	matchRepo repositories.MatchRepository,
	progression ProgressionService,
	notifier Notifier,
	logger *slog.Logger,
) ReconcileService {
	return &reconcileService{
		matchRepo:   matchRepo,
		progression: progression,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *reconcileService) SubmitReport(ctx context.Context, matchID int, playerID string, report models.Report) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if !m.HasPlayer(playerID) {
		return nil, ErrReportSubmitterInvalid
	}
	if !m.ValidWinner(report.Winner) || report.ScoreA < 0 || report.ScoreB < 0 {
		return nil, ErrReportInvalid
	}
	if m.Status == models.MatchCompleted {
		// Re-delivery after the match resolved; nothing left to do.
		return m, nil
	}

	// The merge is atomic and returns the post-merge state, so two
	// near-simultaneous submitters cannot both see a single report.
	m, err = s.matchRepo.AddReport(ctx, matchID, playerID, report)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if len(m.Reports) < 2 {
		s.logger.Info("reconcile: waiting for second report", slog.Int("match_id", m.ID))
		return m, nil
	}

	reports := make([]models.Report, 0, len(m.Reports))
	for _, r := range m.Reports {
		reports = append(reports, r)
	}

	if reports[0].Equal(reports[1]) {
		agreed := reports[0]
		completed, err := s.matchRepo.Complete(ctx, m.ID, agreed.ScoreA, agreed.ScoreB, agreed.Winner, models.ResolvedByAuto)
		if err != nil {
			return nil, err
		}
		if !completed {
			// Another invocation already completed it; success by proxy.
			return s.matchRepo.GetByID(ctx, m.ID)
		}

		s.logger.Info("reconcile: reports agree, match completed",
			slog.Int("match_id", m.ID), slog.String("winner_id", agreed.Winner))

		m, err = s.matchRepo.GetByID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		s.broadcastMatch(m)

		if err := s.progression.OnMatchCompleted(ctx, m.ID); err != nil {
			return nil, err
		}
		return s.matchRepo.GetByID(ctx, m.ID)
	}

	disputed, err := s.matchRepo.MarkDisputed(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if disputed {
		s.logger.Info("reconcile: reports disagree, match disputed", slog.Int("match_id", m.ID))
	}

	m, err = s.matchRepo.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if disputed {
		s.broadcastMatch(m)
	}
	return m, nil
}

func (s *reconcileService) broadcastMatch(m *models.Match) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToRoom(brackets.RoomID(m.TournamentID), brackets.Message{
		Type:    brackets.EventMatchUpdated,
		RoomID:  brackets.RoomID(m.TournamentID),
		Payload: m,
	})
}
