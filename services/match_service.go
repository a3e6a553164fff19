package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/knockoutlab/bracket-engine/brackets"
	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
)

type SetResultInput struct {
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
	WinnerID string `json:"winner_id"`
}

// MatchService exposes match listing and the organizer's manual result
// entry, the out-of-band resolution path for disputed matches.
type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error)

	// SetResult completes a match with an organizer-entered outcome and
	// fires the advancement engine. Used to resolve disputes or correct a
	// wedged match; completing an already-completed match is rejected.
	SetResult(ctx context.Context, matchID int, input SetResultInput) (*models.Match, error)
}

type matchService struct {
	matchRepo   repositories.MatchRepository
	progression ProgressionService
	notifier    Notifier
	logger      *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	progression ProgressionService,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:   matchRepo,
		progression: progression,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, round, nil)
}

func (s *matchService) SetResult(ctx context.Context, matchID int, input SetResultInput) (*models.Match, error) {
	m, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if !m.ValidWinner(input.WinnerID) || input.ScoreA < 0 || input.ScoreB < 0 {
		return nil, ErrReportInvalid
	}
	if m.Status == models.MatchCompleted {
		return nil, ErrMatchNotPlayable
	}

	completed, err := s.matchRepo.Complete(ctx, matchID, input.ScoreA, input.ScoreB, input.WinnerID, models.ResolvedByAdmin)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrMatchNotPlayable
	}

	s.logger.Info("match: result entered manually",
		slog.Int("match_id", matchID), slog.String("winner_id", input.WinnerID))

	m, err = s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.BroadcastToRoom(brackets.RoomID(m.TournamentID), brackets.Message{
			Type:    brackets.EventMatchUpdated,
			RoomID:  brackets.RoomID(m.TournamentID),
			Payload: m,
		})
	}

	if err := s.progression.OnMatchCompleted(ctx, matchID); err != nil {
		return nil, err
	}
	return s.matchRepo.GetByID(ctx, matchID)
}
