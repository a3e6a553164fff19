package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/knockoutlab/bracket-engine/brackets"
	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
)

// RoundGeneratedPayload is broadcast to bracket viewers when a new round
// appears.
type RoundGeneratedPayload struct {
	TournamentID int             `json:"tournament_id"`
	Round        int             `json:"round"`
	Matches      []*models.Match `json:"matches"`
}

// TournamentCompletedPayload announces the champion.
type TournamentCompletedPayload struct {
	TournamentID int    `json:"tournament_id"`
	WinnerID     string `json:"winner_id"`
}

// ProgressionService is the round-advancement state machine. It reacts to
// match completions; every invocation is safe to re-run, so at-least-once
// delivery of completion events never double-creates a round.
type ProgressionService interface {
	// OnMatchCompleted is fired after a match transitions into completed
	// status (by report reconciliation, manual result entry, or a seeded
	// bye).
	OnMatchCompleted(ctx context.Context, matchID int) error

	// ForceAdvance sets the one-shot override and advances the latest
	// round with whatever winners it has. The flag is cleared after use.
	ForceAdvance(ctx context.Context, tournamentID int) error
}

type progressionService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	notifier       Notifier
	logger         *slog.Logger
	rng            *rand.Rand
}

func NewProgressionService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	notifier Notifier,
	logger *slog.Logger,
	rng *rand.Rand,
) ProgressionService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &progressionService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		notifier:       notifier,
		logger:         logger,
		rng:            rng,
	}
}

func (s *progressionService) OnMatchCompleted(ctx context.Context, matchID int) error {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			s.logger.Warn("progression: completed match vanished, skipping", slog.Int("match_id", matchID))
			return nil
		}
		return err
	}

	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			s.logger.Warn("progression: tournament vanished, skipping", slog.Int("tournament_id", m.TournamentID))
			return nil
		}
		return err
	}

	if !t.AutoProgress {
		s.logger.Info("progression: auto progress disabled, skipping",
			slog.Int("tournament_id", t.ID), slog.Int("match_id", m.ID))
		return nil
	}
	if m.Status != models.MatchCompleted {
		s.logger.Info("progression: match is not completed, skipping",
			slog.Int("match_id", m.ID), slog.String("status", string(m.Status)))
		return nil
	}

	// Simulation fallback: only a NULL winner is ever filled, so an
	// explicit winner is never overwritten and the write cannot loop.
	if m.WinnerID == nil && t.SimulationMode {
		winner := s.pickRandomWinner(m)
		if _, err := s.matchRepo.SetWinnerIfAbsent(ctx, m.ID, winner); err != nil {
			return err
		}
		if m, err = s.matchRepo.GetByID(ctx, m.ID); err != nil {
			return err
		}
	}

	if m.ScoreA < 0 || m.ScoreB < 0 {
		s.logger.Warn("progression: match has negative score, skipping",
			slog.Int("match_id", m.ID), slog.Int("score_a", m.ScoreA), slog.Int("score_b", m.ScoreB))
		return nil
	}
	if m.WinnerID == nil || !m.ValidWinner(*m.WinnerID) {
		s.logger.Warn("progression: match winner missing or not a participant, skipping",
			slog.Int("match_id", m.ID))
		return nil
	}

	return s.advanceRound(ctx, t, m.Round)
}

func (s *progressionService) ForceAdvance(ctx context.Context, tournamentID int) error {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil, nil)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrNoRoundToAdvance
	}

	latestRound := 0
	for _, m := range matches {
		if m.Round > latestRound {
			latestRound = m.Round
		}
	}

	if err := s.tournamentRepo.SetForceAdvance(ctx, tournamentID, true); err != nil {
		return err
	}
	t.ForceAdvance = true

	return s.advanceRound(ctx, t, latestRound)
}

// advanceRound re-reads the round and, if it is resolved (or forced),
// generates the next one exactly once.
func (s *progressionService) advanceRound(ctx context.Context, t *models.Tournament, round int) error {
	matches, err := s.matchRepo.ListByTournament(ctx, t.ID, &round, nil)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		s.logger.Warn("progression: no matches found in round, skipping",
			slog.Int("tournament_id", t.ID), slog.Int("round", round))
		return nil
	}

	force := t.ForceAdvance

	// Collect winners in slot order; ListByTournament orders by slot.
	winners := make([]string, 0, len(matches))
	for _, rm := range matches {
		if rm.Status != models.MatchCompleted {
			if !force {
				s.logger.Info("progression: round incomplete, waiting",
					slog.Int("tournament_id", t.ID), slog.Int("round", round), slog.Int("match_id", rm.ID))
				return nil
			}
			continue
		}
		if rm.WinnerID == nil || !rm.ValidWinner(*rm.WinnerID) {
			if !force {
				s.logger.Warn("progression: completed match without a valid winner, skipping round",
					slog.Int("tournament_id", t.ID), slog.Int("match_id", rm.ID))
				return nil
			}
			continue
		}
		winners = append(winners, *rm.WinnerID)
	}

	if len(winners) == 0 {
		s.logger.Info("progression: no winners to advance",
			slog.Int("tournament_id", t.ID), slog.Int("round", round))
		return nil
	}

	if len(winners) == 1 {
		return s.completeTournament(ctx, t, winners[0])
	}

	nextRound := round + 1
	// Under forceAdvance an unpaired trailing winner advances as a bye;
	// otherwise it is skipped.
	newMatches := brackets.PairPlayers(t.ID, nextRound, winners, force)

	created, err := s.matchRepo.CreateRoundOnce(ctx, t.ID, nextRound, newMatches)
	if err != nil {
		return err
	}

	// One-shot override: cleared even when the race was lost and the round
	// already existed, so a stale flag never lingers.
	if force {
		if err := s.tournamentRepo.ClearForceAdvance(ctx, nil, t.ID); err != nil {
			return err
		}
	}

	if !created {
		s.logger.Info("progression: next round already generated",
			slog.Int("tournament_id", t.ID), slog.Int("round", nextRound))
		return nil
	}

	s.logger.Info("progression: generated next round",
		slog.Int("tournament_id", t.ID), slog.Int("round", nextRound), slog.Int("matches", len(newMatches)))

	if s.notifier != nil {
		s.notifier.BroadcastToRoom(brackets.RoomID(t.ID), brackets.Message{
			Type:   brackets.EventRoundGenerated,
			RoomID: brackets.RoomID(t.ID),
			Payload: RoundGeneratedPayload{
				TournamentID: t.ID,
				Round:        nextRound,
				Matches:      newMatches,
			},
		})
	}

	// Byes in the generated round are born completed; feed them back so
	// a round of nothing but byes still advances.
	for _, nm := range newMatches {
		if nm.Status == models.MatchCompleted {
			if err := s.OnMatchCompleted(ctx, nm.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *progressionService) completeTournament(ctx context.Context, t *models.Tournament, winnerID string) error {
	completed, err := s.tournamentRepo.CompleteIfClosed(ctx, t.ID, winnerID)
	if err != nil {
		return err
	}

	if t.ForceAdvance {
		if err := s.tournamentRepo.ClearForceAdvance(ctx, nil, t.ID); err != nil {
			return err
		}
	}

	if !completed {
		s.logger.Info("progression: tournament already completed",
			slog.Int("tournament_id", t.ID))
		return nil
	}

	s.logger.Info("progression: tournament completed",
		slog.Int("tournament_id", t.ID), slog.String("winner_id", winnerID))

	if s.notifier != nil {
		s.notifier.BroadcastToRoom(brackets.RoomID(t.ID), brackets.Message{
			Type:   brackets.EventTournamentCompleted,
			RoomID: brackets.RoomID(t.ID),
			Payload: TournamentCompletedPayload{
				TournamentID: t.ID,
				WinnerID:     winnerID,
			},
		})
	}
	return nil
}

func (s *progressionService) pickRandomWinner(m *models.Match) string {
	if m.PlayerB == nil {
		return m.PlayerA
	}
	if s.rng.Intn(2) == 0 {
		return m.PlayerA
	}
	return *m.PlayerB
}
