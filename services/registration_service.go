package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/knockoutlab/bracket-engine/brackets"
	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
)

// RegistrationService is the registration ledger plus the tournament
// closer: when a signup brings the count to capacity it closes registration
// (exactly once) and seeds round 1.
type RegistrationService interface {
	Register(ctx context.Context, tournamentID int, playerID string, paymentConfirmed bool) (*models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Registration, error)

	// OnRegistrationCreated re-checks capacity for the registration's
	// tournament. Safe to re-run: the close is a compare-and-set and
	// seeding is guarded by round creation being once-only.
	OnRegistrationCreated(ctx context.Context, registration *models.Registration) error
}

type registrationService struct {
	regRepo        repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	seeder         *brackets.Seeder
	progression    ProgressionService
	notifier       Notifier
	logger         *slog.Logger
}

func NewRegistrationService(
	regRepo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	seeder *brackets.Seeder,
	progression ProgressionService,
	notifier Notifier,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		regRepo:        regRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		seeder:         seeder,
		progression:    progression,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *registrationService) Register(ctx context.Context, tournamentID int, playerID string, paymentConfirmed bool) (*models.Registration, error) {
	if playerID == "" {
		return nil, ErrValidationFailed
	}

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if t.Status != models.TournamentOpen {
		return nil, ErrRegistrationNotOpen
	}

	count, err := s.regRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if count >= t.MaxPlayers {
		return nil, ErrTournamentFull
	}

	reg := &models.Registration{
		TournamentID:     tournamentID,
		PlayerID:         playerID,
		PaymentConfirmed: paymentConfirmed,
	}
	if err := s.regRepo.Create(ctx, reg); err != nil {
		if errors.Is(err, repositories.ErrRegistrationConflict) {
			return nil, ErrRegistrationConflict
		}
		return nil, err
	}

	// The closer runs in-line with registration creation. Its failures do
	// not fail the signup; a later registration event (or retry) re-runs
	// the same idempotent checks.
	if err := s.OnRegistrationCreated(ctx, reg); err != nil {
		s.logger.Error("closer: capacity check failed after registration",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}

	return reg, nil
}

func (s *registrationService) ListByTournament(ctx context.Context, tournamentID int) ([]models.Registration, error) {
	return s.regRepo.ListByTournament(ctx, tournamentID)
}

func (s *registrationService) OnRegistrationCreated(ctx context.Context, reg *models.Registration) error {
	t, err := s.tournamentRepo.GetByID(ctx, reg.TournamentID)
	if err != nil {
		// Transient: at-least-once delivery retries the trigger.
		s.logger.Warn("closer: tournament lookup failed, skipping",
			slog.Int("tournament_id", reg.TournamentID), slog.Any("error", err))
		return nil
	}

	count, err := s.regRepo.CountByTournament(ctx, reg.TournamentID)
	if err != nil {
		return err
	}
	if count < t.MaxPlayers {
		return nil
	}

	closedNow, err := s.tournamentRepo.CloseIfOpen(ctx, t.ID)
	if err != nil {
		return err
	}
	if closedNow {
		s.logger.Info("closer: tournament reached capacity, registration closed",
			slog.Int("tournament_id", t.ID), slog.Int("players", count))
		if s.notifier != nil {
			s.notifier.BroadcastToRoom(brackets.RoomID(t.ID), brackets.Message{
				Type:    brackets.EventTournamentClosed,
				RoomID:  brackets.RoomID(t.ID),
				Payload: map[string]int{"tournament_id": t.ID},
			})
		}
	} else if t.Status == models.TournamentCompleted {
		return nil
	}

	// Seed round 1 only when no matches exist yet. A retried event after a
	// crash between close and seed still seeds here; a duplicate retry
	// after seeding is stopped both by this guard and by CreateRoundOnce.
	exists, err := s.matchRepo.ExistsForTournament(ctx, t.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.seedFirstRound(ctx, t.ID)
}

func (s *registrationService) seedFirstRound(ctx context.Context, tournamentID int) error {
	playerIDs, err := s.regRepo.ListPlayerIDs(ctx, tournamentID)
	if err != nil {
		return err
	}

	matches, err := s.seeder.SeedRound(tournamentID, playerIDs)
	if err != nil {
		return err
	}

	created, err := s.matchRepo.CreateRoundOnce(ctx, tournamentID, 1, matches)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Info("closer: round 1 already seeded", slog.Int("tournament_id", tournamentID))
		return nil
	}

	s.logger.Info("closer: round 1 seeded",
		slog.Int("tournament_id", tournamentID), slog.Int("matches", len(matches)))

	if s.notifier != nil {
		s.notifier.BroadcastToRoom(brackets.RoomID(tournamentID), brackets.Message{
			Type:   brackets.EventRoundGenerated,
			RoomID: brackets.RoomID(tournamentID),
			Payload: RoundGeneratedPayload{
				TournamentID: tournamentID,
				Round:        1,
				Matches:      matches,
			},
		})
	}

	// A bye in round 1 is born completed and must flow through the
	// advancement engine like any other completion.
	for _, m := range matches {
		if m.Status == models.MatchCompleted {
			if err := s.progression.OnMatchCompleted(ctx, m.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
