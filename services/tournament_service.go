package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
	"github.com/knockoutlab/bracket-engine/storage"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name           string `json:"name"`
	MaxPlayers     int    `json:"max_players"`
	AutoProgress   bool   `json:"auto_progress"`
	SimulationMode bool   `json:"simulation_mode"`
}

type UpdateSettingsInput struct {
	AutoProgress   bool `json:"auto_progress"`
	SimulationMode bool `json:"simulation_mode"`
}

type TournamentService interface {
	Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	// GetFullByID loads the tournament together with its registrations and
	// matches, the payload bracket viewers render from.
	GetFullByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateSettings(ctx context.Context, id int, input UpdateSettingsInput) (*models.Tournament, error)
	UploadBanner(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	regRepo        repositories.RegistrationRepository
	matchRepo      repositories.MatchRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	matchRepo repositories.MatchRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		regRepo:        regRepo,
		matchRepo:      matchRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if input.MaxPlayers < 2 {
		return nil, ErrTournamentInvalidCapacity
	}

	t := &models.Tournament{
		Name:           input.Name,
		OrganizerID:    organizerID,
		MaxPlayers:     input.MaxPlayers,
		Status:         models.TournamentOpen,
		AutoProgress:   input.AutoProgress,
		SimulationMode: input.SimulationMode,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.decorateBannerURL(t)
	return t, nil
}

func (s *tournamentService) GetFullByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		regs, err := s.regRepo.ListByTournament(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load registrations for tournament %d: %w", id, err)
		}
		t.Registrations = regs
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, id, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to load matches for tournament %d: %w", id, err)
		}
		t.Matches = make([]models.Match, len(matches))
		for i, m := range matches {
			t.Matches[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.decorateBannerURL(t)
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.decorateBannerURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *tournamentService) UpdateSettings(ctx context.Context, id int, input UpdateSettingsInput) (*models.Tournament, error) {
	if err := s.tournamentRepo.UpdateSettings(ctx, id, input.AutoProgress, input.SimulationMode); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorateBannerURL(t)
	return t, nil
}

func (s *tournamentService) UploadBanner(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	if s.uploader == nil {
		return nil, ErrBannerStorageDisabled
	}

	key := fmt.Sprintf("tournaments/%d/banner", id)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload tournament banner: %w", err)
	}

	oldKey := t.BannerKey
	if err := s.tournamentRepo.UpdateBannerKey(ctx, id, &result.Key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous tournament banner",
				slog.Int("tournament_id", id), slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	t.BannerKey = &result.Key
	s.decorateBannerURL(t)
	return t, nil
}

func (s *tournamentService) decorateBannerURL(t *models.Tournament) {
	if s.uploader == nil || t.BannerKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*t.BannerKey)
	if url != "" {
		t.BannerURL = &url
	}
}
