package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/knockoutlab/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationConflict          = errors.New("player is already registered for this tournament")
	ErrRegistrationTournamentInvalid = errors.New("registration tournament conflict or invalid")
)

type RegistrationRepository interface {
	Create(ctx context.Context, registration *models.Registration) error
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	// ListPlayerIDs returns registered player ids in signup order, the
	// order the seeder shuffles from.
	ListPlayerIDs(ctx context.Context, tournamentID int) ([]string, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Registration, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (tournament_id, player_id, payment_confirmed)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, reg.TournamentID, reg.PlayerID, reg.PaymentConfirmed).Scan(&reg.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch {
			case pqErr.Code == "23505":
				return ErrRegistrationConflict
			case pqErr.Constraint == "registrations_tournament_id_fkey":
				return ErrRegistrationTournamentInvalid
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1`
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) ListPlayerIDs(ctx context.Context, tournamentID int) ([]string, error) {
	query := `SELECT player_id FROM registrations WHERE tournament_id = $1 ORDER BY created_at ASC, player_id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during registration rows iteration: %w", err)
	}
	return ids, nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Registration, error) {
	query := `
		SELECT tournament_id, player_id, payment_confirmed, created_at
		FROM registrations
		WHERE tournament_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if scanErr := rows.Scan(&reg.TournamentID, &reg.PlayerID, &reg.PaymentConfirmed, &reg.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", scanErr)
		}
		regs = append(regs, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during registration rows iteration: %w", err)
	}
	return regs, nil
}
