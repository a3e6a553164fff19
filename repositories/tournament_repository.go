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
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrTournamentInvalidOrg = errors.New("invalid organizer reference")
)

type ListTournamentsFilter struct {
	OrganizerID *int
	Status      *models.TournamentStatus
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	UpdateSettings(ctx context.Context, id int, autoProgress, simulationMode bool) error
	UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error

	// CloseIfOpen is the open->closed compare-and-set. Exactly one caller
	// observes closed=true for a given tournament.
	CloseIfOpen(ctx context.Context, id int) (closed bool, err error)

	SetForceAdvance(ctx context.Context, id int, value bool) error
	ClearForceAdvance(ctx context.Context, exec SQLExecutor, id int) error

	// CompleteIfClosed records the champion and flips closed->completed.
	// Re-delivery after a crash is a no-op (completed=false).
	CompleteIfClosed(ctx context.Context, id int, winnerID string) (completed bool, err error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, organizer_id, max_players, status, auto_progress, simulation_mode, force_advance, winner_id, banner_key, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.MaxPlayers, &t.Status,
		&t.AutoProgress, &t.SimulationMode, &t.ForceAdvance,
		&t.WinnerID, &t.BannerKey, &t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, organizer_id, max_players, status, auto_progress, simulation_mode)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.OrganizerID, t.MaxPlayers, t.Status, t.AutoProgress, t.SimulationMode,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(r.db.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateSettings(ctx context.Context, id int, autoProgress, simulationMode bool) error {
	query := `UPDATE tournaments SET auto_progress = $1, simulation_mode = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, autoProgress, simulationMode, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	query := `UPDATE tournaments SET banner_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament banner key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CloseIfOpen(ctx context.Context, id int) (bool, error) {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, models.TournamentClosed, id, models.TournamentOpen)
	if err != nil {
		return false, r.handleTournamentError(err)
	}
	return affectedOne(result)
}

func (r *postgresTournamentRepository) SetForceAdvance(ctx context.Context, id int, value bool) error {
	query := `UPDATE tournaments SET force_advance = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) ClearForceAdvance(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET force_advance = FALSE WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CompleteIfClosed(ctx context.Context, id int, winnerID string) (bool, error) {
	query := `UPDATE tournaments SET status = $1, winner_id = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.TournamentCompleted, winnerID, id, models.TournamentClosed)
	if err != nil {
		return false, r.handleTournamentError(err)
	}
	return affectedOne(result)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" && pqErr.Constraint == "tournaments_organizer_id_fkey" {
			return ErrTournamentInvalidOrg
		}
	}
	return err
}
