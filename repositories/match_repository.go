package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/knockoutlab/bracket-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
)

type MatchRepository interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error)
	ExistsForTournament(ctx context.Context, tournamentID int) (bool, error)

	// CreateRoundOnce atomically checks that no match exists for the given
	// round and batch-inserts the new ones. Generation for a tournament is
	// serialized with an advisory lock, so two completions racing at the
	// end of a round cannot both create the next one. created=false with a
	// nil error means the round already existed.
	CreateRoundOnce(ctx context.Context, tournamentID, round int, matches []*models.Match) (created bool, err error)

	// AddReport merges one reporter's entry into the reports JSONB in a
	// single statement and returns the post-merge match, so two
	// near-simultaneous submissions cannot both observe a lone report.
	AddReport(ctx context.Context, matchID int, playerID string, report models.Report) (*models.Match, error)

	// Complete is conditional on the match not already being completed;
	// completed=false with nil error means another invocation won.
	Complete(ctx context.Context, matchID, scoreA, scoreB int, winnerID, reportedBy string) (completed bool, err error)

	// MarkDisputed flips pending/live to disputed, leaving score and winner
	// untouched.
	MarkDisputed(ctx context.Context, matchID int) (disputed bool, err error)

	// SetWinnerIfAbsent fills a NULL winner (simulation fallback). An
	// explicit winner is never overwritten.
	SetWinnerIfAbsent(ctx context.Context, matchID int, winnerID string) (set bool, err error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, round, slot, player_a, player_b, score_a, score_b, winner_id, status, reports, reported_by, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Slot,
		&m.PlayerA, &m.PlayerB, &m.ScoreA, &m.ScoreB,
		&m.WinnerID, &m.Status, &m.Reports, &m.ReportedBy, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(r.db.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if round != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *round)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}

	queryBuilder.WriteString(" ORDER BY round ASC, slot ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ExistsForTournament(ctx context.Context, tournamentID int) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM matches WHERE tournament_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check matches for tournament %d: %w", tournamentID, err)
	}
	return exists, nil
}

func (r *postgresMatchRepository) CreateRoundOnce(ctx context.Context, tournamentID, round int, matches []*models.Match) (bool, error) {
	if len(matches) == 0 {
		return false, errors.New("cannot create an empty round")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize round generation per tournament for the duration of the
	// transaction.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(tournamentID)); err != nil {
		return false, fmt.Errorf("failed to take generation lock for tournament %d: %w", tournamentID, err)
	}

	var exists bool
	existsQuery := `SELECT EXISTS (SELECT 1 FROM matches WHERE tournament_id = $1 AND round = $2)`
	if err = tx.QueryRowContext(ctx, existsQuery, tournamentID, round).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check round %d existence: %w", round, err)
	}
	if exists {
		return false, nil
	}

	insertQuery := `
		INSERT INTO matches (tournament_id, round, slot, player_a, player_b, score_a, score_b, winner_id, status, reports, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	for _, m := range matches {
		err = tx.QueryRowContext(ctx, insertQuery,
			m.TournamentID, m.Round, m.Slot, m.PlayerA, m.PlayerB,
			m.ScoreA, m.ScoreB, m.WinnerID, m.Status, m.Reports, m.ReportedBy,
		).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "matches_tournament_round_slot_key") {
				return false, nil
			}
			return false, r.handleMatchError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err, "matches_tournament_round_slot_key") {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit round %d for tournament %d: %w", round, tournamentID, err)
	}
	return true, nil
}

func (r *postgresMatchRepository) AddReport(ctx context.Context, matchID int, playerID string, report models.Report) (*models.Match, error) {
	reportJSON, err := json.Marshal(models.ReportSet{playerID: report})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	// JSONB concatenation is atomic per row; the returned state already
	// includes any concurrently merged report.
	query := `
		UPDATE matches
		SET reports = reports || $1::jsonb
		WHERE id = $2
		RETURNING ` + matchColumns

	m := &models.Match{}
	err = scanMatch(r.db.QueryRowContext(ctx, query, reportJSON, matchID), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to add report to match %d: %w", matchID, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) Complete(ctx context.Context, matchID, scoreA, scoreB int, winnerID, reportedBy string) (bool, error) {
	query := `
		UPDATE matches
		SET score_a = $1, score_b = $2, winner_id = $3, status = $4, reported_by = $5
		WHERE id = $6 AND status <> $4`

	result, err := r.db.ExecContext(ctx, query, scoreA, scoreB, winnerID, models.MatchCompleted, reportedBy, matchID)
	if err != nil {
		return false, r.handleMatchError(err)
	}
	return affectedOne(result)
}

func (r *postgresMatchRepository) MarkDisputed(ctx context.Context, matchID int) (bool, error) {
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status IN ($3, $4)`
	result, err := r.db.ExecContext(ctx, query, models.MatchDisputed, matchID, models.MatchPending, models.MatchLive)
	if err != nil {
		return false, r.handleMatchError(err)
	}
	return affectedOne(result)
}

func (r *postgresMatchRepository) SetWinnerIfAbsent(ctx context.Context, matchID int, winnerID string) (bool, error) {
	query := `UPDATE matches SET winner_id = $1 WHERE id = $2 AND winner_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, winnerID, matchID)
	if err != nil {
		return false, r.handleMatchError(err)
	}
	return affectedOne(result)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		}
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}
