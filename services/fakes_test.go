package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/knockoutlab/bracket-engine/models"
	"github.com/knockoutlab/bracket-engine/repositories"
)

// In-memory repository fakes mirroring the conditional-write semantics of
// the Postgres implementations, so the services can be exercised without a
// database.

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: map[int]*models.Tournament{}}
}

func (r *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	}
	cp := *t
	r.tournaments[t.ID] = &cp
	return t
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.add(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, _ repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) UpdateSettings(_ context.Context, id int, autoProgress, simulationMode bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.AutoProgress = autoProgress
	t.SimulationMode = simulationMode
	return nil
}

func (r *fakeTournamentRepo) UpdateBannerKey(_ context.Context, id int, bannerKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

func (r *fakeTournamentRepo) CloseIfOpen(_ context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.Status != models.TournamentOpen {
		return false, nil
	}
	t.Status = models.TournamentClosed
	return true, nil
}

func (r *fakeTournamentRepo) SetForceAdvance(_ context.Context, id int, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ForceAdvance = value
	return nil
}

func (r *fakeTournamentRepo) ClearForceAdvance(_ context.Context, _ repositories.SQLExecutor, id int) error {
	return r.SetForceAdvance(context.Background(), id, false)
}

func (r *fakeTournamentRepo) CompleteIfClosed(_ context.Context, id int, winnerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.Status != models.TournamentClosed {
		return false, nil
	}
	t.Status = models.TournamentCompleted
	t.WinnerID = &winnerID
	return true, nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: map[int]*models.Match{}}
}

func copyMatch(m *models.Match) *models.Match {
	cp := *m
	cp.Reports = models.ReportSet{}
	for k, v := range m.Reports {
		cp.Reports[k] = v
	}
	return &cp
}

func (r *fakeMatchRepo) add(m *models.Match) *models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(m)
}

func (r *fakeMatchRepo) addLocked(m *models.Match) *models.Match {
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	if m.Reports == nil {
		m.Reports = models.ReportSet{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.matches[m.ID] = copyMatch(m)
	return m
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, copyMatch(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

func (r *fakeMatchRepo) ExistsForTournament(_ context.Context, tournamentID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.TournamentID == tournamentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) CreateRoundOnce(_ context.Context, tournamentID, round int, matches []*models.Match) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.TournamentID == tournamentID && m.Round == round {
			return false, nil
		}
	}
	for _, m := range matches {
		r.addLocked(m)
	}
	return true, nil
}

func (r *fakeMatchRepo) AddReport(_ context.Context, matchID int, playerID string, report models.Report) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	if m.Reports == nil {
		m.Reports = models.ReportSet{}
	}
	m.Reports[playerID] = report
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) Complete(_ context.Context, matchID, scoreA, scoreB int, winnerID, reportedBy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if m.Status == models.MatchCompleted {
		return false, nil
	}
	m.ScoreA = scoreA
	m.ScoreB = scoreB
	m.WinnerID = &winnerID
	m.ReportedBy = &reportedBy
	m.Status = models.MatchCompleted
	return true, nil
}

func (r *fakeMatchRepo) MarkDisputed(_ context.Context, matchID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if m.Status != models.MatchPending && m.Status != models.MatchLive {
		return false, nil
	}
	m.Status = models.MatchDisputed
	return true, nil
}

func (r *fakeMatchRepo) SetWinnerIfAbsent(_ context.Context, matchID int, winnerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if m.WinnerID != nil {
		return false, nil
	}
	m.WinnerID = &winnerID
	return true, nil
}

type fakeRegistrationRepo struct {
	mu            sync.Mutex
	registrations []models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{}
}

func (r *fakeRegistrationRepo) Create(_ context.Context, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.registrations {
		if existing.TournamentID == reg.TournamentID && existing.PlayerID == reg.PlayerID {
			return repositories.ErrRegistrationConflict
		}
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now()
	}
	r.registrations = append(r.registrations, *reg)
	return nil
}

func (r *fakeRegistrationRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRegistrationRepo) ListPlayerIDs(_ context.Context, tournamentID int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0)
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			ids = append(ids, reg.PlayerID)
		}
	}
	return ids, nil
}

func (r *fakeRegistrationRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Registration, 0)
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID {
			out = append(out, reg)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []interface{}
}

func (n *fakeNotifier) BroadcastToRoom(_ string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) sent() []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]interface{}(nil), n.messages...)
}
