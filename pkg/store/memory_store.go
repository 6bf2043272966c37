package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and runs the
// API without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	commands   map[string]domain.Command
	responses  map[string][]domain.CommandResponse
	users      map[string]domain.User // key: user ID
	sessions   map[string]string      // session id -> user ID
	executions []domain.CommandExecution
	downloads  []domain.FileDownload
	rollups    map[string]domain.DailyRollup // key: YYYY-MM-DD
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commands:  make(map[string]domain.Command),
		responses: make(map[string][]domain.CommandResponse),
		users:     make(map[string]domain.User),
		sessions:  make(map[string]string),
		rollups:   make(map[string]domain.DailyRollup),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) ListActiveCommands(context.Context) ([]domain.Command, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Command, 0, len(m.commands))
	for _, c := range m.commands {
		if c.Active {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *MemoryStore) GetActiveCommand(_ context.Context, name string) (domain.Command, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commands[name]
	if !ok || !c.Active {
		return domain.Command{}, false, nil
	}
	return c, true, nil
}

func (m *MemoryStore) LatestResponse(_ context.Context, name string) (domain.CommandResponse, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return commands.LatestActive(m.responses[name])
}

func (m *MemoryStore) UpsertCommand(_ context.Context, cmd domain.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.commands[cmd.Name]; ok {
		cmd.CreatedAt = prev.CreatedAt
	} else if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	cmd.UpdatedAt = now
	m.commands[cmd.Name] = cmd
	return nil
}

func (m *MemoryStore) UpsertCommandResponse(_ context.Context, resp domain.CommandResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	resp.UpdatedAt = now
	list := m.responses[resp.CommandName]
	for i := range list {
		if list[i].Version == resp.Version {
			resp.ID = list[i].ID
			resp.CreatedAt = list[i].CreatedAt
			list[i] = resp
			return nil
		}
	}
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	resp.CreatedAt = now
	m.responses[resp.CommandName] = append(list, resp)
	return nil
}

func (m *MemoryStore) NextResponseVersion(_ context.Context, commandName string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, r := range m.responses[commandName] {
		if r.Version > max {
			max = r.Version
		}
	}
	return max + 1, nil
}

func (m *MemoryStore) TouchUser(_ context.Context, visit domain.Visit) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := visit.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, ok := m.sessions[visit.SessionID]
	if !ok {
		u := domain.User{
			ID:           uuid.NewString(),
			SessionID:    visit.SessionID,
			Nickname:     visit.Nickname,
			FirstVisitAt: now,
			LastVisitAt:  now,
			Country:      visit.Country,
			Timezone:     visit.Timezone,
			IPAddress:    visit.IPAddress,
			UserAgent:    visit.UserAgent,
		}
		m.users[u.ID] = u
		m.sessions[u.SessionID] = u.ID
		return u, nil
	}
	u := m.users[id]
	if now.After(u.LastVisitAt) {
		u.LastVisitAt = now
	}
	u.Nickname = coalesce(visit.Nickname, u.Nickname)
	u.Timezone = coalesce(visit.Timezone, u.Timezone)
	u.Country = coalesce(visit.Country, u.Country)
	u.IPAddress = coalesce(visit.IPAddress, u.IPAddress)
	u.UserAgent = coalesce(visit.UserAgent, u.UserAgent)
	m.users[id] = u
	return u, nil
}

func (m *MemoryStore) GetUserBySession(_ context.Context, sessionID string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessions[sessionID]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) UpdateUserProfile(_ context.Context, sessionID string, update ProfileUpdate) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sessions[sessionID]
	if !ok {
		return domain.User{}, false, nil
	}
	u := m.users[id]
	if update.Nickname != nil {
		u.Nickname = *update.Nickname
	}
	if update.Timezone != nil {
		u.Timezone = *update.Timezone
	}
	m.users[id] = u
	return u, true, nil
}

func (m *MemoryStore) IncrementUserCommands(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, fmt.Errorf("increment user %s: %w", userID, ErrNotFound)
	}
	u.TotalCommands++
	m.users[userID] = u
	return u.TotalCommands, nil
}

func (m *MemoryStore) CountUserActivity(_ context.Context, userID string) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var executions, downloads int64
	for _, e := range m.executions {
		if e.UserID != nil && *e.UserID == userID {
			executions++
		}
	}
	for _, d := range m.downloads {
		if d.UserID == userID {
			downloads++
		}
	}
	return executions, downloads, nil
}

func (m *MemoryStore) DeleteUserData(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("delete user %s: %w", userID, ErrNotFound)
	}
	kept := m.downloads[:0]
	for _, d := range m.downloads {
		if d.UserID != userID {
			kept = append(kept, d)
		}
	}
	m.downloads = kept
	for i := range m.executions {
		if m.executions[i].UserID != nil && *m.executions[i].UserID == userID {
			m.executions[i].UserID = nil
		}
	}
	delete(m.sessions, u.SessionID)
	delete(m.users, userID)
	return nil
}

func (m *MemoryStore) AppendExecution(_ context.Context, exec domain.CommandExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	for _, e := range m.executions {
		if e.ID == exec.ID {
			return nil
		}
	}
	if exec.UserID != nil {
		id := *exec.UserID
		exec.UserID = &id
	}
	m.executions = append(m.executions, exec)
	return nil
}

func (m *MemoryStore) AppendDownload(_ context.Context, dl domain.FileDownload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	for _, d := range m.downloads {
		if d.ID == dl.ID {
			return nil
		}
	}
	m.downloads = append(m.downloads, dl)
	return nil
}

// Executions returns a copy of the execution log.
func (m *MemoryStore) Executions() []domain.CommandExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.CommandExecution(nil), m.executions...)
}

// Downloads returns a copy of the download log.
func (m *MemoryStore) Downloads() []domain.FileDownload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.FileDownload(nil), m.downloads...)
}

func (m *MemoryStore) CountUsers(_ context.Context, q UserQuery) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, u := range m.users {
		if !q.LastVisit.Contains(u.LastVisitAt) {
			continue
		}
		if q.MinCommands > 0 && u.TotalCommands <= q.MinCommands {
			continue
		}
		n++
	}
	return n, nil
}

func (m *MemoryStore) AverageUserCommands(context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.users) == 0 {
		return 0, nil
	}
	var sum int64
	for _, u := range m.users {
		sum += u.TotalCommands
	}
	return float64(sum) / float64(len(m.users)), nil
}

func (m *MemoryStore) CountExecutions(_ context.Context, q ExecutionQuery) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.executions {
		if matchExecution(e, q) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountDownloads(_ context.Context, q DownloadQuery) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, d := range m.downloads {
		if q.Range.Contains(d.DownloadTime) && (!q.SuccessOnly || d.Success) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CommandStats(_ context.Context, q ExecutionQuery, limit int) ([]domain.CommandStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byName := make(map[string]*domain.CommandStat)
	for _, e := range m.executions {
		if !matchExecution(e, q) {
			continue
		}
		st, ok := byName[e.CommandName]
		if !ok {
			st = &domain.CommandStat{Command: e.CommandName}
			byName[e.CommandName] = st
		}
		st.Executions++
		st.TotalResponseTimeMs += e.ResponseTimeMs
		if e.Success {
			st.Successful++
		}
	}
	res := make([]domain.CommandStat, 0, len(byName))
	for _, st := range byName {
		res = append(res, *st)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Executions != res[j].Executions {
			return res[i].Executions > res[j].Executions
		}
		return res[i].Command < res[j].Command
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) ExecutionTimeline(_ context.Context, q ExecutionQuery, period Period) ([]domain.Bucket, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("unknown period %q", period)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, e := range m.executions {
		if matchExecution(e, q) {
			counts[period.Key(e.ExecutionTime)]++
		}
	}
	res := make([]domain.Bucket, 0, len(counts))
	for k, n := range counts {
		res = append(res, domain.Bucket{Key: k, Count: n})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}

func (m *MemoryStore) RecentActivity(_ context.Context, q ExecutionQuery, limit int) ([]domain.ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ActivityEntry, 0)
	for _, e := range m.executions {
		if !matchExecution(e, q) {
			continue
		}
		entry := domain.ActivityEntry{CommandExecution: e}
		if e.UserID != nil {
			if u, ok := m.users[*e.UserID]; ok {
				entry.Nickname = u.Nickname
				entry.Country = u.Country
			}
		}
		res = append(res, entry)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].ExecutionTime.After(res[j].ExecutionTime)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) ActiveUsers(_ context.Context, r TimeRange, limit int) ([]domain.UserActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UserActivity, 0)
	for _, u := range m.users {
		if !r.Contains(u.LastVisitAt) {
			continue
		}
		ua := domain.UserActivity{User: u}
		for _, e := range m.executions {
			if e.UserID != nil && *e.UserID == u.ID && r.Contains(e.ExecutionTime) {
				ua.PeriodCommands++
			}
		}
		for _, d := range m.downloads {
			if d.UserID == u.ID && r.Contains(d.DownloadTime) {
				ua.PeriodDownloads++
			}
		}
		res = append(res, ua)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].TotalCommands != res[j].TotalCommands {
			return res[i].TotalCommands > res[j].TotalCommands
		}
		return res[i].LastVisitAt.After(res[j].LastVisitAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) UserDistribution(_ context.Context, field DistributionField, r TimeRange) ([]domain.Bucket, error) {
	if _, err := distributionColumn(field); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, u := range m.users {
		if !r.Contains(u.LastVisitAt) {
			continue
		}
		key := u.Country
		if field == DistributionTimezone {
			key = u.Timezone
		}
		if key == "" {
			continue
		}
		counts[key]++
	}
	res := make([]domain.Bucket, 0, len(counts))
	for k, n := range counts {
		res = append(res, domain.Bucket{Key: k, Count: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Key < res[j].Key
	})
	return res, nil
}

func (m *MemoryStore) UpsertDailyRollup(_ context.Context, rollup domain.DailyRollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rollup.UpdatedAt.IsZero() {
		rollup.UpdatedAt = time.Now().UTC()
	}
	m.rollups[rollup.Date.Format(time.DateOnly)] = rollup
	return nil
}

func (m *MemoryStore) ListDailyRollups(_ context.Context, r TimeRange) ([]domain.DailyRollup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.DailyRollup, 0, len(m.rollups))
	for _, roll := range m.rollups {
		if r.Contains(roll.Date) {
			res = append(res, roll)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

func (m *MemoryStore) PurgeFailedBefore(_ context.Context, cutoff time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var executions, downloads int64
	keptExec := m.executions[:0]
	for _, e := range m.executions {
		if !e.Success && e.ExecutionTime.Before(cutoff) {
			executions++
			continue
		}
		keptExec = append(keptExec, e)
	}
	m.executions = keptExec
	keptDl := m.downloads[:0]
	for _, d := range m.downloads {
		if !d.Success && d.DownloadTime.Before(cutoff) {
			downloads++
			continue
		}
		keptDl = append(keptDl, d)
	}
	m.downloads = keptDl
	return executions, downloads, nil
}

func matchExecution(e domain.CommandExecution, q ExecutionQuery) bool {
	if !q.Range.Contains(e.ExecutionTime) {
		return false
	}
	return !q.SuccessOnly || e.Success
}

func coalesce(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
