package store

import (
	"sort"
	"sync"
	"time"

	"goaljournal/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests and local dev.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	goals    map[string]domain.Goal
	journals map[string]domain.JournalEntry
	collects map[string]domain.Collect
	letters  map[string]domain.Letter
	tasks    map[string]domain.ScheduledTask // key: goal ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		goals:    make(map[string]domain.Goal),
		journals: make(map[string]domain.JournalEntry),
		collects: make(map[string]domain.Collect),
		letters:  make(map[string]domain.Letter),
		tasks:    make(map[string]domain.ScheduledTask),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveGoal(g domain.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[g.ID] = g
	return nil
}

func (m *MemoryStore) GetGoal(id string) (domain.Goal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	return g, ok, nil
}

func (m *MemoryStore) ListGoalsByUser(userID string) ([]domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Goal, 0)
	for _, g := range m.goals {
		if g.UserID == userID {
			res = append(res, g)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// DeleteGoal removes a goal and cascades to its journals, collects,
// letters, and scheduler bookkeeping, matching the Postgres FKs.
func (m *MemoryStore) DeleteGoal(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.goals, id)
	for journalID, e := range m.journals {
		if e.GoalID == id {
			delete(m.journals, journalID)
		}
	}
	for collectID, c := range m.collects {
		if c.GoalID == id {
			delete(m.collects, collectID)
		}
	}
	for letterID, l := range m.letters {
		if l.GoalID == id {
			delete(m.letters, letterID)
		}
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStore) SaveJournalEntry(e domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals[e.ID] = e
	return nil
}

func (m *MemoryStore) GetJournalEntry(id string) (domain.JournalEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.journals[id]
	return e, ok, nil
}

func (m *MemoryStore) ListJournalEntries(goalID string) ([]domain.JournalEntry, error) {
	return m.listJournals(goalID, 0)
}

func (m *MemoryStore) ListRecentJournalEntries(goalID string, limit int) ([]domain.JournalEntry, error) {
	return m.listJournals(goalID, limit)
}

func (m *MemoryStore) listJournals(goalID string, limit int) ([]domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.JournalEntry, 0)
	for _, e := range m.journals {
		if e.GoalID == goalID {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) CountJournalEntries(goalID, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.journals {
		if e.GoalID == goalID && e.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) DeleteJournalEntry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.journals, id)
	return nil
}

func (m *MemoryStore) SaveCollect(c domain.Collect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collects[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCollect(id string) (domain.Collect, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collects[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCollectsByGoal(goalID string) ([]domain.Collect, error) {
	return m.listCollects(goalID, 0)
}

func (m *MemoryStore) ListRecentCollects(goalID string, limit int) ([]domain.Collect, error) {
	return m.listCollects(goalID, limit)
}

func (m *MemoryStore) listCollects(goalID string, limit int) ([]domain.Collect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Collect, 0)
	for _, c := range m.collects {
		if c.GoalID == goalID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) DeleteCollect(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collects, id)
	return nil
}

func (m *MemoryStore) SaveLetter(l domain.Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters[l.ID] = l
	return nil
}

func (m *MemoryStore) GetLetter(id string) (domain.Letter, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.letters[id]
	return l, ok, nil
}

func (m *MemoryStore) ListLettersByGoal(goalID string) ([]domain.Letter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Letter, 0)
	for _, l := range m.letters {
		if l.GoalID == goalID {
			res = append(res, l)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) MarkLetterRead(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.letters[id]
	if !ok || l.ReadAt != nil {
		return nil
	}
	l.ReadAt = &at
	m.letters[id] = l
	return nil
}

func (m *MemoryStore) UpsertScheduledTask(t domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.GoalID] = t
	return nil
}

func (m *MemoryStore) GetScheduledTask(goalID string) (domain.ScheduledTask, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[goalID]
	return t, ok, nil
}
