package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// ErrNotFound is returned for ids missing from the store
var ErrNotFound = errors.New("session not found")

// CreateStatus tracks the last create call; the session itself only appears via push
type CreateStatus string

const (
	CreateIdle      CreateStatus = "idle"
	CreatePending   CreateStatus = "pending"
	CreateFulfilled CreateStatus = "fulfilled"
	CreateRejected  CreateStatus = "rejected"
)

// PushPolicy decides what a push does to a known session whose state changed
type PushPolicy int

const (
	// PushStateOnly copies the new state and leaves every other field untouched
	PushStateOnly PushPolicy = iota
	// PushFullReplace swaps in the pushed record
	PushFullReplace
)

// Store keeps active and terminated sessions keyed by id
type Store struct {
	mu           sync.RWMutex
	active       map[string]models.Session
	terminated   map[string]models.TerminatedSession
	createStatus CreateStatus
	policy       PushPolicy
	onChange     func()
}

// NewStore creates an empty store
func NewStore(policy PushPolicy) *Store {
	return &Store{
		active:       make(map[string]models.Session),
		terminated:   make(map[string]models.TerminatedSession),
		createStatus: CreateIdle,
		policy:       policy,
	}
}

// OnChange registers the callback fired after every mutation
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// ReplaceActive swaps the whole active map for a fetched snapshot
func (s *Store) ReplaceActive(list []models.Session) {
	next := make(map[string]models.Session, len(list))
	for _, item := range list {
		next[item.ID] = item.Normalize()
	}
	s.mu.Lock()
	s.active = next
	s.mu.Unlock()
	s.changed()
}

// ReplaceTerminated swaps the whole terminated map for a fetched snapshot
func (s *Store) ReplaceTerminated(list []models.TerminatedSession) {
	next := make(map[string]models.TerminatedSession, len(list))
	for _, item := range list {
		next[item.ID] = item.Normalize()
	}
	s.mu.Lock()
	s.terminated = next
	for id := range next {
		delete(s.active, id)
	}
	s.mu.Unlock()
	s.changed()
}

// Add inserts or overwrites one active session
func (s *Store) Add(item models.Session) {
	s.mu.Lock()
	s.addLocked(item)
	s.mu.Unlock()
	s.changed()
}

// Remove drops an active session; it reports whether the id was present
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// UpdateState changes only the state of an active session
func (s *Store) UpdateState(id string, state models.SessionState) error {
	s.mu.Lock()
	item, ok := s.active[id]
	if ok {
		item.State = models.ParseState(string(state))
		s.active[id] = item
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.changed()
	return nil
}

// Get returns an active session
func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.active[id]
	return item, ok
}

// GetTerminated returns a terminated session
func (s *Store) GetTerminated(id string) (models.TerminatedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.terminated[id]
	return item, ok
}

// Lookup finds a session in either map
func (s *Store) Lookup(id string) (models.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.active[id]; ok {
		return models.ActiveRow{S: item}, true
	}
	if item, ok := s.terminated[id]; ok {
		return models.TerminatedRow{S: item}, true
	}
	return nil, false
}

// Active lists active sessions, newest first
func (s *Store) Active() []models.Session {
	s.mu.RLock()
	out := make([]models.Session, 0, len(s.active))
	for _, item := range s.active {
		out = append(out, item)
	}
	s.mu.RUnlock()
	sortSessions(out)
	return out
}

// Terminated lists terminated sessions, newest first
func (s *Store) Terminated() []models.TerminatedSession {
	s.mu.RLock()
	out := make([]models.TerminatedSession, 0, len(s.terminated))
	for _, item := range s.terminated {
		out = append(out, item)
	}
	s.mu.RUnlock()
	sortSessions(out)
	return out
}

// Rows is the merged display list: active rows first, then terminated rows
func (s *Store) Rows() []models.Row {
	active := s.Active()
	terminated := s.Terminated()
	rows := make([]models.Row, 0, len(active)+len(terminated))
	for _, item := range active {
		rows = append(rows, models.ActiveRow{S: item})
	}
	for _, item := range terminated {
		rows = append(rows, models.TerminatedRow{S: item})
	}
	return rows
}

// CreateStatus returns the state of the last create call
func (s *Store) CreateStatus() CreateStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createStatus
}

// SetCreateStatus records the outcome of a create call
func (s *Store) SetCreateStatus(status CreateStatus) {
	s.mu.Lock()
	s.createStatus = status
	s.mu.Unlock()
	s.changed()
}

func (s *Store) addLocked(item models.Session) {
	s.active[item.ID] = item.Normalize()
	// the backend does not answer create with the session, the first push does
	if s.createStatus == CreatePending {
		s.createStatus = CreateFulfilled
	}
}

func sortSessions(list []models.Session) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
}
