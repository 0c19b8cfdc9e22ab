package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"browsebux-economy/metrics"
	"browsebux-economy/models"

	"github.com/google/uuid"
)

// Session is the explicit per-identity context passed into every economy
// operation: the locally projected user record, the set of tasks already
// rewarded in this session, and the accrual job that runs while it is open.
type Session struct {
	UserID   string
	OpenedAt time.Time

	mu        sync.Mutex
	user      models.User
	completed map[string]bool // false while a reward is being committed
	jobID     uuid.UUID
	closed    bool
}

func newSession(u models.User) *Session {
	return &Session{
		UserID:    u.ID,
		OpenedAt:  time.Now(),
		user:      u,
		completed: make(map[string]bool),
	}
}

// User returns the session's current view of the record.
func (s *Session) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// merge replaces the projection with a committed record, ignoring records
// older than what the session already holds.
func (s *Session) merge(u *models.User) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !s.user.UpdatedAt.IsZero() && u.UpdatedAt.Before(s.user.UpdatedAt) {
		return
	}
	s.user = *u
}

// reserveTask claims taskID for rewarding. It returns false when the task is
// already rewarded or a reward for it is in flight.
func (s *Session) reserveTask(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.completed[taskID]; seen {
		return false
	}
	s.completed[taskID] = false
	return true
}

// finishTask settles a reservation: kept when the reward committed,
// released otherwise so the task can be retried.
func (s *Session) finishTask(taskID string, committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if committed {
		s.completed[taskID] = true
		return
	}
	delete(s.completed, taskID)
}

// IsCompleted reports whether taskID was rewarded in this session.
func (s *Session) IsCompleted(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed[taskID]
}

// CompletedTasks returns the rewarded task ids, sorted.
func (s *Session) CompletedTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.completed))
	for id, done := range s.completed {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// attachJob records the accrual job. It returns false when the session was
// closed first, in which case the caller owns the job and must stop it.
func (s *Session) attachJob(jobID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.jobID = jobID
	return true
}

func (s *Session) close() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.completed = make(map[string]bool)
	return s.jobID
}

// SessionRegistry holds the open sessions, one per user id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Get(uid string) (*Session, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[uid]
	return s, ok
}

func (r *SessionRegistry) getOrCreate(u models.User) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[u.ID]; ok {
		return s, false
	}
	s := newSession(u)
	r.sessions[u.ID] = s
	return s, true
}

func (r *SessionRegistry) remove(uid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[uid]
	if ok {
		delete(r.sessions, uid)
	}
	return s, ok
}

// removeSession drops sess only if it is still the registered session for
// its user.
func (r *SessionRegistry) removeSession(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sess.UserID] != sess {
		return false
	}
	delete(r.sessions, sess.UserID)
	return true
}

func (r *SessionRegistry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of open sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionManager opens and tears down sessions, starting and cancelling the
// accrual job that belongs to each.
type SessionManager struct {
	Economy  *EconomyService
	Accrual  *AccrualLoop
	Registry *SessionRegistry
}

func NewSessionManager(economy *EconomyService, accrual *AccrualLoop) *SessionManager {
	return &SessionManager{Economy: economy, Accrual: accrual, Registry: economy.Sessions}
}

// Open ensures the user record exists and starts a session for it. Opening
// an already open session refreshes its projection and returns it.
func (m *SessionManager) Open(ctx context.Context, id models.Identity) (*Session, error) {
	u, err := m.Economy.EnsureUser(ctx, id)
	if err != nil {
		return nil, err
	}

	sess, created := m.Registry.getOrCreate(*u)
	if !created {
		sess.merge(u)
		return sess, nil
	}

	metrics.ActiveSessions.Inc()

	jobID, err := m.Accrual.Start(u.ID)
	if err != nil {
		if m.Registry.removeSession(sess) {
			sess.close()
			metrics.ActiveSessions.Dec()
		}
		return nil, err
	}
	if !sess.attachJob(jobID) {
		// closed while the job was being scheduled
		if err := m.Accrual.Stop(jobID); err != nil {
			slog.Warn("failed to remove accrual job", "user_id", u.ID, "error", err)
		}
		return nil, ErrSessionNotFound
	}

	slog.Info("session opened", "user_id", u.ID, "level", u.Level)
	return sess, nil
}

// Get returns the open session for uid.
func (m *SessionManager) Get(uid string) (*Session, error) {
	sess, ok := m.Registry.Get(uid)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Close ends the session: the accrual job is removed before anything else
// so no tick can credit a closed session.
func (m *SessionManager) Close(uid string) error {
	sess, ok := m.Registry.remove(uid)
	if !ok {
		return ErrSessionNotFound
	}
	jobID := sess.close()
	if err := m.Accrual.Stop(jobID); err != nil {
		slog.Warn("failed to remove accrual job", "user_id", uid, "error", err)
	}
	metrics.ActiveSessions.Dec()
	slog.Info("session closed", "user_id", uid, "duration", time.Since(sess.OpenedAt).Round(time.Second).String())
	return nil
}

// CloseAll ends every open session.
func (m *SessionManager) CloseAll() {
	for _, uid := range m.Registry.ids() {
		_ = m.Close(uid)
	}
}
