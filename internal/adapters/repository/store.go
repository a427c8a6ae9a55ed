// Package repository provides the in-memory entity store for the
// assessment pipeline.
//
// Sessions and recordings share one lock so session aggregation reads a
// consistent recording set; the other entity families lock independently.
// Mutations go through Update* methods that run a closure under the lock,
// making every state transition a single atomic read-modify-write.
package repository

import (
	"context"
	"sync"

	"github.com/khelo/talenttrack/internal/domain/model"
)

// MemoryStore keeps all entities in process memory.
type MemoryStore struct {
	// assessMu guards sessions and recordings together: completion
	// counting must not interleave with concurrent recording updates
	// within the same session.
	assessMu   sync.RWMutex
	sessions   map[string]*model.AssessmentSession
	recordings map[string]*model.TestRecording
	// (session, test) -> recording id, for replace-in-place semantics
	bySessionTest map[string]string

	athleteMu sync.RWMutex
	athletes  map[string]*model.AthleteProfile

	testMu sync.RWMutex
	tests  map[string]*model.FitnessTest

	lbMu   sync.RWMutex
	scopes map[string][]model.LeaderboardRow

	subMu       sync.RWMutex
	submissions map[string]*model.Submission
	// session id -> submission id, for at-most-once-per-session lookup
	subBySession map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*model.AssessmentSession),
		recordings:    make(map[string]*model.TestRecording),
		bySessionTest: make(map[string]string),
		athletes:      make(map[string]*model.AthleteProfile),
		tests:         make(map[string]*model.FitnessTest),
		scopes:        make(map[string][]model.LeaderboardRow),
		submissions:   make(map[string]*model.Submission),
		subBySession:  make(map[string]string),
	}
}

func sessionTestKey(sessionID, testID string) string {
	return sessionID + "/" + testID
}

// ---- Athletes ----

// PutAthlete inserts or replaces an athlete profile.
func (s *MemoryStore) PutAthlete(ctx context.Context, a model.AthleteProfile) error {
	s.athleteMu.Lock()
	defer s.athleteMu.Unlock()
	cp := a
	s.athletes[a.ID] = &cp
	return nil
}

// GetAthlete returns the athlete by id.
func (s *MemoryStore) GetAthlete(ctx context.Context, id string) (model.AthleteProfile, error) {
	s.athleteMu.RLock()
	defer s.athleteMu.RUnlock()
	a, ok := s.athletes[id]
	if !ok {
		return model.AthleteProfile{}, ErrNotFound
	}
	return *a, nil
}

// UpdateAthlete applies fn to the athlete under the lock.
func (s *MemoryStore) UpdateAthlete(ctx context.Context, id string, fn func(*model.AthleteProfile) error) error {
	s.athleteMu.Lock()
	defer s.athleteMu.Unlock()
	a, ok := s.athletes[id]
	if !ok {
		return ErrNotFound
	}
	return fn(a)
}

// ListAthletes returns a snapshot of all athlete profiles.
func (s *MemoryStore) ListAthletes(ctx context.Context) ([]model.AthleteProfile, error) {
	s.athleteMu.RLock()
	defer s.athleteMu.RUnlock()
	out := make([]model.AthleteProfile, 0, len(s.athletes))
	for _, a := range s.athletes {
		out = append(out, *a)
	}
	return out, nil
}

// CountAthletes returns the number of registered athletes.
func (s *MemoryStore) CountAthletes(ctx context.Context) int {
	s.athleteMu.RLock()
	defer s.athleteMu.RUnlock()
	return len(s.athletes)
}

// ---- Fitness tests ----

// PutTest inserts or replaces a catalog entry.
func (s *MemoryStore) PutTest(ctx context.Context, t model.FitnessTest) error {
	s.testMu.Lock()
	defer s.testMu.Unlock()
	cp := t
	s.tests[t.ID] = &cp
	return nil
}

// GetTest returns a catalog entry by id.
func (s *MemoryStore) GetTest(ctx context.Context, id string) (model.FitnessTest, error) {
	s.testMu.RLock()
	defer s.testMu.RUnlock()
	t, ok := s.tests[id]
	if !ok {
		return model.FitnessTest{}, ErrNotFound
	}
	return *t, nil
}

// ListTests returns all catalog entries.
func (s *MemoryStore) ListTests(ctx context.Context) ([]model.FitnessTest, error) {
	s.testMu.RLock()
	defer s.testMu.RUnlock()
	out := make([]model.FitnessTest, 0, len(s.tests))
	for _, t := range s.tests {
		out = append(out, *t)
	}
	return out, nil
}

// ---- Sessions ----

// PutSession inserts or replaces a session.
func (s *MemoryStore) PutSession(ctx context.Context, sess model.AssessmentSession) error {
	s.assessMu.Lock()
	defer s.assessMu.Unlock()
	cp := sess
	s.sessions[sess.ID] = &cp
	return nil
}

// GetSession returns the session by id.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (model.AssessmentSession, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.AssessmentSession{}, ErrNotFound
	}
	return *sess, nil
}

// UpdateSession applies fn to the session under the lock.
func (s *MemoryStore) UpdateSession(ctx context.Context, id string, fn func(*model.AssessmentSession) error) error {
	s.assessMu.Lock()
	defer s.assessMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	return fn(sess)
}

// ListAthleteSessions returns all sessions belonging to an athlete.
func (s *MemoryStore) ListAthleteSessions(ctx context.Context, athleteID string) ([]model.AssessmentSession, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	var out []model.AssessmentSession
	for _, sess := range s.sessions {
		if sess.AthleteID == athleteID {
			out = append(out, *sess)
		}
	}
	return out, nil
}

// UpdateSessionWithRecordings applies fn to the session together with all
// of its recordings, atomically. This is the serialization point for
// completion counting: no recording in the session can change while fn runs.
func (s *MemoryStore) UpdateSessionWithRecordings(ctx context.Context, id string, fn func(*model.AssessmentSession, []*model.TestRecording) error) error {
	s.assessMu.Lock()
	defer s.assessMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	var recs []*model.TestRecording
	for _, r := range s.recordings {
		if r.SessionID == id {
			recs = append(recs, r)
		}
	}
	return fn(sess, recs)
}

// ---- Recordings ----

// PutRecording inserts or replaces a recording and indexes its
// (session, test) pair.
func (s *MemoryStore) PutRecording(ctx context.Context, r model.TestRecording) error {
	s.assessMu.Lock()
	defer s.assessMu.Unlock()
	cp := r
	s.recordings[r.ID] = &cp
	s.bySessionTest[sessionTestKey(r.SessionID, r.TestID)] = r.ID
	return nil
}

// GetRecording returns the recording by id.
func (s *MemoryStore) GetRecording(ctx context.Context, id string) (model.TestRecording, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	r, ok := s.recordings[id]
	if !ok {
		return model.TestRecording{}, ErrNotFound
	}
	return *r, nil
}

// FindRecording resolves the unique recording for a (session, test) pair.
func (s *MemoryStore) FindRecording(ctx context.Context, sessionID, testID string) (model.TestRecording, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	id, ok := s.bySessionTest[sessionTestKey(sessionID, testID)]
	if !ok {
		return model.TestRecording{}, ErrNotFound
	}
	return *s.recordings[id], nil
}

// UpdateRecording applies fn to the recording under the lock. Returning an
// error from fn leaves no partial mutation visible to other readers only if
// fn itself does not mutate before failing; state-machine guards therefore
// run before any field writes.
func (s *MemoryStore) UpdateRecording(ctx context.Context, id string, fn func(*model.TestRecording) error) error {
	s.assessMu.Lock()
	defer s.assessMu.Unlock()
	r, ok := s.recordings[id]
	if !ok {
		return ErrNotFound
	}
	return fn(r)
}

// ListSessionRecordings returns all recordings belonging to a session.
func (s *MemoryStore) ListSessionRecordings(ctx context.Context, sessionID string) ([]model.TestRecording, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	var out []model.TestRecording
	for _, r := range s.recordings {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ListTerminalRecordings returns a snapshot of every recording in a
// terminal status. The ranking engine filters these by scope.
func (s *MemoryStore) ListTerminalRecordings(ctx context.Context) ([]model.TestRecording, error) {
	s.assessMu.RLock()
	defer s.assessMu.RUnlock()
	var out []model.TestRecording
	for _, r := range s.recordings {
		if r.Status.Terminal() {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ---- Leaderboards ----

// ReplaceScope atomically swaps a scope's row set. A rebuild either fully
// replaces the rows or, if it fails before this call, leaves the prior set
// untouched.
func (s *MemoryStore) ReplaceScope(ctx context.Context, scope model.Scope, rows []model.LeaderboardRow) error {
	s.lbMu.Lock()
	defer s.lbMu.Unlock()
	cp := make([]model.LeaderboardRow, len(rows))
	copy(cp, rows)
	s.scopes[scope.Key()] = cp
	return nil
}

// ScopeRows returns the current rows for a scope, rank order preserved.
func (s *MemoryStore) ScopeRows(ctx context.Context, scope model.Scope) ([]model.LeaderboardRow, error) {
	s.lbMu.RLock()
	defer s.lbMu.RUnlock()
	rows, ok := s.scopes[scope.Key()]
	if !ok {
		return nil, nil
	}
	out := make([]model.LeaderboardRow, len(rows))
	copy(out, rows)
	return out, nil
}

// AthleteRank returns the athlete's row within a scope.
func (s *MemoryStore) AthleteRank(ctx context.Context, scope model.Scope, athleteID string) (model.LeaderboardRow, error) {
	s.lbMu.RLock()
	defer s.lbMu.RUnlock()
	for _, row := range s.scopes[scope.Key()] {
		if row.AthleteID == athleteID {
			return row, nil
		}
	}
	return model.LeaderboardRow{}, ErrNotFound
}

// ---- Submissions ----

// PutSubmission inserts a submission and indexes its session.
func (s *MemoryStore) PutSubmission(ctx context.Context, sub model.Submission) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, exists := s.subBySession[sub.SessionID]; exists {
		return ErrAlreadyExists
	}
	cp := sub
	s.submissions[sub.ID] = &cp
	s.subBySession[sub.SessionID] = sub.ID
	return nil
}

// GetSubmission returns the submission by id.
func (s *MemoryStore) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return model.Submission{}, ErrNotFound
	}
	return *sub, nil
}

// GetSubmissionBySession resolves the at-most-one submission for a session.
func (s *MemoryStore) GetSubmissionBySession(ctx context.Context, sessionID string) (model.Submission, error) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	id, ok := s.subBySession[sessionID]
	if !ok {
		return model.Submission{}, ErrNotFound
	}
	return *s.submissions[id], nil
}

// UpdateSubmission applies fn to the submission under the lock.
func (s *MemoryStore) UpdateSubmission(ctx context.Context, id string, fn func(*model.Submission) error) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return ErrNotFound
	}
	return fn(sub)
}
