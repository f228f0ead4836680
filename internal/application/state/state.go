package state

import (
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// SessionState is the mutable, append-only record of all artifacts produced
// during one analysis run. Appends are serialized by a single-writer lock;
// artifacts are never mutated or deleted after append, so reads hand out
// copies and history stays stable for audit and event replay.
type SessionState struct {
	mu        sync.RWMutex
	sessionID string
	seq       int64
	artifacts []domain.Artifact

	// Derived indices into artifacts.
	latestReport  map[domain.Role]int
	latestVerdict map[domain.Stage]int
	decisionIdx   int
}

// New creates an empty session state.
func New(sessionID string) *SessionState {
	return &SessionState{
		sessionID:     sessionID,
		latestReport:  make(map[domain.Role]int),
		latestVerdict: make(map[domain.Stage]int),
		decisionIdx:   -1,
	}
}

// SessionID returns the owning session id.
func (s *SessionState) SessionID() string { return s.sessionID }

// Append assigns the next sequence number to a and records it. The returned
// artifact is the stored copy with Seq and CreatedAt populated. Ordering of
// concurrently completing artifacts is whatever order their appends win the
// lock in.
func (s *SessionState) Append(a domain.Artifact) domain.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	a.Seq = s.seq
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.artifacts = append(s.artifacts, a)

	idx := len(s.artifacts) - 1
	switch a.Kind {
	case domain.ArtifactAnalystReport:
		s.latestReport[a.Role] = idx
	case domain.ArtifactDebateVerdict:
		s.latestVerdict[a.Stage] = idx
	case domain.ArtifactFinalDecision:
		s.decisionIdx = idx
	}

	return a
}

// Artifacts returns a copy of the full artifact history in append order.
func (s *SessionState) Artifacts() []domain.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Len returns the number of appended artifacts.
func (s *SessionState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}

// LatestReport returns the most recent analyst report for a role.
func (s *SessionState) LatestReport(role domain.Role) (domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.latestReport[role]
	if !ok {
		return domain.Artifact{}, false
	}
	return s.artifacts[idx], true
}

// Reports returns the latest report per analyst role, in canonical roster
// order, skipping roles that produced nothing.
func (s *SessionState) Reports() []domain.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Artifact, 0, len(s.latestReport))
	for _, role := range domain.AnalystRoles {
		if idx, ok := s.latestReport[role]; ok {
			out = append(out, s.artifacts[idx])
		}
	}
	return out
}

// Verdict returns the debate verdict recorded for a stage.
func (s *SessionState) Verdict(stage domain.Stage) (domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.latestVerdict[stage]
	if !ok {
		return domain.Artifact{}, false
	}
	return s.artifacts[idx], true
}

// Decision returns the final decision artifact if one was appended.
func (s *SessionState) Decision() (domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.decisionIdx < 0 {
		return domain.Artifact{}, false
	}
	return s.artifacts[s.decisionIdx], true
}

// LatestByKindRole returns the most recent artifact matching kind and role.
// A zero role matches any role.
func (s *SessionState) LatestByKindRole(kind domain.ArtifactKind, role domain.Role) (domain.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.artifacts) - 1; i >= 0; i-- {
		a := s.artifacts[i]
		if a.Kind == kind && (role == "" || a.Role == role) {
			return a, true
		}
	}
	return domain.Artifact{}, false
}

// TurnsForStage returns all debate turns recorded for a stage, in order.
func (s *SessionState) TurnsForStage(stage domain.Stage) []domain.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Artifact
	for _, a := range s.artifacts {
		if a.Stage == stage && a.Turn != nil {
			out = append(out, a)
		}
	}
	return out
}
