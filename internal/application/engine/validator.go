package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// Validator validates analyze requests against the closed role set and the
// engine bounds. Validation happens synchronously, before any stage starts;
// an unknown role fails the whole request with no partial run.
type Validator struct {
	engine config.EngineConfig
}

// NewValidator creates a request validator bound to the engine limits.
func NewValidator(engine config.EngineConfig) *Validator {
	return &Validator{engine: engine}
}

// Validate checks an analyze request and returns a ConfigurationError on
// the first violation.
func (v *Validator) Validate(req *domain.AnalyzeRequest) error {
	if req == nil {
		return &domain.ConfigurationError{Field: "request", Msg: "request is nil"}
	}

	if strings.TrimSpace(req.Symbol) == "" {
		return &domain.ConfigurationError{Field: "symbol", Msg: "symbol is required"}
	}

	if _, err := time.Parse("2006-01-02", req.AsOfDate); err != nil {
		return &domain.ConfigurationError{Field: "as_of_date", Msg: "must be a YYYY-MM-DD date"}
	}

	if len(req.AnalystRoster) == 0 {
		return &domain.ConfigurationError{Field: "analysts", Msg: "at least one analyst role is required"}
	}
	seen := make(map[domain.Role]bool, len(req.AnalystRoster))
	for _, role := range req.AnalystRoster {
		if !domain.IsAnalyst(role) {
			return &domain.ConfigurationError{Field: "analysts", Msg: fmt.Sprintf("unknown analyst role %q", role)}
		}
		if seen[role] {
			return &domain.ConfigurationError{Field: "analysts", Msg: fmt.Sprintf("duplicate analyst role %q", role)}
		}
		seen[role] = true
	}

	if req.ResearchDepth < 1 {
		return &domain.ConfigurationError{Field: "research_depth", Msg: "must be a positive integer"}
	}
	if req.ResearchDepth > v.engine.MaxResearchDepth {
		return &domain.ConfigurationError{Field: "research_depth", Msg: fmt.Sprintf("exceeds maximum of %d", v.engine.MaxResearchDepth)}
	}

	if req.LookbackDays < 1 {
		return &domain.ConfigurationError{Field: "lookback_days", Msg: "must be a positive integer"}
	}
	if req.LookbackDays > v.engine.MaxLookbackDays {
		return &domain.ConfigurationError{Field: "lookback_days", Msg: fmt.Sprintf("exceeds maximum of %d", v.engine.MaxLookbackDays)}
	}

	return nil
}
