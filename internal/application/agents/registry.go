package agents

import (
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/tools"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// Registry maps every known role to its concrete unit. The role set is
// closed; the engine resolves the requested roster against it once at
// session start and never dispatches dynamically beyond that.
type Registry struct {
	units  map[domain.Role]Unit
	synths map[domain.Role]Synthesizer
}

// NewRegistry builds the full role registry over a shared tool invoker.
func NewRegistry(invoker *tools.Invoker, models Models, logger *zap.Logger) *Registry {
	d := deps{invoker: invoker, models: models, logger: logger}

	r := &Registry{
		units:  make(map[domain.Role]Unit),
		synths: make(map[domain.Role]Synthesizer),
	}

	for _, role := range domain.AnalystRoles {
		kind, sources := analystSources(role)
		r.units[role] = newAnalyst(d, role, kind, sources)
	}

	r.units[domain.RoleBullResearcher] = newResearcher(d, domain.RoleBullResearcher, "bullish", domain.RoleBearResearcher)
	r.units[domain.RoleBearResearcher] = newResearcher(d, domain.RoleBearResearcher, "bearish", domain.RoleBullResearcher)

	for _, role := range domain.RiskDebateOrder {
		r.units[role] = newRiskPersona(d, role)
	}

	rm := &researchManagerUnit{deps: d}
	r.units[domain.RoleResearchManager] = rm
	r.synths[domain.RoleResearchManager] = rm

	r.units[domain.RoleTrader] = &traderUnit{deps: d}
	r.units[domain.RolePortfolioManager] = &portfolioManagerUnit{deps: d}
	r.synths[domain.RoleRiskManager] = &riskManagerUnit{deps: d}

	return r
}

// Unit resolves a role to its unit.
func (r *Registry) Unit(role domain.Role) (Unit, bool) {
	u, ok := r.units[role]
	return u, ok
}

// Synthesizer resolves a debate synthesizer role.
func (r *Registry) Synthesizer(role domain.Role) (Synthesizer, bool) {
	s, ok := r.synths[role]
	return s, ok
}

// Known reports whether role is part of the closed role set.
func (r *Registry) Known(role domain.Role) bool {
	if _, ok := r.units[role]; ok {
		return true
	}
	_, ok := r.synths[role]
	return ok
}
