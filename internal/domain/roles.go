package domain

// Role identifies one functional participant in the pipeline.
type Role string

const (
	// Analyst roster candidates. These run concurrently in the analyst stage.
	RoleMarketAnalyst       Role = "market"
	RoleSocialAnalyst       Role = "social"
	RoleNewsAnalyst         Role = "news"
	RoleFundamentalsAnalyst Role = "fundamentals"

	// Research debate participants and synthesizer.
	RoleBullResearcher  Role = "bull_researcher"
	RoleBearResearcher  Role = "bear_researcher"
	RoleResearchManager Role = "research_manager"

	// Trading and risk roles.
	RoleTrader           Role = "trader"
	RoleAggressiveRisk   Role = "aggressive_risk"
	RoleNeutralRisk      Role = "neutral_risk"
	RoleConservativeRisk Role = "conservative_risk"
	RoleRiskManager      Role = "risk_manager"
	RolePortfolioManager Role = "portfolio_manager"
)

// AnalystRoles is the closed set of roles a caller may select for the
// analyst fan-out, in canonical order.
var AnalystRoles = []Role{
	RoleMarketAnalyst,
	RoleSocialAnalyst,
	RoleNewsAnalyst,
	RoleFundamentalsAnalyst,
}

// ResearchDebateOrder fixes the turn rotation for the research debate:
// the bull always opens.
var ResearchDebateOrder = []Role{RoleBullResearcher, RoleBearResearcher}

// RiskDebateOrder fixes the turn rotation for the risk debate.
var RiskDebateOrder = []Role{RoleAggressiveRisk, RoleNeutralRisk, RoleConservativeRisk}

// IsAnalyst reports whether r is a selectable analyst role.
func IsAnalyst(r Role) bool {
	for _, a := range AnalystRoles {
		if a == r {
			return true
		}
	}
	return false
}

// RiskPersona maps a risk debate role to its persona label.
func RiskPersona(r Role) string {
	switch r {
	case RoleAggressiveRisk:
		return "aggressive"
	case RoleNeutralRisk:
		return "neutral"
	case RoleConservativeRisk:
		return "conservative"
	default:
		return ""
	}
}
