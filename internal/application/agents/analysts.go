package agents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// dataSource names one vendor tool an analyst consults before generating.
type dataSource struct {
	tool  string
	label string
}

// analystUnit implements the four roster analysts. Analysts declare no
// dependency on prior artifacts: their inputs are vendor data only.
type analystUnit struct {
	deps
	role    domain.Role
	kind    string
	sources []dataSource
}

func newAnalyst(d deps, role domain.Role, kind string, sources []dataSource) *analystUnit {
	return &analystUnit{deps: d, role: role, kind: kind, sources: sources}
}

func (u *analystUnit) Role() domain.Role { return u.role }

// Run fetches the role's vendor data and generates the report. A failed
// data fetch degrades the report instead of failing the unit; only a failed
// generative call surfaces as a unit error.
func (u *analystUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	sess := req.Session
	degraded := false

	var data strings.Builder
	for _, src := range u.sources {
		out, err := u.fetch(ctx, u.role, req.Stage, src.tool, map[string]string{
			"symbol":   sess.Symbol,
			"date":     sess.AsOfDate,
			"lookback": strconv.Itoa(sess.LookbackDays),
		})
		if err != nil {
			var tie *domain.ToolInvocationError
			if !errors.As(err, &tie) {
				return domain.Artifact{}, err
			}
			u.logger.Warn("analyst data fetch failed, continuing degraded",
				zap.String("role", string(u.role)),
				zap.String("tool", src.tool),
				zap.Error(err))
			degraded = true
			fmt.Fprintf(&data, "## %s\n(data unavailable: %s)\n\n", src.label, tie.Kind)
			continue
		}
		fmt.Fprintf(&data, "## %s\n%s\n\n", src.label, out)
	}

	system := fmt.Sprintf(analystSystemTemplate, u.kind)
	prompt := fmt.Sprintf("%s\n\n# Source data\n%s", subjectLine(sess), strings.TrimSpace(data.String()))

	text, err := u.generate(ctx, u.role, req.Stage, system, prompt, false)
	if err != nil {
		return domain.Artifact{}, err
	}

	indicators := ParseIndicators(text)
	if indicators == nil {
		degraded = true
	}

	return domain.Artifact{
		Stage:    req.Stage,
		Role:     u.role,
		Kind:     domain.ArtifactAnalystReport,
		Degraded: degraded,
		Content:  text,
		Report:   &domain.AnalystReport{Indicators: indicators},
	}, nil
}

// analystSources wires each roster analyst to its vendor tools.
func analystSources(role domain.Role) (kind string, sources []dataSource) {
	switch role {
	case domain.RoleMarketAnalyst:
		return "market", []dataSource{
			{tool: "market.quote", label: "Latest quote"},
			{tool: "market.candles", label: "Price history"},
		}
	case domain.RoleSocialAnalyst:
		return "social media sentiment", []dataSource{
			{tool: "social.sentiment", label: "Social sentiment"},
		}
	case domain.RoleNewsAnalyst:
		return "news", []dataSource{
			{tool: "news.headlines", label: "Recent headlines"},
		}
	case domain.RoleFundamentalsAnalyst:
		return "fundamentals", []dataSource{
			{tool: "fundamentals.profile", label: "Company fundamentals"},
		}
	default:
		return string(role), nil
	}
}
