package model

import (
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// MaxDIMEPoints is the sum of all four DIME dimensions at their maximum
const MaxDIMEPoints = 4 * DIMEMax

// EffectivePoints is the DIME sum of a score, or 0 when the control is not
// designed or not implemented.
func EffectivePoints(s DIMEScore) int {
	if s.Design == 0 || s.Implementation == 0 {
		return 0
	}
	return s.Design + s.Implementation + s.Monitoring + s.Evaluation
}

// Effectiveness returns the control's ratio in [0, 1]
func Effectiveness(c *Control) float64 {
	return float64(EffectivePoints(c.Score)) / MaxDIMEPoints
}

// reduceByPoints lowers inherent by round((inherent-1) * points/MaxDIMEPoints),
// rounding half up in integer arithmetic so no floating point error leaks
// into the score.
func reduceByPoints(inherent, points int) int {
	reduction := (2*(inherent-1)*points + MaxDIMEPoints) / (2 * MaxDIMEPoints)
	return max(1, inherent-reduction)
}

// bestPoints returns the highest effective points among controls covering
// dim. Controls do not stack.
func bestPoints(controls []*Control, dim types.TargetDimension) int {
	best := 0
	for _, c := range controls {
		if c == nil || !c.Target.Covers(dim) {
			continue
		}
		best = max(best, EffectivePoints(c.Score))
	}
	return best
}

// ResidualDimension returns the residual score of one dimension given all
// controls linked to the risk
func ResidualDimension(inherent int, controls []*Control, dim types.TargetDimension) int {
	return reduceByPoints(inherent, bestPoints(controls, dim))
}

// Residual is the outcome of applying linked controls to a risk
type Residual struct {
	InherentLikelihood      int     `json:"inherent_likelihood"`
	InherentImpact          int     `json:"inherent_impact"`
	InherentScore           int     `json:"inherent_score"`
	Likelihood              int     `json:"likelihood_residual"`
	Impact                  int     `json:"impact_residual"`
	Score                   int     `json:"score"`
	LikelihoodEffectiveness float64 `json:"likelihood_effectiveness"`
	ImpactEffectiveness     float64 `json:"impact_effectiveness"`
}

// ComputeResidual recomputes residual likelihood, impact and score from
// the risk's inherent values and the controls linked to it
func ComputeResidual(risk *Risk, controls []*Control) Residual {
	lp := bestPoints(controls, types.TargetLikelihood)
	ip := bestPoints(controls, types.TargetImpact)

	res := Residual{
		InherentLikelihood:      risk.InherentLikelihood,
		InherentImpact:          risk.InherentImpact,
		InherentScore:           risk.InherentScore(),
		Likelihood:              reduceByPoints(risk.InherentLikelihood, lp),
		Impact:                  reduceByPoints(risk.InherentImpact, ip),
		LikelihoodEffectiveness: float64(lp) / MaxDIMEPoints,
		ImpactEffectiveness:     float64(ip) / MaxDIMEPoints,
	}
	res.Score = res.Likelihood * res.Impact
	return res
}
