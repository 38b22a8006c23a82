package model

import (
	"sort"

	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// SnapshotChange describes a risk present in both periods whose frozen
// values differ
type SnapshotChange struct {
	RiskID string        `json:"risk_id"`
	Before *RiskSnapshot `json:"before"`
	After  *RiskSnapshot `json:"after"`
	Fields []string      `json:"fields"`
}

// SnapshotComparison is the difference between two committed periods
type SnapshotComparison struct {
	From    types.Period     `json:"from"`
	To      types.Period     `json:"to"`
	New     []*RiskSnapshot  `json:"new"`
	Closed  []*RiskSnapshot  `json:"closed"`
	Changed []SnapshotChange `json:"changed"`
}

// CompareSnapshots diffs the snapshots of period a against period b.
// New risks appear only in b. Closed risks are in a and either missing
// from b or newly CLOSED in b. Changed risks are in both with different
// status, scores or linked counts.
func CompareSnapshots(from, to types.Period, a, b []*RiskSnapshot) *SnapshotComparison {
	before := make(map[string]*RiskSnapshot, len(a))
	for _, s := range a {
		before[s.RiskID] = s
	}
	after := make(map[string]*RiskSnapshot, len(b))
	for _, s := range b {
		after[s.RiskID] = s
	}

	result := &SnapshotComparison{
		From:    from,
		To:      to,
		New:     []*RiskSnapshot{},
		Closed:  []*RiskSnapshot{},
		Changed: []SnapshotChange{},
	}

	for id, s := range after {
		if _, ok := before[id]; !ok {
			result.New = append(result.New, s)
		}
	}

	for id, prev := range before {
		cur, ok := after[id]
		switch {
		case !ok:
			result.Closed = append(result.Closed, prev)
		case cur.Status == types.RiskStatusClosed && prev.Status != types.RiskStatusClosed:
			result.Closed = append(result.Closed, cur)
		default:
			if fields := diffSnapshot(prev, cur); len(fields) > 0 {
				result.Changed = append(result.Changed, SnapshotChange{
					RiskID: id,
					Before: prev,
					After:  cur,
					Fields: fields,
				})
			}
		}
	}

	sort.Slice(result.New, func(i, j int) bool { return result.New[i].RiskID < result.New[j].RiskID })
	sort.Slice(result.Closed, func(i, j int) bool { return result.Closed[i].RiskID < result.Closed[j].RiskID })
	sort.Slice(result.Changed, func(i, j int) bool { return result.Changed[i].RiskID < result.Changed[j].RiskID })
	return result
}

func diffSnapshot(a, b *RiskSnapshot) []string {
	var fields []string
	check := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}
	check("status", a.Status != b.Status)
	check("inherent_score", a.InherentScore != b.InherentScore)
	check("residual_score", a.ResidualScore != b.ResidualScore)
	check("residual_likelihood", a.ResidualLikelihood != b.ResidualLikelihood)
	check("residual_impact", a.ResidualImpact != b.ResidualImpact)
	check("control_count", a.ControlCount != b.ControlCount)
	check("indicator_count", a.IndicatorCount != b.IndicatorCount)
	check("incident_count", a.IncidentCount != b.IncidentCount)
	return fields
}
