package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type linkKey struct {
	riskID    string
	controlID string
}

// orgData holds every record of one organization
type orgData struct {
	risks        map[string]*model.Risk
	controls     map[string]*model.Control
	links        map[linkKey]*model.RiskControlLink
	indicators   map[string]*model.Indicator
	measurements map[string][]*model.Measurement
	alerts       map[string]*model.Alert
	statements   map[string]*model.AppetiteStatement
	categories   map[string]*model.AppetiteCategory
	tolerances   map[string]*model.ToleranceConfig
	readings     map[string][]*model.ToleranceReading
	breaches     map[string]*model.Breach
	pointer      *model.PeriodPointer
	commits      map[types.Period]*model.PeriodCommit
	snapshots    map[types.Period][]*model.RiskSnapshot
	snapshotted  map[string]bool
	counters     map[string]int64
}

type store struct {
	mu   sync.RWMutex
	orgs map[string]*orgData
}

func newStore() *store {
	return &store{orgs: make(map[string]*orgData)}
}

// org returns the data of orgID, creating it when write is true. Callers
// must hold the lock.
func (s *store) org(orgID string, write bool) *orgData {
	if d, ok := s.orgs[orgID]; ok {
		return d
	}
	d := &orgData{
		risks:        make(map[string]*model.Risk),
		controls:     make(map[string]*model.Control),
		links:        make(map[linkKey]*model.RiskControlLink),
		indicators:   make(map[string]*model.Indicator),
		measurements: make(map[string][]*model.Measurement),
		alerts:       make(map[string]*model.Alert),
		statements:   make(map[string]*model.AppetiteStatement),
		categories:   make(map[string]*model.AppetiteCategory),
		tolerances:   make(map[string]*model.ToleranceConfig),
		readings:     make(map[string][]*model.ToleranceReading),
		breaches:     make(map[string]*model.Breach),
		commits:      make(map[types.Period]*model.PeriodCommit),
		snapshots:    make(map[types.Period][]*model.RiskSnapshot),
		snapshotted:  make(map[string]bool),
		counters:     make(map[string]int64),
	}
	if write {
		s.orgs[orgID] = d
	}
	return d
}

type codeCounter struct {
	s *store
}

func (c *codeCounter) Next(ctx context.Context, orgID, prefix string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	d := c.s.org(orgID, true)
	d.counters[prefix]++
	return d.counters[prefix], nil
}
