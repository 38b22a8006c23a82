package memory

import (
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps the whole register in process. All sub-repositories share
// one store so that multi-entity operations are atomic.
type Memory struct {
	store     *store
	risk      *riskRepository
	control   *controlRepository
	indicator *indicatorRepository
	alert     *alertRepository
	appetite  *appetiteRepository
	tolerance *toleranceRepository
	breach    *breachRepository
	period    *periodRepository
	counter   *codeCounter
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	s := newStore()
	return &Memory{
		store:     s,
		risk:      &riskRepository{s: s},
		control:   &controlRepository{s: s},
		indicator: &indicatorRepository{s: s},
		alert:     &alertRepository{s: s},
		appetite:  &appetiteRepository{s: s},
		tolerance: &toleranceRepository{s: s},
		breach:    &breachRepository{s: s},
		period:    &periodRepository{s: s},
		counter:   &codeCounter{s: s},
	}
}

func (m *Memory) Risk() interfaces.RiskRepository           { return m.risk }
func (m *Memory) Control() interfaces.ControlRepository     { return m.control }
func (m *Memory) Indicator() interfaces.IndicatorRepository { return m.indicator }
func (m *Memory) Alert() interfaces.AlertRepository         { return m.alert }
func (m *Memory) Appetite() interfaces.AppetiteRepository   { return m.appetite }
func (m *Memory) Tolerance() interfaces.ToleranceRepository { return m.tolerance }
func (m *Memory) Breach() interfaces.BreachRepository       { return m.breach }
func (m *Memory) Period() interfaces.PeriodRepository       { return m.period }
func (m *Memory) CodeCounter() interfaces.CodeCounter       { return m.counter }

func (m *Memory) Close() error {
	return nil
}
