package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Risk() RiskRepository
	Control() ControlRepository
	Indicator() IndicatorRepository
	Alert() AlertRepository
	Appetite() AppetiteRepository
	Tolerance() ToleranceRepository
	Breach() BreachRepository
	Period() PeriodRepository
	CodeCounter() CodeCounter

	Close() error
}
