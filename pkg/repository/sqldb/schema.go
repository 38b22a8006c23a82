package sqldb

// Every table keeps the full record as JSON in data. The other columns
// exist for keys, uniqueness and ordering. The statements run on both
// SQLite and PostgreSQL.

const schemaRisks = `
CREATE TABLE IF NOT EXISTS risks (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS controls (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS risk_controls (
    org_id TEXT NOT NULL,
    risk_id TEXT NOT NULL,
    control_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, risk_id, control_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_controls_control ON risk_controls(org_id, control_id);
`

const schemaIndicators = `
CREATE TABLE IF NOT EXISTS indicators (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    risk_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS measurements (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    indicator_id TEXT NOT NULL,
    recorded_ns BIGINT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE INDEX IF NOT EXISTS idx_measurements_indicator ON measurements(org_id, indicator_id, recorded_ns);

CREATE TABLE IF NOT EXISTS alerts (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    indicator_id TEXT NOT NULL,
    state TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_ns BIGINT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active ON alerts(org_id, indicator_id)
    WHERE state IN ('OPEN', 'ACKNOWLEDGED');
`

const schemaAppetite = `
CREATE TABLE IF NOT EXISTS appetite_statements (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    status TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_ns BIGINT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS appetite_categories (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    statement_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id),
    UNIQUE (org_id, statement_id, category_id)
);

CREATE TABLE IF NOT EXISTS tolerances (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    appetite_category_id TEXT NOT NULL,
    indicator_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tolerances_indicator ON tolerances(org_id, indicator_id)
    WHERE indicator_id <> '';

CREATE TABLE IF NOT EXISTS tolerance_readings (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    tolerance_id TEXT NOT NULL,
    recorded_ns BIGINT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE INDEX IF NOT EXISTS idx_tolerance_readings ON tolerance_readings(org_id, tolerance_id, recorded_ns);

CREATE TABLE IF NOT EXISTS breaches (
    org_id TEXT NOT NULL,
    id TEXT NOT NULL,
    tolerance_id TEXT NOT NULL,
    state TEXT NOT NULL,
    version INTEGER NOT NULL,
    detected_ns BIGINT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE INDEX IF NOT EXISTS idx_breaches_tolerance ON breaches(org_id, tolerance_id, state);
`

const schemaPeriods = `
CREATE TABLE IF NOT EXISTS period_pointers (
    org_id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS period_commits (
    org_id TEXT NOT NULL,
    period TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, period)
);

CREATE TABLE IF NOT EXISTS risk_snapshots (
    org_id TEXT NOT NULL,
    period TEXT NOT NULL,
    risk_id TEXT NOT NULL,
    data TEXT NOT NULL,
    PRIMARY KEY (org_id, period, risk_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_snapshots_risk ON risk_snapshots(org_id, risk_id);

CREATE TABLE IF NOT EXISTS code_counters (
    org_id TEXT NOT NULL,
    prefix TEXT NOT NULL,
    value BIGINT NOT NULL,
    PRIMARY KEY (org_id, prefix)
);
`

func schemas() []string {
	return []string{
		schemaRisks,
		schemaIndicators,
		schemaAppetite,
		schemaPeriods,
	}
}
