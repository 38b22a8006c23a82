package cli_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/cli"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

const registerConfig = `
[[category]]
id = "operational"
code = "OPS"
name = "Operational"

[[division]]
id = "finance"
code = "FIN"
name = "Finance"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600)).Required()
	return path
}

func TestRun_ValidateCommand_ValidConfig(t *testing.T) {
	configPath := writeFile(t, "config.toml", registerConfig)

	err := cli.Run(context.Background(), []string{"riskregister", "validate", "--config", configPath}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_InvalidConfig(t *testing.T) {
	configPath := writeFile(t, "config.toml", `
[[division]]
id = "Finance_Dept"
code = "FIN"
name = "Finance"
`)

	err := cli.Run(context.Background(), []string{"riskregister", "validate", "--config", configPath}, "test")
	gt.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestRun_ValidateCommand_MissingConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent.toml")

	err := cli.Run(context.Background(), []string{"riskregister", "validate", "--config", configPath}, "test")
	gt.True(t, errors.Is(err, config.ErrConfigNotFound))
}

func TestRun_ValidateCommand_DBCheckWithMemory(t *testing.T) {
	configPath := writeFile(t, "config.toml", registerConfig)

	err := cli.Run(context.Background(), []string{
		"riskregister", "validate",
		"--config", configPath,
		"--check-db",
		"--org", "org-1",
		"--repository-backend", "memory",
	}, "test")
	gt.NoError(t, err)
}

func TestRun_CommitAndStatus(t *testing.T) {
	configPath := writeFile(t, "config.toml", registerConfig)
	dbPath := filepath.Join(t.TempDir(), "register.db")
	base := []string{"--config", configPath, "--repository-backend", "sqlite", "--sqlite-path", dbPath}

	commit := append([]string{"riskregister", "commit", "--org", "org-1", "--period", "2026-Q1", "--note", "quarter close"}, base...)
	gt.NoError(t, cli.Run(context.Background(), commit, "test")).Required()

	// the same period cannot be committed twice
	err := cli.Run(context.Background(), commit, "test")
	gt.True(t, errors.Is(err, model.ErrAlreadyCommitted))

	status := append([]string{"riskregister", "status", "--org", "org-1", "--json"}, base...)
	gt.NoError(t, cli.Run(context.Background(), status, "test"))
}

func TestRun_CommitInvalidPeriod(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"riskregister", "commit",
		"--org", "org-1",
		"--period", "2026-Q5",
		"--repository-backend", "memory",
	}, "test")
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestRun_MigrateSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "register.db")

	err := cli.Run(context.Background(), []string{"riskregister", "migrate", "--sqlite-path", dbPath}, "test")
	gt.NoError(t, err).Required()

	_, err = os.Stat(dbPath)
	gt.NoError(t, err)
}

func TestRun_MigrateWithoutTarget(t *testing.T) {
	err := cli.Run(context.Background(), []string{"riskregister", "migrate"}, "test")
	gt.Value(t, err).NotNil()
}
