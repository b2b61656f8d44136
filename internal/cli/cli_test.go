package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/wire"
	"github.com/noah-isme/grievance-api/pkg/config"
)

func stubConfig(t *testing.T) {
	t.Helper()
	color.NoColor = true
	prevLoad, prevBuild := loadConfig, buildContainer
	t.Cleanup(func() { loadConfig, buildContainer = prevLoad, prevBuild })
	loadConfig = func() (*config.Config, error) {
		return &config.Config{Classifier: config.ClassifierConfig{Timeout: time.Second, SafetyFailOpen: true}}, nil
	}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCmdUsesKeywordBaseline(t *testing.T) {
	stubConfig(t)

	out, err := run(t, ClassifyCmd(), "--title", "WiFi broken in library", "the wifi has been down for 3 days")
	require.NoError(t, err)
	assert.Contains(t, out, "category: technical")
	assert.Contains(t, out, "source:   keyword")
	assert.Contains(t, out, "safety:   safe")
}

func TestClassifyCmdReportsBlockedText(t *testing.T) {
	stubConfig(t)

	out, err := run(t, ClassifyCmd(), "there is a bomb threat in the hall")
	require.NoError(t, err)
	assert.Contains(t, out, "safety:   rejected")
}

func TestClassifyCmdRequiresText(t *testing.T) {
	stubConfig(t)

	_, err := run(t, ClassifyCmd())
	assert.Error(t, err)
}

func TestCommandsSurfaceBuildFailures(t *testing.T) {
	stubConfig(t)
	buildContainer = func(*config.Config, *zap.Logger) (*wire.Container, error) {
		return nil, errors.New("connect database: connection refused")
	}

	_, err := run(t, SweepCmd())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = run(t, TrackCmd(), "GRV-2025-000001")
	require.Error(t, err)
}

func TestConfigLoadFailure(t *testing.T) {
	stubConfig(t)
	loadConfig = func() (*config.Config, error) { return nil, errors.New("bad env") }

	_, err := run(t, ClassifyCmd(), "some text here")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad env")
}

func TestMigrateStatusListsApplied(t *testing.T) {
	stubConfig(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	prevOpen := openDatabase
	t.Cleanup(func() { openDatabase = prevOpen })
	openDatabase = func(config.DatabaseConfig) (*sqlx.DB, error) { return sqlx.NewDb(db, "sqlmock"), nil }

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))
	mock.ExpectClose()

	out, err := run(t, MigrateCmd(), "status")
	require.NoError(t, err)
	assert.Equal(t, "0001_init.up.sql\n", out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateRequiresFlags(t *testing.T) {
	stubConfig(t)

	_, err := run(t, UserCmd(), "create", "--email", "admin@campus.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
