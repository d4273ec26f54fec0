package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		in, driver, dsn string
	}{
		{"postgres://u:p@localhost/db", "postgres", "postgres://u:p@localhost/db"},
		{"postgresql://localhost/db", "postgres", "postgresql://localhost/db"},
		{"sqlite::memory:", "sqlite", ":memory:"},
		{"sqlite:/var/lib/tms.db", "sqlite", "/var/lib/tms.db"},
		{"file:tms.db?_pragma=busy_timeout(5000)", "sqlite", "file:tms.db?_pragma=busy_timeout(5000)"},
	}
	for _, tt := range tests {
		driver, dsn := driverFor(tt.in)
		assert.Equal(t, tt.driver, driver, tt.in)
		assert.Equal(t, tt.dsn, dsn, tt.in)
	}
}

func TestConfigFromEnvDefaultsToPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Contains(t, cfg.DSN, "localhost:5432")
}

func TestConnectSQLiteMemory(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestWithSessionParams(t *testing.T) {
	dsn, err := withSessionParams("postgres://u:p@localhost/db?sslmode=disable", "Europe/Berlin", "UTF8")
	require.NoError(t, err)
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "disable", q.Get("sslmode"))
	assert.Equal(t, "Europe/Berlin", q.Get("timezone"))
	assert.Equal(t, "-c client_encoding=UTF8", q.Get("options"))

	dsn, err = withSessionParams("host=localhost dbname=tms", "UTC", "")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=tms timezone='UTC'", dsn)

	dsn, err = withSessionParams("host=localhost", "", "UTF8")
	require.NoError(t, err)
	assert.Equal(t, "host=localhost options='-c client_encoding=UTF8'", dsn)

	dsn, err = withSessionParams("postgres://localhost/db", "", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", dsn)
}

func TestQuoteDSNValue(t *testing.T) {
	assert.Equal(t, `'UTC'`, quoteDSNValue("UTC"))
	assert.Equal(t, `'it\'s'`, quoteDSNValue("it's"))
	assert.Equal(t, `'a\\b'`, quoteDSNValue(`a\b`))
}
