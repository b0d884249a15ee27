package database

import (
	"bookstore-service/internal/config"
	"bookstore-service/internal/repository"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestMySQLDSN(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.Password = "pw"
	dsn := MySQLDSN(cfg)

	assert.True(t, strings.HasPrefix(dsn, "root:pw@tcp(127.0.0.1:3306)/bookstore"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.Driver = "sqlite"
	cfg.Path = ":memory:"

	db, dialect, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, repository.DialectSQLite, dialect)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	cfg := config.DefaultConfig().Database
	cfg.Driver = "oracle"
	_, _, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
