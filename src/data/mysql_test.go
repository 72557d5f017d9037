package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParam(t *testing.T) {
	assert.Equal(t, "user:pw@tcp(db:3306)/research?parseTime=true",
		ensureParam("user:pw@tcp(db:3306)/research", "parseTime", "true"))
	assert.Equal(t, "dsn?charset=utf8mb4&parseTime=true",
		ensureParam("dsn?charset=utf8mb4", "parseTime", "true"))
	// Present params are left alone.
	assert.Equal(t, "dsn?parseTime=false",
		ensureParam("dsn?parseTime=false", "parseTime", "true"))
}

func TestGetMySQLDSN(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	_, err := GetMySQLDSN()
	require.Error(t, err)

	t.Setenv("MYSQL_DSN", "user:pw@tcp(db:3306)/research")
	dsn, err := GetMySQLDSN()
	require.NoError(t, err)
	assert.Equal(t, "user:pw@tcp(db:3306)/research", dsn)
}
