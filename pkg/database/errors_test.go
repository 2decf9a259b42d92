package database_test

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", pkgerrors.Wrap(driver.ErrBadConn, "failed to acquire connection"), true},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"connection failure class", &pq.Error{Code: "08006"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"admin shutdown", fmt.Errorf("query: %w", &pq.Error{Code: "57P01"}), true},
		{"query canceled", &pq.Error{Code: "57014"}, false},
		{"undefined table", &pq.Error{Code: "42P01"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.IsRetryable(tt.err))
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := database.Config{Host: "db", Port: "5432", User: "app", Password: "secret", Name: "movies_database", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=movies_database sslmode=disable", cfg.DSN())
}
