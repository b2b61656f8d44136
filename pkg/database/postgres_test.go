package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Constraint: "grievances_tracking_id_key"}
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "grievances_tracking_id_key"}

	assert.True(t, IsUniqueViolation(pqErr, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pqErr), "grievances_tracking_id_key"))
	assert.False(t, IsUniqueViolation(pqErr, "users_email_key"))
	assert.True(t, IsUniqueViolation(pgErr, "grievances_tracking_id_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
