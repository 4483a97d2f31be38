package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocoder89/postsapi/internal/observability"
)

func TestUniqueViolationDetection(t *testing.T) {
	emailDup := &pgconn.PgError{Code: "23505", ConstraintName: usersEmailConstraint}
	otherDup := &pgconn.PgError{Code: "23505", ConstraintName: "refresh_tokens_pkey"}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "posts_user_id_fkey"}

	assert.True(t, isConstraintViolation(emailDup, usersEmailConstraint))
	assert.True(t, isConstraintViolation(fmt.Errorf("create user: %w", emailDup), usersEmailConstraint))
	assert.False(t, isConstraintViolation(otherDup, usersEmailConstraint))
	assert.False(t, isConstraintViolation(fk, "posts_user_id_fkey"))
	assert.False(t, isConstraintViolation(errors.New("boom"), usersEmailConstraint))
}

func TestInstrumented_ObserveRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	i := instrumented{prom: prom}

	err := i.observe(context.Background(), "posts.get", func(ctx context.Context) error {
		return pgx.ErrNoRows
	})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	err = i.observe(context.Background(), "posts.create", func(ctx context.Context) error {
		return &pgconn.PgError{Code: "23503"}
	})
	require.Error(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(prom.DbQueryDuration))
	// a miss is not a database error
	assert.Equal(t, 1, testutil.CollectAndCount(prom.DbErrorsTotal))
}

func TestInstrumented_WithoutProm(t *testing.T) {
	i := instrumented{}

	called := false
	err := i.observe(context.Background(), "users.list", func(ctx context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}
