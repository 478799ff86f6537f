package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("create order: %w", ConflictError("Insufficient stock for %s", "Widget"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "Insufficient stock for Widget", UserMessage(err))

	assert.ErrorIs(t, NotFoundError("order", 7), ErrNotFound)
	assert.ErrorIs(t, ValidationError("bad"), ErrValidation)
}

func TestUserMessageHidesInternalErrors(t *testing.T) {
	msg := UserMessage(errors.New("pq: connection refused at 10.0.0.3"))
	assert.NotContains(t, msg, "10.0.0.3")
	assert.Equal(t, "", UserMessage(nil))
}

func TestTranslateDBError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "customers_name_key", Message: "duplicate key value violates unique constraint"}
	err := TranslateDBError(fmt.Errorf("insert: %w", unique))
	require.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, "A record with the same name already exists", UserMessage(err))
	assert.NotContains(t, UserMessage(err), "duplicate key")
	assert.True(t, IsUniqueViolation(unique))

	fk := &pgconn.PgError{Code: "23503"}
	assert.ErrorIs(t, TranslateDBError(fk), ErrIntegrity)

	stock := &pgconn.PgError{Code: "23514", ConstraintName: "products_current_stock_check"}
	assert.ErrorIs(t, TranslateDBError(stock), ErrConflict)

	plain := errors.New("boom")
	assert.Same(t, plain, TranslateDBError(plain))
}

func TestResultEnvelope(t *testing.T) {
	ok := OK(42)
	assert.True(t, ok.Success)
	assert.Equal(t, 42, ok.Data)

	failed := Fail[int](ValidationError("Order must have at least one item"))
	assert.False(t, failed.Success)
	assert.Equal(t, "Order must have at least one item", failed.Error)
	assert.Equal(t, string(KindValidation), failed.Kind)
}
