package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

// statusConstraint is the CHECK constraint guarding tickets.status.
const statusConstraint = "tickets_status_check"

// mapPostgresError translates a server error into the store taxonomy.
// Integrity violations become sentinels callers can branch on; every other
// SQLSTATE class is wrapped with a short label and keeps the *pgconn.PgError
// reachable through errors.As. Non postgres errors are returned unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	code := pgErr.Code

	switch {
	case code == pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	case code == pgerrcode.ForeignKeyViolation:
		// also raised by the composite key tying a ticket owner to its organisation
		return fmt.Errorf("%w: %s", store.ErrInvalidReference, pgErr.ConstraintName)
	case code == pgerrcode.CheckViolation && pgErr.ConstraintName == statusConstraint:
		return fmt.Errorf("%w: %s", store.ErrInvalidStatus, pgErr.ConstraintName)
	case code == pgerrcode.InsufficientPrivilege:
		// a row level security WITH CHECK rejected the write
		return fmt.Errorf("%w: row level security: %s", store.ErrInvalidReference, pgErr.Message)
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
	case pgerrcode.IsTransactionRollback(code):
		return fmt.Errorf("transaction rolled back, retryable: %w", err)
	case pgerrcode.IsConnectionException(code), pgerrcode.IsOperatorIntervention(code):
		return fmt.Errorf("database unavailable: %w", err)
	case pgerrcode.IsInsufficientResources(code):
		return fmt.Errorf("database resource limit: %w", err)
	default:
		return fmt.Errorf("postgres error [%s] %s: %w", code, pgErr.Message, err)
	}
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, pgerrcode.ForeignKeyViolation)
}
