package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
	"github.com/wolfeidau/tenantdesk/internal/telemetry"
)

const (
	bindPrincipalSQL = `SELECT set_current_principal($1, $2, $3)`

	readBindingSQL = `
		SELECT
			COALESCE(current_setting('app.current_user_id', true), ''),
			COALESCE(current_setting('app.current_tenant_id', true), ''),
			COALESCE(current_setting('app.bypass_rls', true), '')
	`

	// rollbackTimeout bounds cleanup of a transaction whose request context
	// has already been cancelled.
	rollbackTimeout = 5 * time.Second
)

// BindPrincipal sets the principal for the remainder of tx and reads it back.
// The values are transaction local, so they vanish on commit or rollback.
// A read back mismatch is logged and counted; it is only returned as
// ErrBindingInconsistency when strict is set.
func BindPrincipal(ctx context.Context, tx pgx.Tx, p models.Principal, strict bool) error {
	if err := store.CheckPrincipal(p); err != nil {
		return err
	}

	unrestricted := auth.IsUnrestricted(p)
	m := telemetry.GetMetrics()

	if _, err := tx.Exec(ctx, bindPrincipalSQL, p.UserID(), p.TenantID(), unrestricted); err != nil {
		return fmt.Errorf("failed to bind principal: %w", mapPostgresError(err))
	}
	m.RecordBinding(ctx, unrestricted)

	var userID, tenantID, bypass string
	if err := tx.QueryRow(ctx, readBindingSQL).Scan(&userID, &tenantID, &bypass); err != nil {
		return fmt.Errorf("failed to read principal binding: %w", mapPostgresError(err))
	}

	wantBypass := "off"
	if unrestricted {
		wantBypass = "on"
	}

	if userID == strconv.FormatInt(p.UserID(), 10) &&
		tenantID == strconv.FormatInt(p.TenantID(), 10) &&
		bypass == wantBypass {
		return nil
	}

	m.RecordBindingInconsistency(ctx, unrestricted)
	log.Warn().
		Stringer("principal", p).
		Str("bound_user_id", userID).
		Str("bound_tenant_id", tenantID).
		Str("bound_bypass", bypass).
		Bool("strict", strict).
		Msg("Principal binding does not match the requested principal")

	if strict {
		return fmt.Errorf("%w: bound user %q tenant %q", store.ErrBindingInconsistency, userID, tenantID)
	}

	return nil
}

// binder runs units of work on a pinned, principal-bound connection.
type binder struct {
	pool    *pgxpool.Pool
	strict  bool
	timeout time.Duration
}

// isoLevel is the isolation an operation runs at. List counts and pages in two
// statements that must see one snapshot; everything else is a single
// statement, and READ COMMITTED lets concurrent writes to one row wait on the
// row lock instead of failing with a serialization error.
func isoLevel(op string) pgx.TxIsoLevel {
	if op == "list" {
		return pgx.RepeatableRead
	}
	return pgx.ReadCommitted
}

// withBoundTx acquires one connection, begins a transaction on it at the
// isolation op needs, binds p and runs fn. The transaction is committed when fn succeeds and
// rolled back otherwise, including on panic. A connection whose rollback fails
// is closed before release so the pool discards it instead of reusing it.
func (b *binder) withBoundTx(ctx context.Context, op string, p models.Principal, fn func(tx pgx.Tx) error) (err error) {
	if err := store.CheckPrincipal(p); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		telemetry.GetMetrics().RecordRepositoryOperation(ctx, op, auth.IsUnrestricted(p), time.Since(start), err)
	}()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", mapPostgresError(err))
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel(op)})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()

		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Str("op", op).Msg("Rollback failed, discarding connection")
			_ = conn.Conn().Close(rbCtx)
		}
	}()

	if err := BindPrincipal(ctx, tx, p, b.strict); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}
	committed = true

	return nil
}
