package postgres

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// bindingTx answers the bind and read back statements of BindPrincipal. When
// ignoreBind is set the bind is accepted but nothing is recorded, like a
// set_current_principal that has been replaced.
type bindingTx struct {
	pgx.Tx

	ignoreBind bool
	execErr    error
	bound      [3]string
}

func (tx *bindingTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.execErr != nil {
		return pgconn.CommandTag{}, tx.execErr
	}
	if sql != bindPrincipalSQL {
		return pgconn.CommandTag{}, errors.New("unexpected statement")
	}
	if tx.ignoreBind {
		return pgconn.NewCommandTag("SELECT 1"), nil
	}

	bypass := "off"
	if args[2].(bool) {
		bypass = "on"
	}
	tx.bound = [3]string{strconv.FormatInt(args[0].(int64), 10), strconv.FormatInt(args[1].(int64), 10), bypass}

	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (tx *bindingTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return bindingRow(tx.bound)
}

type bindingRow [3]string

func (r bindingRow) Scan(dest ...any) error {
	for i, d := range dest {
		*d.(*string) = r[i]
	}
	return nil
}

var (
	meterOnce   sync.Once
	meterReader *sdkmetric.ManualReader
)

// testMeterReader installs an SDK meter provider once per test binary so the
// binding counters can be read back.
func testMeterReader() *sdkmetric.ManualReader {
	meterOnce.Do(func() {
		meterReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(meterReader)))
	})
	return meterReader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	return &buf
}

func TestBindPrincipal(t *testing.T) {
	reader := testMeterReader()
	ctx := context.Background()

	standard := models.MustPrincipal(3, 7, models.RoleStandard)
	admin := models.MustPrincipal(1, 7, models.RoleAdmin)

	const (
		bindings        = "tenantdesk.binding.total"
		inconsistencies = "tenantdesk.binding.inconsistencies.total"
	)

	t.Run("matching binding", func(t *testing.T) {
		before := counterTotal(t, reader, bindings)
		beforeBad := counterTotal(t, reader, inconsistencies)

		tx := &bindingTx{}
		require.NoError(t, BindPrincipal(ctx, tx, standard, true))
		require.Equal(t, [3]string{"3", "7", "off"}, tx.bound)

		tx = &bindingTx{}
		require.NoError(t, BindPrincipal(ctx, tx, admin, true))
		require.Equal(t, [3]string{"1", "7", "on"}, tx.bound)

		require.Equal(t, before+2, counterTotal(t, reader, bindings))
		require.Equal(t, beforeBad, counterTotal(t, reader, inconsistencies))
	})

	t.Run("mismatch warns when not strict", func(t *testing.T) {
		buf := captureLog(t)
		before := counterTotal(t, reader, inconsistencies)

		require.NoError(t, BindPrincipal(ctx, &bindingTx{ignoreBind: true}, standard, false))

		require.Equal(t, before+1, counterTotal(t, reader, inconsistencies))
		require.Contains(t, buf.String(), `"level":"warn"`)
		require.Contains(t, buf.String(), "Principal binding does not match the requested principal")
	})

	t.Run("mismatch fails when strict", func(t *testing.T) {
		captureLog(t)
		before := counterTotal(t, reader, inconsistencies)

		err := BindPrincipal(ctx, &bindingTx{ignoreBind: true}, standard, true)
		require.ErrorIs(t, err, store.ErrBindingInconsistency)

		require.Equal(t, before+1, counterTotal(t, reader, inconsistencies))
	})

	t.Run("bind failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		err := BindPrincipal(ctx, &bindingTx{execErr: boom}, standard, false)
		require.ErrorIs(t, err, boom)
	})

	t.Run("zero principal", func(t *testing.T) {
		err := BindPrincipal(ctx, &bindingTx{}, models.Principal{}, false)
		require.ErrorIs(t, err, store.ErrInvalidPrincipal)
	})
}
