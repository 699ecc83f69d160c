package settings

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/tallerpro/internal/shared"
)

type memorySettingsRepo struct {
	rows  map[string]string
	reads int
}

func newMemorySettingsRepo() *memorySettingsRepo {
	return &memorySettingsRepo{rows: make(map[string]string)}
}

func (r *memorySettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	r.reads++
	out := make(map[string]string, len(r.rows))
	for k, v := range r.rows {
		out[k] = v
	}
	return out, nil
}

func (r *memorySettingsRepo) Upsert(ctx context.Context, key, value string) error {
	r.rows[key] = value
	return nil
}

var settingsAdmin = shared.Actor{UserID: 1, Role: shared.RoleAdmin}

func newTestService(t *testing.T) (*Service, *memorySettingsRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := newMemorySettingsRepo()
	return NewService(repo, rdb, time.Minute), repo
}

func TestGetAppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	values, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.True(t, values.TaxPercentage.Equal(Defaults().TaxPercentage))
	require.Equal(t, 12, values.ShiftLongThresholdHours)
	require.Equal(t, "OC-", values.PONumberPrefix)
}

func TestGetCachesUntilUpdate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.reads)

	// Update invalidates the cache; the next read hits the table and sees
	// the new value.
	require.NoError(t, svc.Update(ctx, settingsAdmin, KeyTaxPercentage, "13"))
	values, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.reads)
	require.Equal(t, "13", values.TaxPercentage.String())
}

func TestUpdateValidatesValues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Update(ctx, settingsAdmin, "desconocida", "1"), ErrUnknownKey)

	err := svc.Update(ctx, settingsAdmin, KeyTaxPercentage, "no-numero")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	err = svc.Update(ctx, settingsAdmin, KeyShiftLongThresholdHours, "0")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	err = svc.Update(ctx, settingsAdmin, KeyPONumberPrefix, "")
	require.Equal(t, shared.KindValidation, shared.KindOf(err))

	require.NoError(t, svc.Update(ctx, settingsAdmin, KeyShiftDifferenceThreshold, "10.50"))
}

func TestUpdateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	caja := shared.Actor{UserID: 2, Role: shared.RoleCaja}

	err := svc.Update(context.Background(), caja, KeyTaxPercentage, "10")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestGetWithoutRedisFallsBackToTable(t *testing.T) {
	repo := newMemorySettingsRepo()
	repo.rows[KeyShiftLongThresholdHours] = "6"
	svc := NewService(repo, nil, time.Minute)

	values, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, values.ShiftLongThresholdHours)
}
