package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/tallerpro/tallerpro/internal/shared"
)

const cacheKey = "taller:settings"

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, key, value string) error
}

// Service reads business settings at operation time. A short Redis cache is
// kept in front of the table; every update deletes the cache entry, which is
// the invalidation path required to cache at all.
type Service struct {
	repo     RepositoryPort
	redis    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewService builds the settings service. The redis client may be nil, in
// which case every read hits the table.
func NewService(repo RepositoryPort, rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, redis: rdb, cacheTTL: ttl}
}

// Get returns the effective settings, falling back to defaults per key.
func (s *Service) Get(ctx context.Context) (Values, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var values Values
			if json.Unmarshal(raw, &values) == nil {
				return values, nil
			}
		}
	}
	result, err, _ := s.group.Do(cacheKey, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return Values{}, err
	}
	return result.(Values), nil
}

func (s *Service) load(ctx context.Context) (Values, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return Values{}, err
	}
	values := Defaults()
	if raw, ok := rows[KeyTaxPercentage]; ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			values.TaxPercentage = d
		}
	}
	if raw, ok := rows[KeyShiftLongThresholdHours]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			values.ShiftLongThresholdHours = n
		}
	}
	if raw, ok := rows[KeyShiftDifferenceThreshold]; ok {
		if d, err := decimal.NewFromString(raw); err == nil {
			values.ShiftDifferenceThreshold = d
		}
	}
	if raw, ok := rows[KeyPONumberPrefix]; ok && raw != "" {
		values.PONumberPrefix = raw
	}
	if s.redis != nil {
		if data, err := json.Marshal(values); err == nil {
			_ = s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err()
		}
	}
	return values, nil
}

// Update writes a setting and invalidates the cache. ADMIN only.
func (s *Service) Update(ctx context.Context, actor shared.Actor, key, value string) error {
	if err := actor.Require(shared.PermSettingsEdit); err != nil {
		return err
	}
	switch key {
	case KeyTaxPercentage, KeyShiftDifferenceThreshold:
		if _, err := decimal.NewFromString(value); err != nil {
			return shared.E(shared.KindValidation, "INVALID_SETTING_VALUE", "valor numérico inválido")
		}
	case KeyShiftLongThresholdHours:
		if n, err := strconv.Atoi(value); err != nil || n <= 0 {
			return shared.E(shared.KindValidation, "INVALID_SETTING_VALUE", "horas inválidas")
		}
	case KeyPONumberPrefix:
		if value == "" {
			return shared.E(shared.KindValidation, "INVALID_SETTING_VALUE", "prefijo vacío")
		}
	default:
		return ErrUnknownKey
	}
	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return err
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, cacheKey).Err()
	}
	return nil
}
