package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts alert storage.
type RepositoryPort interface {
	Insert(ctx context.Context, a Alerta) (int64, error)
	HasOpenForPart(ctx context.Context, tipo AlertKind, repuestoID int64) (bool, error)
	HasOpenForShift(ctx context.Context, tipo AlertKind, turnoID int64) (bool, error)
	CloseForPart(ctx context.Context, tipo AlertKind, repuestoID int64) error
	PartStock(ctx context.Context, repuestoID int64) (codigo string, actual, minimo int64, eliminado bool, err error)
	OpenShiftsOlderThan(ctx context.Context, cutoff time.Time) ([]ShiftClose, error)
	Get(ctx context.Context, id int64) (Alerta, error)
	Acknowledge(ctx context.Context, id, actorID int64) error
	List(ctx context.Context, filters ListFilters) ([]Alerta, int, error)
}

// Service reconciles alert state against inventory and cash shifts.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the alert service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ReconcilePart converges the part's low-stock alert with its current stock.
// Idempotent: running it twice in a row is a no-op. Deleted parts get their
// alerts closed.
func (s *Service) ReconcilePart(ctx context.Context, repuestoID int64) error {
	codigo, actual, minimo, eliminado, err := s.repo.PartStock(ctx, repuestoID)
	if err != nil {
		return err
	}
	open, err := s.repo.HasOpenForPart(ctx, KindLowStock, repuestoID)
	if err != nil {
		return err
	}

	low := actual <= minimo && !eliminado
	switch {
	case low && !open:
		_, err = s.repo.Insert(ctx, Alerta{
			Tipo:       KindLowStock,
			Severidad:  SeverityWarning,
			RepuestoID: &repuestoID,
			Mensaje:    fmt.Sprintf("stock bajo para %s: %d (mínimo %d)", codigo, actual, minimo),
			Meta:       map[string]any{"stock_actual": actual, "stock_minimo": minimo},
		})
		return err
	case !low && open:
		return s.repo.CloseForPart(ctx, KindLowStock, repuestoID)
	}
	return nil
}

// EvaluateShiftClose raises a shift-difference alert only when the counted
// cash strays from the expected figure by at least the configured threshold.
// Differences under the threshold are tolerated counting noise and raise
// nothing. A non-positive threshold grades every nonzero difference INFO.
func (s *Service) EvaluateShiftClose(ctx context.Context, close ShiftClose, threshold decimal.Decimal) error {
	diff := close.Difference.Abs()
	if diff.IsZero() {
		return nil
	}

	severity := SeverityInfo
	if threshold.IsPositive() {
		switch {
		case diff.GreaterThanOrEqual(threshold.Mul(decimal.NewFromInt(3))):
			severity = SeverityCritical
		case diff.GreaterThanOrEqual(threshold):
			severity = SeverityWarning
		default:
			return nil
		}
	}

	_, err := s.repo.Insert(ctx, Alerta{
		Tipo:      KindShiftDifference,
		Severidad: severity,
		TurnoID:   &close.TurnoID,
		Mensaje:   fmt.Sprintf("diferencia de caja en turno %d: %s", close.TurnoID, close.Difference.StringFixed(2)),
		Meta: map[string]any{
			"usuario_id": close.UserID,
			"diferencia": close.Difference.String(),
		},
	})
	return err
}

// SweepLongShifts raises an informational alert for every shift open longer
// than thresholdHours. Runs from the scheduler; already-alerted shifts are
// skipped.
func (s *Service) SweepLongShifts(ctx context.Context, thresholdHours int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(thresholdHours) * time.Hour)
	shifts, err := s.repo.OpenShiftsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, shift := range shifts {
		open, err := s.repo.HasOpenForShift(ctx, KindLongShift, shift.TurnoID)
		if err != nil {
			return raised, err
		}
		if open {
			continue
		}
		turnoID := shift.TurnoID
		if _, err := s.repo.Insert(ctx, Alerta{
			Tipo:      KindLongShift,
			Severidad: SeverityInfo,
			TurnoID:   &turnoID,
			Mensaje:   fmt.Sprintf("turno %d abierto por más de %d horas", turnoID, thresholdHours),
			Meta:      map[string]any{"usuario_id": shift.UserID, "umbral_horas": thresholdHours},
		}); err != nil {
			return raised, err
		}
		raised++
	}
	if raised > 0 {
		s.logger.Info("alertas de turno largo generadas", slog.Int("cantidad", raised))
	}
	return raised, nil
}

// Acknowledge marks an open alert as seen by the actor.
func (s *Service) Acknowledge(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Acknowledge(ctx, id, actor.UserID)
}

// List pages alerts.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]Alerta, shared.Pagination, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}
