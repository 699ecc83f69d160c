package cashbox

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/alerts"
	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/settings"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts shift storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertShift(ctx context.Context, usuarioID int64, apertura decimal.Decimal) (int64, error)
	OpenShift(ctx context.Context, usuarioID int64) (CajaTurno, error)
	Get(ctx context.Context, id int64) (CajaTurno, error)
	Entries(ctx context.Context, turnoID int64) ([]CajaMovimiento, error)
	List(ctx context.Context, filters ListFilters) ([]CajaTurno, int, error)
}

// SettingsPort reads business settings at operation time.
type SettingsPort interface {
	Get(ctx context.Context) (settings.Values, error)
}

// AlertsPort evaluates the closed shift for a difference alert.
type AlertsPort interface {
	EvaluateShiftClose(ctx context.Context, close alerts.ShiftClose, threshold decimal.Decimal) error
}

// AuditPort records shift activity.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns cash shifts and their ledger.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	alerts   AlertsPort
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the cashbox service.
func NewService(repo RepositoryPort, set SettingsPort, alerts AlertsPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, settings: set, alerts: alerts, audit: auditor, logger: logger}
}

// Open starts a shift for the actor. A user holds at most one open shift.
func (s *Service) Open(ctx context.Context, actor shared.Actor, apertura decimal.Decimal) (CajaTurno, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return CajaTurno{}, err
	}
	if apertura.IsNegative() {
		return CajaTurno{}, ErrInvalidAmount
	}
	if _, err := s.repo.OpenShift(ctx, actor.UserID); err == nil {
		return CajaTurno{}, ErrShiftAlreadyOpen
	}
	id, err := s.repo.InsertShift(ctx, actor.UserID, apertura)
	if err != nil {
		return CajaTurno{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "caja", Action: "ABRIR_TURNO",
		Meta: map[string]any{"turno_id": id, "monto_apertura": apertura.String()},
	})
	return s.repo.Get(ctx, id)
}

// AddEntry books a cash ledger row against the actor's open shift. Sales and
// other collaborators use this while the shift runs. The shift row is locked
// with the insert so a concurrent Close either sums this entry or rejects it
// against the already closed shift.
func (s *Service) AddEntry(ctx context.Context, actor shared.Actor, tipo string, monto decimal.Decimal, concepto, referencia string) (CajaMovimiento, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return CajaMovimiento{}, err
	}
	if tipo != EntryIn && tipo != EntryOut {
		return CajaMovimiento{}, ErrInvalidEntryKind
	}
	if !monto.IsPositive() {
		return CajaMovimiento{}, ErrInvalidAmount
	}
	if strings.TrimSpace(concepto) == "" {
		return CajaMovimiento{}, ErrMissingConcept
	}

	var entry CajaMovimiento
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.OpenShiftForUpdate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		entry = CajaMovimiento{
			TurnoID:    shift.ID,
			Tipo:       tipo,
			Monto:      monto,
			Concepto:   strings.TrimSpace(concepto),
			Referencia: referencia,
			ActorID:    actor.UserID,
		}
		entry.ID, err = tx.InsertEntry(ctx, entry)
		return err
	})
	if err != nil {
		return CajaMovimiento{}, err
	}
	return entry, nil
}

// Close ends the actor's open shift. The expected figure is computed under
// the shift row lock so late entries either land before the sum or fail
// against the closed shift. The difference alert runs after commit.
func (s *Service) Close(ctx context.Context, actor shared.Actor, cierre decimal.Decimal) (CajaTurno, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return CajaTurno{}, err
	}
	if cierre.IsNegative() {
		return CajaTurno{}, ErrInvalidAmount
	}

	var shift CajaTurno
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		shift, err = tx.OpenShiftForUpdate(ctx, actor.UserID)
		if err != nil {
			return err
		}
		in, out, err := tx.SumEntries(ctx, shift.ID)
		if err != nil {
			return err
		}
		shift.MontoEsperado = shift.MontoApertura.Add(in).Sub(out)
		shift.Diferencia = cierre.Sub(shift.MontoEsperado)
		shift.MontoCierre = cierre
		shift.Estado = EstadoCerrado
		return tx.CloseShift(ctx, shift.ID, cierre, shift.MontoEsperado, shift.Diferencia)
	})
	if err != nil {
		return CajaTurno{}, err
	}

	s.evaluateClose(ctx, shift)
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "caja", Action: "CERRAR_TURNO",
		Meta: map[string]any{
			"turno_id":   shift.ID,
			"esperado":   shift.MontoEsperado.String(),
			"diferencia": shift.Diferencia.String(),
		},
	})
	return shift, nil
}

// Current returns the actor's open shift.
func (s *Service) Current(ctx context.Context, actor shared.Actor) (CajaTurno, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return CajaTurno{}, err
	}
	return s.repo.OpenShift(ctx, actor.UserID)
}

// Entries lists the ledger of one shift.
func (s *Service) Entries(ctx context.Context, actor shared.Actor, turnoID int64) ([]CajaMovimiento, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, turnoID); err != nil {
		return nil, err
	}
	return s.repo.Entries(ctx, turnoID)
}

// List pages shifts.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]CajaTurno, shared.Pagination, error) {
	if err := actor.Require(shared.PermCashboxOperate); err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// evaluateClose raises the shift-difference alert. Best effort: the closed
// shift stands even if alerting fails.
func (s *Service) evaluateClose(ctx context.Context, shift CajaTurno) {
	if s.alerts == nil {
		return
	}
	values, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error("no fue posible leer configuración para evaluar el cierre",
			slog.Int64("turno_id", shift.ID), slog.Any("error", err))
		return
	}
	err = s.alerts.EvaluateShiftClose(ctx, alerts.ShiftClose{
		TurnoID:    shift.ID,
		UserID:     shift.UsuarioID,
		Difference: shift.Diferencia,
	}, values.ShiftDifferenceThreshold)
	if err != nil {
		s.logger.Error("evaluación de diferencia de caja falló",
			slog.Int64("turno_id", shift.ID), slog.Any("error", err))
	}
}
