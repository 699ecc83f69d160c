package inventory

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts movement storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Movimiento, int, error)
}

// AlertsPort reconciles low-stock alerts after stock changes commit.
type AlertsPort interface {
	ReconcilePart(ctx context.Context, repuestoID int64) error
}

// AuditPort records movement activity.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service is the single write path for stock. Every stock change goes through
// Apply or ApplyBatch under a row lock on the part.
type Service struct {
	repo   RepositoryPort
	alerts AlertsPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the movement engine.
func NewService(repo RepositoryPort, alerts AlertsPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, alerts: alerts, audit: auditor, logger: logger}
}

func validateInput(in MovementInput) error {
	if !in.Tipo.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(in.Motivo) == "" {
		return ErrMissingReason
	}
	switch in.Tipo {
	case KindEntry, KindExit:
		if in.Cantidad <= 0 {
			return ErrInvalidQuantity
		}
	case KindAdjust:
		if in.Cantidad == 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// ApplyInTx runs one movement inside the caller's transaction: locks the
// part, rejects duplicates, computes the transition and appends the log row.
// Validation is the caller's responsibility when invoked directly.
func ApplyInTx(ctx context.Context, tx TxRepository, actorID int64, in MovementInput) (Result, error) {
	part, err := tx.LockPart(ctx, in.RepuestoID)
	if err != nil {
		return Result{}, err
	}
	if part.Eliminado {
		return Result{}, ErrPartDeleted
	}

	if in.Referencia != "" {
		exists, err := tx.MovementExists(ctx, in.Referencia, in.RepuestoID, in.Tipo)
		if err != nil {
			return Result{}, err
		}
		if exists {
			return Result{}, ErrDuplicateMovement
		}
	}

	var newStock int64
	warning := false
	switch in.Tipo {
	case KindEntry:
		newStock = part.StockActual + in.Cantidad
		warning = newStock > part.StockMaximo
	case KindExit:
		if in.Cantidad > part.StockActual {
			return Result{}, ErrInsufficientStock.WithMeta(map[string]any{
				"repuesto_id": part.ID,
				"disponible":  part.StockActual,
				"solicitado":  in.Cantidad,
			})
		}
		newStock = part.StockActual - in.Cantidad
	case KindAdjust:
		newStock = part.StockActual + in.Cantidad
		if newStock < 0 {
			return Result{}, ErrInsufficientStock.WithMeta(map[string]any{
				"repuesto_id": part.ID,
				"disponible":  part.StockActual,
				"solicitado":  in.Cantidad,
			})
		}
	}

	if err := tx.UpdateStock(ctx, part.ID, newStock); err != nil {
		return Result{}, err
	}
	m := Movimiento{
		RepuestoID:    part.ID,
		Tipo:          in.Tipo,
		Cantidad:      in.Cantidad,
		StockAnterior: part.StockActual,
		StockNuevo:    newStock,
		Motivo:        strings.TrimSpace(in.Motivo),
		Referencia:    in.Referencia,
		ActorID:       actorID,
	}
	m.ID, err = tx.InsertMovement(ctx, m)
	if err != nil {
		return Result{}, err
	}
	return Result{Movimiento: m, Warning: warning}, nil
}

// Apply commits a single movement and reconciles the part's low-stock alert
// after the transaction lands.
func (s *Service) Apply(ctx context.Context, actor shared.Actor, in MovementInput) (Result, error) {
	if err := actor.Require(shared.PermMovementsApply); err != nil {
		return Result{}, err
	}
	if err := validateInput(in); err != nil {
		return Result{}, err
	}

	var res Result
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			res, err = ApplyInTx(ctx, tx, actor.UserID, in)
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}

	s.reconcile(ctx, in.RepuestoID)
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "inventario", Action: string(in.Tipo), RefID: in.Referencia,
		Meta: map[string]any{
			"repuesto_id": in.RepuestoID,
			"cantidad":    in.Cantidad,
			"stock_nuevo": res.Movimiento.StockNuevo,
		},
	})
	return res, nil
}

// ApplyBatch commits several movements in one transaction. Either every
// movement lands or none does. Parts are locked in id order so two concurrent
// batches cannot deadlock on each other.
func (s *Service) ApplyBatch(ctx context.Context, actor shared.Actor, inputs []MovementInput) ([]Result, error) {
	if err := actor.Require(shared.PermMovementsApply); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, in := range inputs {
		if err := validateInput(in); err != nil {
			return nil, err
		}
	}

	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return inputs[order[a]].RepuestoID < inputs[order[b]].RepuestoID
	})

	results := make([]Result, len(inputs))
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			for _, i := range order {
				res, err := ApplyInTx(ctx, tx, actor.UserID, inputs[i])
				if err != nil {
					return err
				}
				results[i] = res
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	for _, in := range inputs {
		if !seen[in.RepuestoID] {
			seen[in.RepuestoID] = true
			s.reconcile(ctx, in.RepuestoID)
		}
	}
	return results, nil
}

// List pages the movement log.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]Movimiento, shared.Pagination, error) {
	if err := actor.Require(shared.PermPartsView); err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// reconcile runs the alert pass outside the movement transaction. A failure
// here never undoes the movement; the next movement repairs the alert state.
func (s *Service) reconcile(ctx context.Context, repuestoID int64) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.ReconcilePart(ctx, repuestoID); err != nil {
		s.logger.Error("reconciliación de alertas falló",
			slog.Int64("repuesto_id", repuestoID), slog.Any("error", err))
	}
}
