package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/inventory"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/settings"
	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts order storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (OrdenCompra, error)
	GetWithLines(ctx context.Context, id int64) (OrderWithLines, error)
	List(ctx context.Context, filters ListFilters) ([]OrdenCompra, int, error)
}

// SettingsPort reads business settings at operation time.
type SettingsPort interface {
	Get(ctx context.Context) (settings.Values, error)
}

// AlertsPort reconciles low-stock alerts after receipts and reversals.
type AlertsPort interface {
	ReconcilePart(ctx context.Context, repuestoID int64) error
}

// JobsPort enqueues background work.
type JobsPort interface {
	EnqueuePOSent(ctx context.Context, ordenID int64) error
}

// AuditPort records privileged actions.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service owns the purchase-order lifecycle.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	alerts   AlertsPort
	jobs     JobsPort
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, set SettingsPort, alerts AlertsPort, jobs JobsPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, settings: set, alerts: alerts, jobs: jobs, audit: auditor, logger: logger}
}

const numberAllocRetries = 3

// errNumeroTaken aborts the creation transaction so the allocator can retry
// with the next counter value.
var errNumeroTaken = shared.E(shared.KindTransient, "PO_NUMBER_TAKEN", "número de orden en uso")

// Create registers a draft order, allocating the next daily number. The
// header and every line land in one transaction; concurrent creators race on
// the unique number index and losers retry the whole transaction.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (OrderWithLines, error) {
	if err := actor.Require(shared.PermPurchasingEdit); err != nil {
		return OrderWithLines{}, err
	}
	if len(input.Lines) == 0 {
		return OrderWithLines{}, ErrNoLines
	}
	for _, l := range input.Lines {
		hasPart := l.RepuestoID != nil && *l.RepuestoID > 0
		hasCode := strings.TrimSpace(l.CodigoNuevo) != ""
		if l.Cantidad <= 0 || l.PrecioUnitario.IsNegative() || hasPart == hasCode {
			return OrderWithLines{}, ErrInvalidLine
		}
	}

	values, err := s.settings.Get(ctx)
	if err != nil {
		return OrderWithLines{}, err
	}

	total := decimal.Zero
	for _, l := range input.Lines {
		total = total.Add(l.PrecioUnitario.Mul(decimal.NewFromInt(l.Cantidad)))
	}

	order := OrdenCompra{
		ProveedorID:     input.ProveedorID,
		Estado:          EstadoBorrador,
		Total:           total,
		Notas:           input.Notas,
		RefProveedor:    strings.TrimSpace(input.RefProveedor),
		EntregaEsperada: input.EntregaEsperada,
		CreatedBy:       actor.UserID,
	}

	var lines []DetalleOrdenCompra
	day := time.Now()
	for attempt := 0; attempt < numberAllocRetries; attempt++ {
		order.ID = 0
		lines = lines[:0]
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			seq, err := tx.NextSequence(ctx, values.PONumberPrefix, day)
			if err != nil {
				return err
			}
			order.Numero = fmt.Sprintf("%s%s-%04d", values.PONumberPrefix, day.Format("20060102"), seq)
			id, duplicate, err := tx.InsertOrder(ctx, order)
			if duplicate {
				return errNumeroTaken
			}
			if err != nil {
				return err
			}
			order.ID = id
			for _, l := range input.Lines {
				line := DetalleOrdenCompra{
					OrdenID:        order.ID,
					RepuestoID:     l.RepuestoID,
					CodigoNuevo:    strings.ToUpper(strings.TrimSpace(l.CodigoNuevo)),
					Descripcion:    l.Descripcion,
					Cantidad:       l.Cantidad,
					PrecioUnitario: l.PrecioUnitario,
				}
				line.ID, err = tx.InsertLine(ctx, line)
				if err != nil {
					return err
				}
				lines = append(lines, line)
			}
			return nil
		})
		if errors.Is(err, errNumeroTaken) {
			continue
		}
		if err != nil {
			return OrderWithLines{}, err
		}
		break
	}
	if order.ID == 0 {
		return OrderWithLines{}, ErrNumberExhausted
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "ordenes_compra", Action: "CREAR", RefID: order.Numero,
		Meta: map[string]any{"orden_id": order.ID, "total": order.Total.String()},
	})
	return OrderWithLines{Orden: order, Lineas: lines}, nil
}

// advance moves the order one step forward in the state machine.
func (s *Service) advance(ctx context.Context, actor shared.Actor, id int64, target Estado, action string) (OrdenCompra, error) {
	if err := actor.Require(shared.PermPurchasingEdit); err != nil {
		return OrdenCompra{}, err
	}
	var order OrdenCompra
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Estado.Terminal() {
			return ErrAlreadyTerminal
		}
		if transitions[order.Estado] != target {
			return ErrInvalidTransition.WithMeta(map[string]any{
				"estado": string(order.Estado), "destino": string(target),
			})
		}
		return tx.SetEstado(ctx, id, target)
	})
	if err != nil {
		return OrdenCompra{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "ordenes_compra", Action: action, RefID: order.Numero,
		Meta: map[string]any{"orden_id": order.ID},
	})
	// re-read so the transition timestamp lands in the response
	return s.repo.Get(ctx, id)
}

// Authorize moves BORRADOR to AUTORIZADA.
func (s *Service) Authorize(ctx context.Context, actor shared.Actor, id int64) (OrdenCompra, error) {
	return s.advance(ctx, actor, id, EstadoAutorizada, "AUTORIZAR")
}

// Send moves AUTORIZADA to ENVIADA and enqueues the supplier email after the
// state change lands. The email is best effort; a broker outage never undoes
// the transition.
func (s *Service) Send(ctx context.Context, actor shared.Actor, id int64) (OrdenCompra, error) {
	order, err := s.advance(ctx, actor, id, EstadoEnviada, "ENVIAR")
	if err != nil {
		return OrdenCompra{}, err
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueuePOSent(ctx, order.ID); err != nil {
			s.logger.Error("no fue posible encolar el correo de orden enviada",
				slog.Int64("orden_id", order.ID), slog.Any("error", err))
		}
	}
	return order, nil
}

// Receive books received quantities as inventory entries in one transaction
// with the order state change. The order closes to RECIBIDA only when every
// line is fully served; otherwise it stays RECIBIDA_PARCIAL. A repeated call
// with the same reference hits the movement dedupe and changes nothing.
func (s *Service) Receive(ctx context.Context, actor shared.Actor, id int64, input ReceiveInput) (OrderWithLines, error) {
	if err := actor.Require(shared.PermPurchasingEdit); err != nil {
		return OrderWithLines{}, err
	}
	if len(input.Lines) == 0 {
		return OrderWithLines{}, ErrNoLines
	}
	for _, rl := range input.Lines {
		if rl.Cantidad <= 0 || (rl.PrecioReal != nil && rl.PrecioReal.IsNegative()) {
			return OrderWithLines{}, ErrInvalidLine
		}
	}

	var (
		order   OrdenCompra
		touched []int64
	)
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		touched = touched[:0]
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			order, err = tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if order.Estado.Terminal() {
				return ErrAlreadyTerminal
			}
			if !receivableStates[order.Estado] {
				return ErrInvalidTransition.WithMeta(map[string]any{"estado": string(order.Estado)})
			}

			lines, err := tx.Lines(ctx, id)
			if err != nil {
				return err
			}
			byID := make(map[int64]*DetalleOrdenCompra, len(lines))
			for i := range lines {
				byID[lines[i].ID] = &lines[i]
			}

			seq, err := tx.BumpRecepciones(ctx, id)
			if err != nil {
				return err
			}
			reference := strings.TrimSpace(input.Referencia)
			if reference == "" {
				reference = order.Numero
				if seq > 1 {
					reference = fmt.Sprintf("%s-R%d", order.Numero, seq)
				}
			}

			// Quantities aggregate per part so two lines resolving to
			// the same part share a single stock entry under the
			// receipt reference.
			perPart := map[int64]int64{}
			partOrder := []int64{}
			for _, rl := range input.Lines {
				line, ok := byID[rl.DetalleID]
				if !ok || line.OrdenID != id {
					return ErrLineNotFound
				}
				if line.CantidadRecibida+rl.Cantidad > line.Cantidad {
					return ErrReceiveExceeds.WithMeta(map[string]any{
						"detalle_id": line.ID,
						"ordenado":   line.Cantidad,
						"recibido":   line.CantidadRecibida,
						"solicitado": rl.Cantidad,
					})
				}

				partID := int64(0)
				if line.RepuestoID != nil {
					partID = *line.RepuestoID
				} else {
					if rl.PrecioReal != nil {
						line.PrecioReal = rl.PrecioReal
					}
					partID, err = tx.EnsurePlaceholderPart(ctx, line.CodigoNuevo, line.EffectivePrice())
					if err != nil {
						return err
					}
					if err := tx.LinkLinePart(ctx, line.ID, partID); err != nil {
						return err
					}
					line.RepuestoID = &partID
				}

				if err := tx.AddReceived(ctx, line.ID, rl.Cantidad, rl.PrecioReal); err != nil {
					return err
				}
				line.CantidadRecibida += rl.Cantidad
				if _, seen := perPart[partID]; !seen {
					partOrder = append(partOrder, partID)
				}
				perPart[partID] += rl.Cantidad
			}

			for _, partID := range partOrder {
				if _, err := inventory.ApplyInTx(ctx, tx.Inventory(), actor.UserID, inventory.MovementInput{
					RepuestoID: partID,
					Tipo:       inventory.KindEntry,
					Cantidad:   perPart[partID],
					Motivo:     fmt.Sprintf("recepción orden %s", order.Numero),
					Referencia: reference,
				}); err != nil {
					return err
				}
				touched = append(touched, partID)
			}

			complete := true
			for _, l := range byID {
				if l.CantidadRecibida < l.Cantidad {
					complete = false
					break
				}
			}
			if input.Completa && !complete {
				return ErrIncompleteReceipt
			}
			if input.ReciboURL != "" {
				if err := tx.SetReciboURL(ctx, id, input.ReciboURL); err != nil {
					return err
				}
			}
			next := EstadoRecibidaParcial
			if complete {
				next = EstadoRecibida
			}
			order.Estado = next
			return tx.SetEstado(ctx, id, next)
		})
	})
	if err != nil {
		return OrderWithLines{}, err
	}

	s.reconcile(ctx, touched)
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "ordenes_compra", Action: "RECIBIR", RefID: order.Numero,
		Meta: map[string]any{"orden_id": order.ID, "estado": string(order.Estado)},
	})
	return s.repo.GetWithLines(ctx, id)
}

// Cancel aborts a non-terminal order. Received quantities are reverted with
// compensating exits in the same transaction as the state change.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, id int64, motivo, evidencia string) (OrdenCompra, error) {
	if err := actor.Require(shared.PermPurchasingEdit); err != nil {
		return OrdenCompra{}, err
	}
	if strings.TrimSpace(motivo) == "" {
		return OrdenCompra{}, ErrMissingCancelInfo
	}

	var (
		order   OrdenCompra
		touched []int64
	)
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		touched = touched[:0]
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			order, err = tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if order.Estado.Terminal() {
				return ErrAlreadyTerminal
			}

			lines, err := tx.Lines(ctx, id)
			if err != nil {
				return err
			}
			// One reversal per part; two lines holding the same part must
			// not collide on the reversal reference.
			perPart := map[int64]int64{}
			partOrder := []int64{}
			for _, l := range lines {
				if l.CantidadRecibida == 0 || l.RepuestoID == nil {
					continue
				}
				if _, seen := perPart[*l.RepuestoID]; !seen {
					partOrder = append(partOrder, *l.RepuestoID)
				}
				perPart[*l.RepuestoID] += l.CantidadRecibida
			}
			for _, partID := range partOrder {
				if _, err := inventory.ApplyInTx(ctx, tx.Inventory(), actor.UserID, inventory.MovementInput{
					RepuestoID: partID,
					Tipo:       inventory.KindExit,
					Cantidad:   perPart[partID],
					Motivo:     fmt.Sprintf("reversa por cancelación de %s", order.Numero),
					Referencia: fmt.Sprintf("%s-REV", order.Numero),
				}); err != nil {
					return err
				}
				touched = append(touched, partID)
			}

			order.Estado = EstadoCancelada
			return tx.SetCancelled(ctx, id, strings.TrimSpace(motivo), evidencia, actor.UserID)
		})
	})
	if err != nil {
		return OrdenCompra{}, err
	}

	s.reconcile(ctx, touched)
	s.audit.Record(ctx, audit.Entry{
		ActorID: actor.UserID, Module: "ordenes_compra", Action: "CANCELAR", RefID: order.Numero,
		Meta: map[string]any{"orden_id": order.ID, "motivo": motivo},
	})
	return s.repo.Get(ctx, id)
}

// Get loads an order header.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (OrdenCompra, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return OrdenCompra{}, err
	}
	return s.repo.Get(ctx, id)
}

// GetWithLines loads an order and its lines.
func (s *Service) GetWithLines(ctx context.Context, actor shared.Actor, id int64) (OrderWithLines, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return OrderWithLines{}, err
	}
	return s.repo.GetWithLines(ctx, id)
}

// List pages orders.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]OrdenCompra, shared.Pagination, error) {
	if err := actor.Require(shared.PermPurchasingView); err != nil {
		return nil, shared.Pagination{}, err
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

func (s *Service) reconcile(ctx context.Context, partIDs []int64) {
	seen := map[int64]bool{}
	for _, id := range partIDs {
		if seen[id] || s.alerts == nil {
			continue
		}
		seen[id] = true
		if err := s.alerts.ReconcilePart(ctx, id); err != nil {
			s.logger.Error("reconciliación de alertas falló",
				slog.Int64("repuesto_id", id), slog.Any("error", err))
		}
	}
}
