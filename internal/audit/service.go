package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tallerpro/tallerpro/internal/shared"
)

// RepositoryPort abstracts audit storage.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	InsertTx(ctx context.Context, tx pgx.Tx, entry Entry) error
	InsertDeletionTx(ctx context.Context, tx pgx.Tx, record DeletionRecord) error
	Timeline(ctx context.Context, filters TimelineFilters) ([]Entry, int, error)
}

// Service writes and reads the append-only audit ledger.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the audit service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record appends a privileged-action row. Audit failures are logged, never
// propagated; the ledger must not abort the business operation it describes.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if entry.Action == "" || entry.Module == "" {
		s.logger.Warn("audit entry dropped: missing action/module")
		return
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("audit record", slog.Any("error", err), slog.String("action", entry.Action))
	}
}

// RecordTx appends a row inside the caller's transaction. Used when the audit
// row must commit atomically with the mutation (deletions).
func (s *Service) RecordTx(ctx context.Context, tx pgx.Tx, entry Entry) error {
	if entry.Action == "" || entry.Module == "" {
		return errors.New("audit: entry requires module and action")
	}
	return s.repo.InsertTx(ctx, tx, entry)
}

// RecordPartDeletionTx writes both the audit row and the deletion registry row
// with the JSON snapshot, inside the deletion transaction.
func (s *Service) RecordPartDeletionTx(ctx context.Context, tx pgx.Tx, actorID int64, snapshot PartSnapshot, reason string) error {
	if err := s.repo.InsertDeletionTx(ctx, tx, DeletionRecord{
		RepuestoID: snapshot.RepuestoID,
		ActorID:    actorID,
		Reason:     reason,
		Snapshot:   snapshot,
	}); err != nil {
		return err
	}
	return s.repo.InsertTx(ctx, tx, Entry{
		ActorID: actorID,
		Module:  "repuestos",
		Action:  "ELIMINACION_PERMANENTE",
		RefID:   snapshot.Codigo,
		Meta: map[string]any{
			"repuesto_id": snapshot.RepuestoID,
			"motivo":      reason,
		},
	})
}

// Timeline lists audit rows for the given filters. Requires audit.view.
func (s *Service) Timeline(ctx context.Context, actor shared.Actor, filters TimelineFilters) ([]Entry, int, error) {
	if err := actor.Require(shared.PermAuditView); err != nil {
		return nil, 0, err
	}
	return s.repo.Timeline(ctx, filters)
}
