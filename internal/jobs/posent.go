package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MailSender delivers one plain-text message.
type MailSender interface {
	Send(to, subject, body string) error
}

// POSentJob mails the supplier when a purchase order is dispatched.
type POSentJob struct {
	pool    *pgxpool.Pool
	sender  MailSender
	logger  *slog.Logger
	metrics *Metrics
}

// NewPOSentJob constructs the job.
func NewPOSentJob(pool *pgxpool.Pool, sender MailSender, logger *slog.Logger, metrics *Metrics) *POSentJob {
	return &POSentJob{pool: pool, sender: sender, logger: logger, metrics: metrics}
}

// Handle processes one TaskTypePOSent task. A supplier without an email
// address is not an error; the notification is simply skipped.
func (j *POSentJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("po_sent")
	var payload POSentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}

	var numero, notas, proveedorNombre, proveedorEmail string
	var total decimal.Decimal
	err := j.pool.QueryRow(ctx, `SELECT oc.numero, oc.notas, oc.total, p.nombre, p.email
FROM ordenes_compra oc JOIN proveedores p ON p.id = oc.proveedor_id
WHERE oc.id = $1`, payload.OrdenID).Scan(&numero, &notas, &total, &proveedorNombre, &proveedorEmail)
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: load order %d: %w", payload.OrdenID, err))
	}
	if proveedorEmail == "" {
		j.logger.Info("supplier has no email, skipping notification",
			slog.String("numero", numero), slog.String("proveedor", proveedorNombre))
		return tracker.End(nil)
	}

	rows, err := j.pool.Query(ctx, `SELECT descripcion, cantidad, precio_unitario
FROM detalle_ordenes_compra WHERE orden_id = $1 ORDER BY id`, payload.OrdenID)
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: load order lines %d: %w", payload.OrdenID, err))
	}
	defer rows.Close()

	var body strings.Builder
	fmt.Fprintf(&body, "Estimado proveedor %s,\n\n", proveedorNombre)
	fmt.Fprintf(&body, "Le enviamos la orden de compra %s:\n\n", numero)
	for rows.Next() {
		var descripcion string
		var cantidad int64
		var precio decimal.Decimal
		if err := rows.Scan(&descripcion, &cantidad, &precio); err != nil {
			return tracker.End(err)
		}
		fmt.Fprintf(&body, "  - %s x%d @ %s\n", descripcion, cantidad, precio.StringFixed(2))
	}
	if err := rows.Err(); err != nil {
		return tracker.End(err)
	}
	fmt.Fprintf(&body, "\nTotal: %s\n", total.StringFixed(2))
	if notas != "" {
		fmt.Fprintf(&body, "\nNotas: %s\n", notas)
	}

	subject := fmt.Sprintf("Orden de compra %s", numero)
	if err := j.sender.Send(proveedorEmail, subject, body.String()); err != nil {
		return tracker.End(fmt.Errorf("jobs: send po mail %s: %w", numero, err))
	}
	j.logger.Info("supplier notified", slog.String("numero", numero), slog.String("email", proveedorEmail))
	return tracker.End(nil)
}
