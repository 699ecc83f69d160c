package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"
)

// WriteCSV renders timeline rows as CSV for the export endpoint.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "fecha", "actor", "modulo", "accion", "referencia", "detalle"}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		detail := ""
		if len(entry.Meta) > 0 {
			if raw, err := json.Marshal(entry.Meta); err == nil {
				detail = string(raw)
			}
		}
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.OccurredAt.Format(time.RFC3339),
			strconv.FormatInt(entry.ActorID, 10),
			entry.Module,
			entry.Action,
			entry.RefID,
			detail,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
