// Package export writes auction records in JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/parcelmas/core/auction/logging"
)

// Write encodes records in the named format, "json" or "csv".
func Write(w io.Writer, format string, records []logging.Record) error {
	switch format {
	case "json":
		return WriteJSON(w, records)
	case "csv":
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the records as a JSON array.
func WriteJSON(w io.Writer, records []logging.Record) error {
	if records == nil {
		records = []logging.Record{}
	}
	return json.NewEncoder(w).Encode(records)
}

// WriteCSV writes one row per record. Bids are rendered as vehicle=bid pairs
// sorted by vehicle and tied vehicles are separated by semicolons.
func WriteCSV(w io.Writer, records []logging.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "timestamp", "task_id", "winner", "bids", "tied"}); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.RunID,
			r.Timestamp.Format(time.RFC3339),
			r.TaskID,
			r.Winner,
			formatBids(r.Bids),
			strings.Join(r.Tied, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatBids(bids map[string]float64) string {
	ids := make([]string, 0, len(bids))
	for id := range bids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + "=" + strconv.FormatFloat(bids[id], 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
