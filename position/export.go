package position

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// OutcomeHeader is the header row of the trade outcome csv.
var OutcomeHeader = []string{
	"ID", "Strategy", "Direction", "EntryTime", "EntryPrice", "InitialStop", "FinalStop",
	"ExitTime", "ExitPrice", "Reason", "Fills", "PnL", "NetR", "HoldMinutes",
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// outcomeRecord returns the csv record of the provided outcome.
func outcomeRecord(o *Outcome) []string {
	return []string{
		o.ID,
		o.Strategy,
		o.Direction.String(),
		o.EntryTime.Format(time.RFC3339Nano),
		formatPrice(o.EntryPrice),
		formatPrice(o.InitialStop),
		formatPrice(o.FinalStop),
		o.ExitTime.Format(time.RFC3339Nano),
		formatPrice(o.ExitPrice),
		o.Reason.String(),
		strconv.Itoa(len(o.Fills)),
		formatPrice(o.PnL),
		formatPrice(o.NetR),
		formatPrice(o.Hold.Minutes()),
	}
}

// WriteOutcomesCSV writes the provided outcomes as csv, one row per trade in the order given.
func WriteOutcomesCSV(w io.Writer, outcomes []Outcome) error {
	writer := csv.NewWriter(w)
	err := writer.Write(OutcomeHeader)
	if err != nil {
		return fmt.Errorf("writing outcome header: %w", err)
	}

	for idx := range outcomes {
		err := writer.Write(outcomeRecord(&outcomes[idx]))
		if err != nil {
			return fmt.Errorf("writing outcome %s: %w", outcomes[idx].ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
