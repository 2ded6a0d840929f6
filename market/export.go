package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dnldd/marketprofile/shared"
)

// SummaryHeader is the column order of exported session summaries.
var SummaryHeader = []string{
	"Date", "Sessions", "SessionStart", "SessionEnd",
	"SessionOpen", "SessionHigh", "SessionLow", "SessionClose",
	"SessionVolume", "SessionDelta", "SessionVPOC",
	"TPO_POC", "VAH", "VAL", "IB_High", "IB_Low",
	"PoorHigh", "PoorHighPrice", "PoorLow", "PoorLowPrice",
	"SinglePrints", "SP_High", "SP_Low", "SessionASR",
	"SessionVWAP", "SessionTicks", "ProfileStatus",
}

// FormatFloat renders the provided nullable value, an empty field when unavailable.
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatTime renders the provided nullable time, an empty field when unavailable.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}

// summaryRecord renders the provided summary in header order.
func summaryRecord(s *shared.SessionSummary) []string {
	return []string{
		s.Date,
		s.Session,
		FormatTime(s.SessionStart),
		FormatTime(s.SessionEnd),
		FormatFloat(s.Open),
		FormatFloat(s.High),
		FormatFloat(s.Low),
		FormatFloat(s.Close),
		FormatFloat(s.Volume),
		FormatFloat(s.Delta),
		FormatFloat(s.VPOC),
		FormatFloat(s.TPOPOC),
		FormatFloat(s.VAH),
		FormatFloat(s.VAL),
		FormatFloat(s.IBHigh),
		FormatFloat(s.IBLow),
		strconv.FormatBool(s.PoorHigh),
		FormatFloat(s.PoorHighPrice),
		strconv.FormatBool(s.PoorLow),
		FormatFloat(s.PoorLowPrice),
		strconv.FormatBool(s.SinglePrints),
		FormatFloat(s.SPHigh),
		FormatFloat(s.SPLow),
		FormatFloat(s.ASR),
		FormatFloat(s.VWAP),
		strconv.Itoa(s.Ticks),
		string(s.ProfileStatus),
	}
}

// WriteSummariesCSV writes the provided summaries as csv, header first.
func WriteSummariesCSV(w io.Writer, summaries []shared.SessionSummary) error {
	writer := csv.NewWriter(w)

	err := writer.Write(SummaryHeader)
	if err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}

	for idx := range summaries {
		err := writer.Write(summaryRecord(&summaries[idx]))
		if err != nil {
			return fmt.Errorf("writing %s summary: %w", summaries[idx].Key(), err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// DailyHeader is the column order of exported daily summaries.
var DailyHeader = []string{
	"Date", "DailyOpen", "DailyHigh", "DailyLow", "DailyClose",
	"DailyVolume", "DailyDelta", "TrueRange", "ATR", "DailyTicks",
}

// WriteDailyCSV writes the provided daily summaries as csv, header first.
func WriteDailyCSV(w io.Writer, days []shared.DailySummary) error {
	writer := csv.NewWriter(w)

	err := writer.Write(DailyHeader)
	if err != nil {
		return fmt.Errorf("writing daily header: %w", err)
	}

	for idx := range days {
		d := &days[idx]
		record := []string{
			d.Day(), FormatFloat(&d.Open), FormatFloat(&d.High), FormatFloat(&d.Low), FormatFloat(&d.Close),
			FormatFloat(&d.Volume), FormatFloat(&d.Delta), FormatFloat(&d.TrueRange), FormatFloat(d.ATR),
			strconv.Itoa(d.Ticks),
		}

		err := writer.Write(record)
		if err != nil {
			return fmt.Errorf("writing %s daily summary: %w", d.Day(), err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// keyLevelsHeader returns the column order of exported key levels.
func keyLevelsHeader(windows []int32) []string {
	header := []string{
		"SessionStart", "SessionDate", "Sessions", "SessionOpen",
		"PrevSessionOpen", "PrevSessionHigh", "PrevSessionLow", "PrevSessionClose", "PrevSessionMid",
		"DailyOpen", "PrevDailyHigh", "PrevDailyLow", "PrevDailyMid",
		"MondayHigh", "MondayLow", "MondayMid", "MondayRange",
		"WeeklyOpen", "PrevWeekHigh", "PrevWeekLow", "PrevWeekMid",
		"MonthlyOpen", "PrevMonthHigh", "PrevMonthLow", "PrevMonthMid",
		"QuarterlyOpen", "PrevQuarterMid",
		"YearlyOpen", "PrevYearMid",
	}
	for _, window := range windows {
		header = append(header, fmt.Sprintf("RVWAP_%d", window))
	}

	return header
}

// WriteKeyLevelsCSV writes the provided key levels as csv, header first. The rolling VWAP
// columns follow the provided windows.
func WriteKeyLevelsCSV(w io.Writer, levels []KeyLevels, windows []int32) error {
	writer := csv.NewWriter(w)

	err := writer.Write(keyLevelsHeader(windows))
	if err != nil {
		return fmt.Errorf("writing key levels header: %w", err)
	}

	for idx := range levels {
		kl := &levels[idx]
		record := []string{
			kl.Start.Format(time.RFC3339Nano), kl.Date, kl.Session, FormatFloat(&kl.Open),
			FormatFloat(kl.PrevSessionOpen), FormatFloat(kl.PrevSessionHigh), FormatFloat(kl.PrevSessionLow),
			FormatFloat(kl.PrevSessionClose), FormatFloat(kl.PrevSessionMid),
			FormatFloat(kl.DailyOpen), FormatFloat(kl.PrevDailyHigh), FormatFloat(kl.PrevDailyLow), FormatFloat(kl.PrevDailyMid),
			FormatFloat(kl.MondayHigh), FormatFloat(kl.MondayLow), FormatFloat(kl.MondayMid), FormatFloat(kl.MondayRange),
			FormatFloat(kl.WeeklyOpen), FormatFloat(kl.PrevWeekHigh), FormatFloat(kl.PrevWeekLow), FormatFloat(kl.PrevWeekMid),
			FormatFloat(kl.MonthlyOpen), FormatFloat(kl.PrevMonthHigh), FormatFloat(kl.PrevMonthLow), FormatFloat(kl.PrevMonthMid),
			FormatFloat(kl.QuarterlyOpen), FormatFloat(kl.PrevQuarterMid),
			FormatFloat(kl.YearlyOpen), FormatFloat(kl.PrevYearMid),
		}
		for i := range windows {
			var v *float64
			if i < len(kl.RollingVWAP) {
				v = kl.RollingVWAP[i]
			}
			record = append(record, FormatFloat(v))
		}

		err := writer.Write(record)
		if err != nil {
			return fmt.Errorf("writing %s %s key levels: %w", kl.Date, kl.Session, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
