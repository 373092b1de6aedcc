// Package export writes recorded moods as CSV or JSON downloads
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-while/go-moodtracker/internal/models"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json"
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or json)", s)
}

// ContentType returns the MIME type sent with the download
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// CSVHeader is the first row of a CSV export
var CSVHeader = []string{"Date", "Time", "Mood", "Mood Value", "Note"}

// Filename returns the attachment name for an export made at now, e.g. mood_tracker_data_5-3-2024.csv
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("mood_tracker_data_%d-%d-%d.%s", now.Day(), int(now.Month()), now.Year(), f)
}

// Write encodes entries in format f
func Write(w io.Writer, f Format, entries []*models.MoodEntry) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, entries)
	case FormatJSON:
		return WriteJSON(w, entries)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteCSV writes entries as CSV with a header row. Dates are d/m/yyyy and a
// non-empty note is always quoted.
func WriteCSV(w io.Writer, entries []*models.MoodEntry) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(CSVHeader, ",") + "\n")
	for _, e := range entries {
		bw.WriteString(strings.Join([]string{
			csvDate(e.Date),
			e.ExactTime,
			e.Mood.Label(),
			strconv.Itoa(e.MoodValue),
			quoteNote(e.Note),
		}, ",") + "\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func quoteNote(note string) string {
	if note == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(note, `"`, `""`) + `"`
}

func csvDate(date string) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d/%d/%d", d.Day(), int(d.Month()), d.Year())
}

// WriteJSON writes entries as an indented JSON array. An empty set is written as [].
func WriteJSON(w io.Writer, entries []*models.MoodEntry) error {
	if entries == nil {
		entries = []*models.MoodEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
