// Package dataset reads and writes the joined-row record stream as the JSON
// collection envelope or as a flat CSV table.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/pkg/models"
)

// ErrMalformedRecord marks a record with an unparseable date, number or
// filing type. Loaders log and skip such records; the rest of the batch is
// kept.
var ErrMalformedRecord = errors.New("malformed record")

// Format is an on-disk dataset encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown dataset format %q (want json or csv)", s)
}

// FormatOf infers the format from a file extension, defaulting to JSON.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// returnKey matches the per-horizon return column, e.g. actual7dReturn.
var returnKey = regexp.MustCompile(`^actual(\d+)dReturn$`)

// effectiveKey matches the per-horizon effective-days CSV column.
var effectiveKey = regexp.MustCompile(`^effective(\d+)d$`)

func returnName(h int) string    { return "actual" + strconv.Itoa(h) + "dReturn" }
func effectiveName(h int) string { return "effective" + strconv.Itoa(h) + "d" }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Horizons returns the sorted set of horizons present in rows.
func Horizons(rows []models.JoinedRow) []int {
	seen := make(map[int]bool)
	for _, r := range rows {
		for h := range r.Returns {
			seen[h] = true
		}
	}
	out := make([]int, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}

// Load reads a dataset file, picking the format from its extension.
// It returns the well-formed rows and the number of malformed records
// skipped; only an unreadable file is an error.
func Load(path string, log *zap.Logger) ([]models.JoinedRow, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	if FormatOf(path) == FormatCSV {
		return ReadCSV(f, log)
	}
	return ReadJSON(f, log)
}

// Save writes rows to path in the format implied by its extension.
func Save(path string, rows []models.JoinedRow, horizons []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	if FormatOf(path) == FormatCSV {
		err = WriteCSV(f, rows, horizons)
	} else {
		err = WriteJSON(f, rows, horizons)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close dataset: %w", cerr)
	}
	return err
}
