package google

import (
	"fmt"
	"strconv"
	"strings"

	"budget/internal/core"
)

// Column headers of the templates sheet, in write order.
var header = []string{"ID", "Type", "Amount", "Description", "Date", "Recurrence", "Confirmed Dates"}

const (
	colID = iota
	colType
	colAmount
	colDescription
	colDate
	colRecurrence
	colConfirmed
)

// RowError reports a sheet row that could not be turned into a template.
// Values holds the row's cells in header order, ready to be written back.
type RowError struct {
	Row    int // 1-based, as shown in the Sheets UI
	ID     string
	Values []interface{}
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.ID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// parseTemplates converts a values matrix into templates. Columns are located
// by header name so that reordered sheets still load. Blank rows are ignored
// and invalid rows are reported without affecting the others.
func parseTemplates(values [][]interface{}) ([]core.TransactionTemplate, []*RowError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	cols := make([]int, len(header))
	var missing []string
	for i, name := range header {
		cols[i] = indexOf(headers, name)
		// Recurrence and Confirmed Dates were added later; older sheets lack them.
		if cols[i] == -1 && i != colRecurrence && i != colConfirmed {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("unexpected sheet header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var (
		out     []core.TransactionTemplate
		skipped []*RowError
	)
	seen := map[string]struct{}{}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		t, err := parseRow(row, cols)
		if err == nil {
			if _, dup := seen[t.ID]; dup {
				err = fmt.Errorf("duplicate id")
			}
		}
		if err != nil {
			skipped = append(skipped, &RowError{Row: i + 1, ID: t.ID, Values: reorder(values[i], cols), Err: err})
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, skipped, nil
}

func parseRow(row []string, cols []int) (core.TransactionTemplate, error) {
	t := core.TransactionTemplate{
		ID:          strings.TrimSpace(safeGet(row, cols[colID])),
		Description: strings.TrimSpace(safeGet(row, cols[colDescription])),
	}

	var err error
	if t.Kind, err = core.ParseKind(safeGet(row, cols[colType])); err != nil {
		return t, err
	}
	cents, err := core.ParseDecimalToCents(safeGet(row, cols[colAmount]))
	if err != nil {
		return t, err
	}
	t.Amount = core.Money{Cents: cents}
	if t.AnchorDate, err = core.ParseDate(safeGet(row, cols[colDate])); err != nil {
		return t, err
	}
	if t.Recurrence, err = core.ParseRecurrence(safeGet(row, cols[colRecurrence])); err != nil {
		return t, err
	}

	var dates []core.Date
	for _, s := range strings.Split(safeGet(row, cols[colConfirmed]), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return t, fmt.Errorf("confirmed date: %w", err)
		}
		dates = append(dates, d)
	}
	t.ConfirmedDates = core.NewDateSet(dates...)

	return t, t.Validate()
}

// reorder picks the cells of row into header order. Absent columns are
// written as empty strings.
func reorder(row []interface{}, cols []int) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = ""
		if c >= 0 && c < len(row) && row[c] != nil {
			out[i] = row[c]
		}
	}
	return out
}

// formatTemplates renders the header row followed by one row per template,
// then the preserved rows unchanged.
func formatTemplates(templates []core.TransactionTemplate, preserved ...[]interface{}) [][]interface{} {
	rows := make([][]interface{}, 0, len(templates)+len(preserved)+1)
	h := make([]interface{}, len(header))
	for i, name := range header {
		h[i] = name
	}
	rows = append(rows, h)
	for _, t := range templates {
		amount, _ := t.Amount.Decimal().Float64()
		rows = append(rows, []interface{}{
			t.ID,
			string(t.Kind),
			amount,
			t.Description,
			t.AnchorDate.String(),
			string(t.Recurrence),
			strings.Join(t.ConfirmedDates.Strings(), ","),
		})
	}
	return append(rows, preserved...)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
