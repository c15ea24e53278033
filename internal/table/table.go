package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the storage type of a column.
type Kind int

const (
	// String columns hold raw text values (identifiers, names, statuses).
	String Kind = iota
	// Float columns hold float64 values with a per-cell null mask.
	Float
)

// Column is a single named column of a Table. Exactly one of Strings or
// Floats is populated depending on Kind. For Float columns, Nulls marks
// cells that held no value in the original data.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Floats  []float64
	Nulls   []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.Kind == Float {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Table is an in-memory tabular dataset with named, ordered columns.
// Rows are addressed by index; column order is preserved across
// transformations because gradebook exports treat it as significant.
type Table struct {
	order   []string
	columns map[string]*Column
	rows    int
}

// New creates an empty table.
func New() *Table {
	return &Table{columns: make(map[string]*Column)}
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int { return t.rows }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	return t.columns[name]
}

// AddStringColumn appends a string column. The value count must match the
// table's row count unless the table is empty.
func (t *Table) AddStringColumn(name string, values []string) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	t.put(&Column{Name: name, Kind: String, Strings: values})
	return nil
}

// AddFloatColumn appends a numeric column with an optional null mask.
// A nil mask means no cell is null.
func (t *Table) AddFloatColumn(name string, values []float64, nulls []bool) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	if nulls == nil {
		nulls = make([]bool, len(values))
	}
	t.put(&Column{Name: name, Kind: Float, Floats: values, Nulls: nulls})
	return nil
}

// SetFloatColumn stores a numeric column, overwriting any existing column
// of the same name while keeping its position in the column order.
func (t *Table) SetFloatColumn(name string, values []float64, nulls []bool) error {
	if t.rows != 0 && len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	if nulls == nil {
		nulls = make([]bool, len(values))
	}
	t.put(&Column{Name: name, Kind: Float, Floats: values, Nulls: nulls})
	return nil
}

func (t *Table) checkNew(name string, n int) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if t.rows != 0 && n != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, n, t.rows)
	}
	return nil
}

func (t *Table) put(c *Column) {
	if _, exists := t.columns[c.Name]; !exists {
		t.order = append(t.order, c.Name)
	}
	t.columns[c.Name] = c
	if t.rows == 0 {
		t.rows = c.Len()
	}
}

// RenameColumn renames a column in place, preserving its position.
func (t *Table) RenameColumn(oldName, newName string) error {
	col, ok := t.columns[oldName]
	if !ok {
		return fmt.Errorf("column %q not found", oldName)
	}
	if oldName == newName {
		return nil
	}
	if t.HasColumn(newName) {
		return fmt.Errorf("column %q already exists", newName)
	}
	col.Name = newName
	delete(t.columns, oldName)
	t.columns[newName] = col
	for i, n := range t.order {
		if n == oldName {
			t.order[i] = newName
		}
	}
	return nil
}

// DropColumn removes a column. Dropping a missing column is a no-op.
func (t *Table) DropColumn(name string) {
	if _, ok := t.columns[name]; !ok {
		return
	}
	delete(t.columns, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if len(t.order) == 0 {
		t.rows = 0
	}
}

// Select returns a new table containing copies of the named columns, in
// the given order. Missing names are skipped.
func (t *Table) Select(names []string) *Table {
	out := New()
	out.rows = t.rows
	for _, name := range names {
		col, ok := t.columns[name]
		if !ok {
			continue
		}
		out.put(copyColumn(col))
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return t.Select(t.order)
}

func copyColumn(c *Column) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Float {
		out.Floats = append([]float64(nil), c.Floats...)
		out.Nulls = append([]bool(nil), c.Nulls...)
	} else {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// NumericColumns returns the names of all Float columns in order.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, name := range t.order {
		if t.columns[name].Kind == Float {
			out = append(out, name)
		}
	}
	return out
}

// FillNulls replaces every null cell in every numeric column with the
// given value and clears the null masks. String columns are untouched.
func (t *Table) FillNulls(value float64) {
	for _, name := range t.order {
		col := t.columns[name]
		if col.Kind != Float {
			continue
		}
		for i, isNull := range col.Nulls {
			if isNull {
				col.Floats[i] = value
				col.Nulls[i] = false
			}
		}
	}
}

// CellString renders a single cell as text. Null numeric cells render as
// the empty string; numeric cells use the shortest exact representation.
func (t *Table) CellString(name string, row int) string {
	col, ok := t.columns[name]
	if !ok || row < 0 || row >= col.Len() {
		return ""
	}
	if col.Kind == String {
		return col.Strings[row]
	}
	if col.Nulls[row] {
		return ""
	}
	return strconv.FormatFloat(col.Floats[row], 'f', -1, 64)
}

// FromRecords builds a table from a header row and data records, inferring
// each column's kind: a column is numeric when every non-empty cell parses
// as a float (empty cells become nulls). Short records are padded with
// empty cells; whitespace around header names is stripped.
func FromRecords(header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("empty header")
	}
	t := New()
	t.rows = len(records)
	for i, rawName := range header {
		name := strings.TrimSpace(rawName)
		cells := make([]string, len(records))
		for r, rec := range records {
			if i < len(rec) {
				cells[r] = strings.TrimSpace(rec[i])
			}
		}
		if floats, nulls, ok := tryNumeric(cells); ok {
			t.put(&Column{Name: name, Kind: Float, Floats: floats, Nulls: nulls})
		} else {
			t.put(&Column{Name: name, Kind: String, Strings: cells})
		}
	}
	return t, nil
}

func tryNumeric(cells []string) ([]float64, []bool, bool) {
	floats := make([]float64, len(cells))
	nulls := make([]bool, len(cells))
	seen := false
	for i, cell := range cells {
		if cell == "" {
			nulls[i] = true
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, nil, false
		}
		floats[i] = v
		seen = true
	}
	// A column of only empty cells stays textual.
	return floats, nulls, seen
}

// Concat stacks tables row-wise by column union: columns missing from one
// table are padded with nulls (numeric) or empty strings. Where column
// kinds conflict across tables the column degrades to string.
func Concat(tables ...*Table) *Table {
	out := New()
	var totalRows int
	for _, t := range tables {
		totalRows += t.rows
	}
	out.rows = totalRows
	// Column order: first appearance wins.
	var order []string
	kinds := make(map[string]Kind)
	for _, t := range tables {
		for _, name := range t.order {
			if _, seen := kinds[name]; !seen {
				order = append(order, name)
				kinds[name] = t.columns[name].Kind
			} else if kinds[name] != t.columns[name].Kind {
				kinds[name] = String
			}
		}
	}
	for _, name := range order {
		if kinds[name] == Float {
			floats := make([]float64, 0, totalRows)
			nulls := make([]bool, 0, totalRows)
			for _, t := range tables {
				col := t.columns[name]
				if col == nil {
					for i := 0; i < t.rows; i++ {
						floats = append(floats, 0)
						nulls = append(nulls, true)
					}
					continue
				}
				floats = append(floats, col.Floats...)
				nulls = append(nulls, col.Nulls...)
			}
			out.put(&Column{Name: name, Kind: Float, Floats: floats, Nulls: nulls})
			continue
		}
		strs := make([]string, 0, totalRows)
		for _, t := range tables {
			col := t.columns[name]
			if col == nil {
				for i := 0; i < t.rows; i++ {
					strs = append(strs, "")
				}
				continue
			}
			if col.Kind == Float {
				for i := range col.Floats {
					if col.Nulls[i] {
						strs = append(strs, "")
					} else {
						strs = append(strs, strconv.FormatFloat(col.Floats[i], 'f', -1, 64))
					}
				}
				continue
			}
			strs = append(strs, col.Strings...)
		}
		out.put(&Column{Name: name, Kind: String, Strings: strs})
	}
	return out
}
