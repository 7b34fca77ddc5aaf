package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownColumn is returned when an update names a column that cannot be
// changed through Update.
var ErrUnknownColumn = errors.New("unknown or read-only column")

// ErrNoFields is returned when an update carries nothing to change.
var ErrNoFields = errors.New("no fields to update")

// columnKind describes how an updatable column is encoded.
type columnKind int

const (
	columnPlain columnKind = iota
	columnJSON
)

// updatableColumns lists the columns Update may touch. Counters, ids and
// timestamps are managed by the store itself.
var updatableColumns = map[string]columnKind{
	"title":          columnPlain,
	"description":    columnPlain,
	"category":       columnPlain,
	"tags":           columnJSON,
	"filename":       columnPlain,
	"filesize":       columnPlain,
	"thumbnail":      columnPlain,
	"license":        columnPlain,
	"print_settings": columnJSON,
	"model_count":    columnPlain,
	"featured":       columnPlain,
}

// statColumns lists the counters IncrementStat accepts.
var statColumns = map[string]bool{
	"downloads": true,
	"likes":     true,
	"views":     true,
}

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WhereBuilder accumulates AND-ed conditions with positional arguments.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n". Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(column), wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// AddBool appends "column = $n" when value is non-nil.
func (wb *WhereBuilder) AddBool(column string, value *bool) {
	if value == nil {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", quoteIdentifier(column), wb.argIndex))
	wb.args = append(wb.args, *value)
	wb.argIndex++
}

// AddSearch appends a case-insensitive substring match over columns, sharing
// one placeholder.
func (wb *WhereBuilder) AddSearch(query string, columns ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", quoteIdentifier(col), wb.argIndex)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
	wb.args = append(wb.args, "%"+escapeLike(query)+"%")
	wb.argIndex++
}

// NextArgIndex returns the placeholder number the next argument will take.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns the WHERE clause (with a leading space) and its arguments.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildUpdate renders a parameterized UPDATE for the given fields. Columns are
// emitted in sorted order; updated_at is always bumped.
func buildUpdate(id uuid.UUID, fields map[string]any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, ErrNoFields
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if _, ok := updatableColumns[col]; !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		val := fields[col]
		if updatableColumns[col] == columnJSON {
			b, err := json.Marshal(val)
			if err != nil {
				return "", nil, fmt.Errorf("encode %s: %w", col, err)
			}
			val = b
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col), i+1))
		args = append(args, val)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE models SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

// buildIncrement renders the counter bump for stat.
func buildIncrement(stat string) (string, error) {
	if !statColumns[stat] {
		return "", fmt.Errorf("%w: %q", ErrUnknownStat, stat)
	}
	col := quoteIdentifier(stat)
	return fmt.Sprintf("UPDATE models SET %s = %s + 1 WHERE id = $1", col, col), nil
}
