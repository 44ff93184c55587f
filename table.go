package reltable

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/bsm/reltable/codec"
	"github.com/goccy/go-json"
)

// Principal is an opaque 20-byte caller handle. It is recorded as the
// table owner and used for listing, but not checked.
type Principal [20]byte

// ParsePrincipal parses a hex-encoded principal. Shorter inputs are
// zero-padded.
func ParsePrincipal(s string) (Principal, error) {
	var p Principal
	err := p.UnmarshalText([]byte(s))
	return p, err
}

// String returns the hex encoding.
func (p Principal) String() string { return hex.EncodeToString(p[:]) }

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(b), "0x"))
	if err != nil {
		return newError(ErrInvalidType, "bad principal %q", b)
	}
	if len(raw) > len(p) {
		return newError(ErrValueTooLong, "principal of %d bytes", len(raw))
	}
	*p = Principal{}
	copy(p[:], raw)
	return nil
}

// --------------------------------------------------------------------

// Mode determines how primary keys are assigned.
type Mode byte

// Supported modes.
const (
	// AutoIncrement assigns each row the next value of a per-table counter.
	AutoIncrement Mode = iota + 1
	// LeadingColumn uses the first column value as the primary key.
	LeadingColumn
)

func (m Mode) String() string {
	switch m {
	case AutoIncrement:
		return "auto-increment"
	case LeadingColumn:
		return "leading-column"
	}
	return "unknown"
}

// Table is a table schema. Column count and types never change after
// creation.
type Table struct {
	Name        string
	ID          uint32
	Owner       Principal
	Columns     []codec.ColumnType
	Mode        Mode
	Indexed     []int    // sorted column numbers
	ColumnNames []string // optional, one per column
}

// IsIndexed returns true if column col is indexed.
func (t *Table) IsIndexed(col int) bool {
	i := sort.SearchInts(t.Indexed, col)
	return i < len(t.Indexed) && t.Indexed[i] == col
}

// ColumnIndex returns the number of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, s := range t.ColumnNames {
		if s == name {
			return i, true
		}
	}
	return -1, false
}

func (t *Table) clone() *Table {
	c := *t
	c.Columns = append([]codec.ColumnType(nil), t.Columns...)
	c.Indexed = append([]int(nil), t.Indexed...)
	if t.ColumnNames != nil {
		c.ColumnNames = append([]string(nil), t.ColumnNames...)
	}
	return &c
}

// tableRecord is the persisted form of a Table.
type tableRecord struct {
	Name          string    `json:"name"`
	ID            uint32    `json:"id"`
	Owner         Principal `json:"owner"`
	Spec          []byte    `json:"spec"`
	AutoIncrement bool      `json:"auto_increment,omitempty"`
	Indexed       []int     `json:"indexed,omitempty"`
	ColumnNames   []string  `json:"column_names,omitempty"`
}

func (t *Table) marshal() ([]byte, error) {
	return json.Marshal(&tableRecord{
		Name:          t.Name,
		ID:            t.ID,
		Owner:         t.Owner,
		Spec:          codec.EncodeColumnTypes(t.Columns),
		AutoIncrement: t.Mode == AutoIncrement,
		Indexed:       t.Indexed,
		ColumnNames:   t.ColumnNames,
	})
}

func unmarshalTable(data []byte) (*Table, error) {
	var rec tableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	cols, err := codec.ParseColumnTypes(rec.Spec)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Name:        rec.Name,
		ID:          rec.ID,
		Owner:       rec.Owner,
		Columns:     cols,
		Mode:        LeadingColumn,
		Indexed:     rec.Indexed,
		ColumnNames: rec.ColumnNames,
	}
	if rec.AutoIncrement {
		t.Mode = AutoIncrement
	}
	return t, nil
}
