package reltable

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/bsm/reltable/codec"
	"github.com/bsm/reltable/kvstore"
	"github.com/bsm/reltable/splay"
	"github.com/pkg/errors"
)

// CreateTable creates a table and returns its number of columns. Tables
// with autoIncrement assign row keys from a counter, all others use the
// first column as primary key. Columns listed in indexed are maintained
// in a splay index.
//
// A name which only exists among dropped tables may be reused; the new
// table gets a new ID.
func (e *Engine) CreateTable(owner Principal, name string, columns []codec.ColumnType, autoIncrement bool, indexed ...int) (int, error) {
	t := &Table{
		Name:    name,
		Owner:   owner,
		Columns: append([]codec.ColumnType(nil), columns...),
		Mode:    LeadingColumn,
	}
	if autoIncrement {
		t.Mode = AutoIncrement
	}
	for _, col := range indexed {
		if !t.IsIndexed(col) {
			t.Indexed = append(t.Indexed, col)
			sort.Ints(t.Indexed)
		}
	}
	if err := t.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[name]; ok {
		return 0, newError(ErrTableExists, "%q", name)
	}

	if err := e.update(func(tx *kvstore.Txn) error {
		id, err := nextTableID(tx)
		if err != nil {
			return err
		}
		t.ID = id

		data, err := t.marshal()
		if err != nil {
			return err
		}
		if err := tx.Put(tableKey(name), data); err != nil {
			return err
		}
		return tx.Put(nextIDKey, binary.BigEndian.AppendUint32(nil, id+1))
	}); err != nil {
		return 0, err
	}

	e.tables[name] = t
	e.filters[t.ID] = e.newFilters(t)
	e.log.Debug().Str("table", name).Uint32("id", t.ID).Str("mode", t.Mode.String()).Ints("indexed", t.Indexed).Msg("created table")
	return len(t.Columns), nil
}

// CreateTableSpec is like CreateTable, but accepts column type descriptor
// bytes.
func (e *Engine) CreateTableSpec(owner Principal, name string, spec []byte, autoIncrement bool, indexed ...int) (int, error) {
	columns, err := codec.ParseColumnTypes(spec)
	if err != nil {
		return 0, wrapCodec(err, "table %q", name)
	}
	return e.CreateTable(owner, name, columns, autoIncrement, indexed...)
}

// DropTable moves a table to the dropped registry and removes its rows,
// row counter and indexes.
func (e *Engine) DropTable(owner Principal, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(name)
	if err != nil {
		return err
	}

	if err := e.update(func(tx *kvstore.Txn) error {
		if err := deletePrefix(tx, rowPrefix(t.ID)); err != nil {
			return err
		}
		if err := tx.Delete(counterKey(t.ID)); err != nil {
			return err
		}
		for _, col := range t.Indexed {
			if err := splay.New(tx, indexNamespace(t.ID, col), nil).Drop(); err != nil {
				return err
			}
		}

		data, err := t.marshal()
		if err != nil {
			return err
		}
		if err := tx.Delete(tableKey(name)); err != nil {
			return err
		}
		return tx.Put(droppedKey(name, t.ID), data)
	}); err != nil {
		return err
	}

	delete(e.tables, name)
	delete(e.filters, t.ID)
	e.dropped[name] = append(e.dropped[name], t)
	e.log.Debug().Str("table", name).Uint32("id", t.ID).Msg("dropped table")
	return nil
}

// ListTables returns the sorted names of active tables owned by owner
// which start with prefix.
func (e *Engine) ListTables(owner Principal, prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listNames(e.tables, func(t *Table) bool {
		return t.Owner == owner && strings.HasPrefix(t.Name, prefix)
	})
}

// ListAllTables returns the sorted names of all active tables.
func (e *Engine) ListAllTables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listNames(e.tables, func(*Table) bool { return true })
}

// ListDroppedTables returns the sorted names of dropped tables owned by
// owner which start with prefix. The latest drop of a name decides its
// owner.
func (e *Engine) ListDroppedTables(owner Principal, prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listNames(e.latestDropped(), func(t *Table) bool {
		return t.Owner == owner && strings.HasPrefix(t.Name, prefix)
	})
}

// ListAllDroppedTables returns the sorted names of all dropped tables.
func (e *Engine) ListAllDroppedTables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.listNames(e.latestDropped(), func(*Table) bool { return true })
}

func (e *Engine) latestDropped() map[string]*Table {
	res := make(map[string]*Table, len(e.dropped))
	for name, ts := range e.dropped {
		res[name] = ts[len(ts)-1]
	}
	return res
}

func (e *Engine) listNames(tables map[string]*Table, match func(*Table) bool) []string {
	names := make([]string, 0, len(tables))
	for name, t := range tables {
		if match(t) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Schema returns a copy of an active table's schema.
func (e *Engine) Schema(name string) (*Table, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[name]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// DroppedSchema returns a copy of the most recently dropped schema of a
// table.
func (e *Engine) DroppedSchema(name string) (*Table, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.dropped[name]
	if !ok {
		return nil, false
	}
	return ts[len(ts)-1].clone(), true
}

// ColumnType returns the type of column i.
func (e *Engine) ColumnType(table string, i int) (codec.ColumnType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return codec.ColumnType{}, err
	}
	if i < 0 || i >= len(t.Columns) {
		return codec.ColumnType{}, newError(ErrNoColumn, "%q has no column %d", table, i)
	}
	return t.Columns[i], nil
}

// ColumnTypeByName returns the type of a named column.
func (e *Engine) ColumnTypeByName(table, column string) (codec.ColumnType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return codec.ColumnType{}, err
	}
	i, ok := t.ColumnIndex(column)
	if !ok {
		return codec.ColumnType{}, newError(ErrNoColumn, "%q has no column %q", table, column)
	}
	return t.Columns[i], nil
}

// ColumnTypes returns the column types of an active table.
func (e *Engine) ColumnTypes(table string) ([]codec.ColumnType, bool) {
	t, ok := e.Schema(table)
	if !ok {
		return nil, false
	}
	return t.Columns, true
}

// ColumnTypesDropped returns the column types of the most recently dropped
// table with the given name.
func (e *Engine) ColumnTypesDropped(table string) ([]codec.ColumnType, bool) {
	t, ok := e.DroppedSchema(table)
	if !ok {
		return nil, false
	}
	return t.Columns, true
}

// EncodedColumnTypes returns the descriptor bytes of an active table's
// column types.
func (e *Engine) EncodedColumnTypes(table string) ([]byte, bool) {
	cols, ok := e.ColumnTypes(table)
	if !ok {
		return nil, false
	}
	return codec.EncodeColumnTypes(cols), true
}

// SetColumnNames assigns names to all columns of a table.
func (e *Engine) SetColumnNames(owner Principal, table string, names []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return err
	}
	if len(names) != len(t.Columns) {
		return newError(ErrColumnCount, "%q has %d columns, got %d names", table, len(t.Columns), len(names))
	}

	named := t.clone()
	named.ColumnNames = append([]string(nil), names...)

	if err := e.update(func(tx *kvstore.Txn) error {
		data, err := named.marshal()
		if err != nil {
			return err
		}
		return tx.Put(tableKey(table), data)
	}); err != nil {
		return err
	}

	e.tables[table] = named
	return nil
}

// FindColumnNames returns the names of all columns containing substr, in
// column order.
func (e *Engine) FindColumnNames(table, substr string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return nil, err
	}

	var res []string
	for _, name := range t.ColumnNames {
		if strings.Contains(name, substr) {
			res = append(res, name)
		}
	}
	return res, nil
}

// --------------------------------------------------------------------

func (t *Table) validate() error {
	switch {
	case strings.IndexByte(t.Name, Separator) >= 0:
		return newError(ErrSeparatorInName, "%q", t.Name)
	case t.Name == "":
		return newError(ErrInvalidName, "empty table name")
	case len(t.Name) > MaxNameSize:
		return newError(ErrKeyTooLong, "name of %d bytes (max %d)", len(t.Name), MaxNameSize)
	case len(t.Columns) == 0:
		return newError(ErrColumnCount, "%q has no columns", t.Name)
	}

	for i, col := range t.Columns {
		if err := col.Validate(); err != nil {
			return wrapCodec(err, "column %d", i)
		}
	}

	if t.Mode == LeadingColumn {
		if sz := t.Columns[0].MaxEncodedLen(); sz > MaxPrimaryKeySize {
			return newError(ErrKeyTooLong, "leading column %s encodes up to %d bytes (max %d)", t.Columns[0], sz, MaxPrimaryKeySize)
		}
	}

	for _, col := range t.Indexed {
		if col < 0 || col >= len(t.Columns) || col >= MaxIndexedColumns {
			return newError(ErrInvalidType, "indexed column %d out of range", col)
		}
		if sz := t.Columns[col].MaxEncodedLen(); sz > MaxIndexedValueSize {
			return newError(ErrKeyTooLong, "indexed column %d %s encodes up to %d bytes (max %d)", col, t.Columns[col], sz, MaxIndexedValueSize)
		}
	}
	return nil
}

func nextTableID(r kvstore.Reader) (uint32, error) {
	data, err := r.Get(nextIDKey)
	if err == kvstore.ErrNotFound {
		return 1, nil
	} else if err != nil {
		return 0, errors.Wrap(err, "reltable: read table counter")
	}
	return uint32(decodeUint(data)), nil
}

func deletePrefix(rw kvstore.ReadWriter, prefix []byte) error {
	var keys [][]byte
	if err := rw.Iterate(prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return err
	}

	for _, key := range keys {
		if err := rw.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
