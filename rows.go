package reltable

import (
	"github.com/bsm/reltable/codec"
	"github.com/bsm/reltable/kvstore"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Trailing payload byte.
const (
	payloadPlain  = 0
	payloadSnappy = 1
)

// WriteRow stores a row and returns its primary key: an int64 row ID for
// auto-increment tables, the first column value otherwise. Rows of
// leading-column tables are overwritten.
func (e *Engine) WriteRow(owner Principal, table string, values []interface{}) (interface{}, error) {
	keys, err := e.WriteRows(owner, table, [][]interface{}{values})
	if err != nil {
		return nil, err
	}
	return keys[0], nil
}

// WriteRows stores multiple rows atomically.
func (e *Engine) WriteRows(owner Principal, table string, rows [][]interface{}) ([]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return nil, err
	}
	return e.writeRows(t, rows)
}

// AddRow appends a row to an auto-increment table and returns its ID.
func (e *Engine) AddRow(owner Principal, table string, values []interface{}) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return 0, err
	}
	if t.Mode != AutoIncrement {
		return 0, newError(ErrNotAutoIncrement, "%q", table)
	}

	keys, err := e.writeRows(t, [][]interface{}{values})
	if err != nil {
		return 0, err
	}
	return keys[0].(int64), nil
}

// GetRow returns the row stored under key.
func (e *Engine) GetRow(table string, key interface{}) ([]interface{}, error) {
	rows, err := e.GetRows(table, []interface{}{key})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// GetRows returns the rows stored under keys. It fails with ErrNoData if
// any of the keys is missing.
func (e *Engine) GetRows(table string, keys []interface{}) ([][]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(keys))
	for _, key := range keys {
		pk, err := t.primaryKey(key)
		if err != nil {
			return nil, err
		}

		values, _, err := e.getRow(e.store, t, pk)
		if err != nil {
			return nil, err
		} else if values == nil {
			return nil, newError(ErrNoData, "%q has no row %v", table, key)
		}
		rows = append(rows, values)
	}
	return rows, nil
}

// DeleteRow removes the row stored under key, if any.
func (e *Engine) DeleteRow(owner Principal, table string, key interface{}) error {
	return e.DeleteRows(owner, table, []interface{}{key})
}

// DeleteRows removes multiple rows atomically. Missing rows are ignored.
func (e *Engine) DeleteRows(owner Principal, table string, keys []interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return err
	}

	return e.update(func(tx *kvstore.Txn) error {
		for _, key := range keys {
			pk, err := t.primaryKey(key)
			if err != nil {
				return err
			}
			if err := e.deleteRow(tx, t, pk); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRows returns all rows of a table in primary key order.
func (e *Engine) ListRows(table string) ([][]interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rows [][]interface{}
	err := e.scanRows(table, func(_ interface{}, values []interface{}) error {
		rows = append(rows, values)
		return nil
	})
	return rows, err
}

// ScanRows calls fn for every row of a table in primary key order. Rows
// are read first and fn is called without holding the engine lock, so fn
// may call back into the engine. An error returned by fn stops the scan.
func (e *Engine) ScanRows(table string, fn func(key interface{}, values []interface{}) error) error {
	type row struct {
		key    interface{}
		values []interface{}
	}

	var rows []row
	e.mu.Lock()
	err := e.scanRows(table, func(key interface{}, values []interface{}) error {
		rows = append(rows, row{key: key, values: values})
		return nil
	})
	e.mu.Unlock()
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := fn(r.key, r.values); err != nil {
			return err
		}
	}
	return nil
}

// RowID returns the ID the next row of an auto-increment table will get.
func (e *Engine) RowID(table string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(table)
	if err != nil {
		return 0, err
	}
	if t.Mode != AutoIncrement {
		return 0, newError(ErrNotAutoIncrement, "%q", table)
	}

	id, err := nextRowID(e.store, t)
	return int64(id), err
}

// --------------------------------------------------------------------

func (e *Engine) writeRows(t *Table, rows [][]interface{}) ([]interface{}, error) {
	keys := make([]interface{}, 0, len(rows))
	if err := e.update(func(tx *kvstore.Txn) error {
		for _, values := range rows {
			key, err := e.writeRow(tx, t, values)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

// scanRows decodes every row of a table. Store iterators reuse their
// buffers, so keys and payloads are copied before decoding.
func (e *Engine) scanRows(table string, fn func(key interface{}, values []interface{}) error) error {
	t, err := e.table(table)
	if err != nil {
		return err
	}

	pfx := rowPrefix(t.ID)
	return e.store.Iterate(pfx, func(key, payload []byte) error {
		pk := append([]byte(nil), key[len(pfx):]...)
		values, _, err := e.decodeRow(t, pk, append([]byte(nil), payload...))
		if err != nil {
			return err
		}
		k, err := t.decodeKey(pk)
		if err != nil {
			return err
		}
		return fn(k, values)
	})
}

func (e *Engine) writeRow(tx *kvstore.Txn, t *Table, values []interface{}) (interface{}, error) {
	if len(values) != len(t.Columns) {
		return nil, newError(ErrColumnCount, "%q has %d columns, got %d values", t.Name, len(t.Columns), len(values))
	}

	encs := make([][]byte, len(values))
	for i, col := range t.Columns {
		enc, err := col.Encode(values[i])
		if err != nil {
			return nil, wrapCodec(err, "%q column %d", t.Name, i)
		}
		encs[i] = enc
	}

	var pk []byte
	switch t.Mode {
	case AutoIncrement:
		id, err := nextRowID(tx, t)
		if err != nil {
			return nil, err
		}
		if err := tx.Put(counterKey(t.ID), encodeRowID(id+1)); err != nil {
			return nil, err
		}
		pk = encodeRowID(id)
	default:
		pk = encs[0]
		if err := e.deleteRow(tx, t, pk); err != nil {
			return nil, err
		}
	}

	if err := tx.Put(rowKey(t.ID, pk), e.pack(t, encs)); err != nil {
		return nil, err
	}
	if err := e.indexRow(tx, t, pk, encs); err != nil {
		return nil, err
	}

	e.log.Debug().Str("table", t.Name).Hex("key", pk).Msg("wrote row")
	return t.decodeKey(pk)
}

func (e *Engine) deleteRow(tx *kvstore.Txn, t *Table, pk []byte) error {
	if pk == nil {
		return nil
	}

	values, encs, err := e.getRow(tx, t, pk)
	if err != nil || values == nil {
		return err
	}

	if err := e.unindexRow(tx, t, pk, encs); err != nil {
		return err
	}
	if err := tx.Delete(rowKey(t.ID, pk)); err != nil {
		return err
	}

	e.log.Debug().Str("table", t.Name).Hex("key", pk).Msg("deleted row")
	return nil
}

// getRow returns nil values if there is no row stored under pk.
func (e *Engine) getRow(r kvstore.Reader, t *Table, pk []byte) ([]interface{}, [][]byte, error) {
	if pk == nil {
		return nil, nil, nil
	}

	payload, err := r.Get(rowKey(t.ID, pk))
	if err == kvstore.ErrNotFound {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, errors.Wrapf(err, "reltable: read %q row %x", t.Name, pk)
	}
	return e.decodeRow(t, pk, payload)
}

// pack concatenates the payload column encodings and appends the
// compression byte.
func (e *Engine) pack(t *Table, encs [][]byte) []byte {
	if t.Mode == LeadingColumn {
		encs = encs[1:]
	}

	var plain []byte
	for _, enc := range encs {
		plain = append(plain, enc...)
	}

	if e.opt.Compression == kvstore.SnappyCompression && len(plain) != 0 {
		if packed := snappy.Encode(nil, plain); len(packed) < len(plain)-len(plain)/4 {
			return append(packed, payloadSnappy)
		}
	}
	return append(plain, payloadPlain)
}

// decodeRow returns the decoded values and the canonical encoding of each
// column.
func (e *Engine) decodeRow(t *Table, pk, payload []byte) ([]interface{}, [][]byte, error) {
	if len(payload) == 0 {
		return nil, nil, errors.Errorf("reltable: corrupt %q row %x, empty payload", t.Name, pk)
	}

	body := payload[:len(payload)-1]
	switch payload[len(payload)-1] {
	case payloadPlain:
	case payloadSnappy:
		plain, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reltable: corrupt %q row %x", t.Name, pk)
		}
		body = plain
	default:
		return nil, nil, errors.Errorf("reltable: corrupt %q row %x, bad compression", t.Name, pk)
	}

	values := make([]interface{}, len(t.Columns))
	encs := make([][]byte, len(t.Columns))

	start := 0
	if t.Mode == LeadingColumn {
		v, _, err := t.Columns[0].Decode(pk)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reltable: corrupt %q key %x", t.Name, pk)
		}
		values[0], encs[0] = v, pk
		start = 1
	}

	for i := start; i < len(t.Columns); i++ {
		v, rest, err := t.Columns[i].Decode(body)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reltable: corrupt %q row %x, column %d", t.Name, pk, i)
		}
		values[i], encs[i] = v, body[:len(body)-len(rest)]
		body = rest
	}
	if len(body) != 0 {
		return nil, nil, errors.Errorf("reltable: corrupt %q row %x, %d trailing bytes", t.Name, pk, len(body))
	}
	return values, encs, nil
}

// primaryKey encodes a row key. It returns nil if key can never match a
// row.
func (t *Table) primaryKey(key interface{}) ([]byte, error) {
	if t.Mode == LeadingColumn {
		pk, err := t.Columns[0].Encode(key)
		if err != nil {
			return nil, wrapCodec(err, "%q key", t.Name)
		}
		return pk, nil
	}

	n, err := codec.ToBigInt(key)
	if err != nil {
		return nil, wrapCodec(err, "%q key", t.Name)
	}
	if n.Sign() <= 0 || !n.IsUint64() {
		return nil, nil
	}
	return encodeRowID(n.Uint64()), nil
}

func (t *Table) decodeKey(pk []byte) (interface{}, error) {
	if t.Mode == LeadingColumn {
		v, _, err := t.Columns[0].Decode(pk)
		return v, err
	}
	return int64(decodeUint(pk)), nil
}

func nextRowID(r kvstore.Reader, t *Table) (uint64, error) {
	data, err := r.Get(counterKey(t.ID))
	if err == kvstore.ErrNotFound {
		return 1, nil
	} else if err != nil {
		return 0, errors.Wrapf(err, "reltable: read %q row counter", t.Name)
	}
	return decodeUint(data), nil
}
