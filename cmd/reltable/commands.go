package main

import (
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bsm/reltable"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var errLimit = errors.New("limit reached")

type tableInfo struct {
	Name    string             `json:"name"`
	ID      uint32             `json:"id"`
	Owner   reltable.Principal `json:"owner"`
	Mode    string             `json:"mode"`
	Columns int                `json:"columns"`
	Dropped bool               `json:"dropped,omitempty"`
}

type columnInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

type rowInfo struct {
	Key    interface{}   `json:"key"`
	Values []interface{} `json:"values"`
}

func listTables(e *reltable.Engine, c *tablesCmd, w io.Writer) error {
	var names []string
	if c.Owner != "" {
		owner, err := reltable.ParsePrincipal(c.Owner)
		if err != nil {
			return err
		}
		if c.Dropped {
			names = e.ListDroppedTables(owner, c.Prefix)
		} else {
			names = e.ListTables(owner, c.Prefix)
		}
	} else if c.Dropped {
		names = filterPrefix(e.ListAllDroppedTables(), c.Prefix)
	} else {
		names = filterPrefix(e.ListAllTables(), c.Prefix)
	}

	enc := json.NewEncoder(w)
	for _, name := range names {
		var (
			t  *reltable.Table
			ok bool
		)
		if c.Dropped {
			t, ok = e.DroppedSchema(name)
		} else {
			t, ok = e.Schema(name)
		}
		if !ok {
			continue
		}

		if err := enc.Encode(tableInfo{
			Name:    t.Name,
			ID:      t.ID,
			Owner:   t.Owner,
			Mode:    t.Mode.String(),
			Columns: len(t.Columns),
			Dropped: c.Dropped,
		}); err != nil {
			return err
		}
	}
	return nil
}

func listColumns(e *reltable.Engine, table string, w io.Writer) error {
	t, ok := e.Schema(table)
	if !ok {
		return &reltable.Error{Kind: reltable.ErrNoTable, Msg: strconv.Quote(table)}
	}

	enc := json.NewEncoder(w)
	for i, col := range t.Columns {
		info := columnInfo{
			Index:   i,
			Type:    col.String(),
			Indexed: t.IsIndexed(i),
		}
		if i < len(t.ColumnNames) {
			info.Name = t.ColumnNames[i]
		}
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	return nil
}

func listRows(e *reltable.Engine, c *rowsCmd, w io.Writer) error {
	enc := json.NewEncoder(w)
	n := 0
	err := e.ScanRows(c.Table, func(key interface{}, values []interface{}) error {
		if c.Limit > 0 && n >= c.Limit {
			return errLimit
		}
		n++

		for i, v := range values {
			values[i] = displayValue(v)
		}
		return enc.Encode(rowInfo{Key: displayValue(key), Values: values})
	})
	if errors.Is(err, errLimit) {
		return nil
	}
	return err
}

func dump(e *reltable.Engine, fname string, logger zerolog.Logger) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := e.Snapshot(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info().Str("file", fname).Msg("wrote snapshot")
	return nil
}

// displayValue renders byte strings as text if they are valid UTF-8 and
// as 0x-prefixed hex otherwise.
func displayValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + hex.EncodeToString(x)
	case *big.Int:
		return x.String()
	}
	return v
}

func filterPrefix(names []string, prefix string) []string {
	if prefix == "" {
		return names
	}

	res := names[:0]
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			res = append(res, name)
		}
	}
	return res
}
