/*
Package reltable implements relational tables on top of an ordered
key-value store with keys of at most 64 bytes.

Tables have a fixed list of typed columns (see package codec). Rows are
addressed either by an auto-incrementing row ID or by the value of their
first column. Columns may be indexed; each indexed column is backed by a
splay tree (see package splay) which maps values to the primary keys of
the rows holding them.

Every mutating call runs in its own transaction and is written to the
store with a single atomic batch. A failed call leaves no trace.

Key Layout

	+--------+-----------------------------+----------------------------+
	| prefix | key                         | value                      |
	+--------+-----------------------------+----------------------------+
	| 0x01   | name                        | table schema (JSON)        |
	| 0x02   | name, 0x00, table ID (4)    | dropped table schema       |
	| 0x03   |                             | next table ID              |
	| 0x04   | table ID (4)                | next row ID                |
	| 0x10   | table ID (4), primary key   | row payload                |
	| 0xe0   | table ID (4), column (1)    | index meta (size, root)    |
	| 0xf0   | table ID (4), column, value | index node (links, keys)   |
	+--------+-----------------------------+----------------------------+

Auto-increment primary keys are stored as 8-byte big-endian integers,
leading-column keys as the encoded column value.

Row Payload

	+-----------------------------------------+-----------------+
	| column encodings (snappy, optional)     | compression (1) |
	+-----------------------------------------+-----------------+

The first column of leading-column tables is only stored in the key.
*/
package reltable
