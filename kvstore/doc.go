/*
Package kvstore contains the ordered key-value store abstraction used by
reltable, adapters for goleveldb, goleveldb's memdb and badger, a buffering
transaction and a compact snapshot file format.

Keys are limited to MaxKeySize bytes, all adapters reject longer keys.

Snapshot Format

A snapshot is a sorted table of byte keys. It contains a series of data
blocks followed by an index and a footer.

    Snapshot layout:
    +---------+---------+---------+-------------+-----------------+
    | block 1 |   ...   | block n | block index | snapshot footer |
    +---------+---------+---------+-------------+-----------------+

    Block index:
    +---------------------------+-----------------------+------------------+----------------------------+--------+
    | last key len 1 (varint)   | last key 1 (varlen)   | offset 1 (varint)| last key len 2 (varint)... |  ...   |
    +---------------------------+-----------------------+------------------+----------------------------+--------+

    Snapshot footer:
    +------------------------+------------------+
    | index offset (8 bytes) |  magic (8 bytes) |
    +------------------------+------------------+

Offsets in the block index are delta encoded.

Block

A block comprises of a series of sections, followed by a section
index and a single-byte compression type indicator.

    Block layout:
    +-----------+---------+-----------+---------------+---------------------------+
    | section 1 |   ...   | section n | section index | compression type (1-byte) |
    +-----------+---------+-----------+---------------+---------------------------+

    Section index:
    +----------------------------+-------+----------------------------+-------------------------------+
    | section offset 2 (4 bytes) |  ...  | section offset n (4 bytes) |  number of sections (4 bytes) |
    +----------------------------+-------+----------------------------+-------------------------------+

Section

A section is a series of key/value pairs. Each key shares a prefix with the
previous key in the section; the first key of a section shares nothing.

    +-----------------------+-----------------------+-------------------+----------------------+------------------+-------+
    | shared len 1 (varint) | suffix len 1 (varint) | suffix 1 (varlen) | value len 1 (varint) | value 1 (varlen) |  ...  |
    +-----------------------+-----------------------+-------------------+----------------------+------------------+-------+
*/
package kvstore
