/*
Package sstable contains a minimal SSTable implementation: an immutable,
sorted, block-based key/value table file with arbitrary byte-string keys.

Data Structure Documentation

Table

A table contains a series of data blocks followed by a block index and
a fixed-size footer. All integers are little-endian.

    Table layout:
    +---------+---------+---------+-------------+--------------+
    | block 1 |   ...   | block n | block index | table footer |
    +---------+---------+---------+-------------+--------------+

    Block index:
    +-----------------------+--------------------------+------------------+---------------------+-------------------+-------+
    | num entries (4 bytes) | last key len 1 (4 bytes) |  last key 1 (..) |  offset 1 (8 bytes) |  size 1 (8 bytes) |  ...  |
    +-----------------------+--------------------------+------------------+---------------------+-------------------+-------+

    Table footer:
    +------------------------+----------------------+-----------------+
    | index offset (8 bytes) | index size (8 bytes) | magic (8 bytes) |
    +------------------------+----------------------+-----------------+

Block

A data block is a series of length-prefixed key/value pairs, preceded by
an entry count. Keys within a block, and across blocks, are sorted in
ascending lexicographic byte order.

    Block layout:
    +-----------------------+---------------------+------------+-----------------------+--------------+-------+
    | num entries (4 bytes) | key len 1 (4 bytes) | key 1 (..) | value len 1 (4 bytes) | value 1 (..) |  ...  |
    +-----------------------+---------------------+------------+-----------------------+--------------+-------+

Each index entry records the largest key contained in its block together
with the block's byte range within the file, so a point lookup reads the
footer and index once at open time and then at most a single data block
per lookup.
*/
package sstable
