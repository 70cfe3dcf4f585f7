/*
Package sstkeys extracts keys from LevelDB-format SSTable files by absolute
byte offset. Given a half-open range [start, end), it selects every data block
overlapping the range, decodes it and returns the keys of all entries which
begin within the range, rendered as a JSON array of strings.

Data Structure Documentation

Table

A table contains a series of data blocks followed by an optional filter block,
a metaindex block, an index block and a fixed-size footer.

    Table layout:
    +---------+---------+---------+-----------------+-------------+-----------------------+
    | block 1 |   ...   | block n | metaindex block | index block | footer (48 bytes)     |
    +---------+---------+---------+-----------------+-------------+-----------------------+

    Footer:
    +---------------------------+-----------------------+---------------+-------------------+
    | metaindex handle (varint) | index handle (varint) | zero padding  |  magic (8 bytes)  |
    +---------------------------+-----------------------+---------------+-------------------+
    |<----------------------- 40 bytes ------------------------------->|

A block handle is a pair of uvarints: the block offset and the block length,
excluding the trailer. The index block maps a separator key (>= the last key
of the block) to the handle of each data block.

Block

Every block, regardless of its role, is followed by a 5-byte trailer.

    Block layout:
    +---------+-------+---------+---------------------+-------+---------------------+------------------------------+-------------------+
    | entry 1 |  ...  | entry n | restart 1 (4 bytes) |  ...  | restart m (4 bytes) | number of restarts (4 bytes) | trailer (5 bytes) |
    +---------+-------+---------+---------------------+-------+---------------------+------------------------------+-------------------+

    Block trailer:
    +---------------------------+------------------------------+
    | compression type (1 byte) |  masked CRC-32C (4 bytes)    |
    +---------------------------+------------------------------+

The checksum covers the (compressed) block and the compression type byte.
Supported compression types are 0 (none), 1 (snappy) and 4 (LZ4, prefixed by
the uvarint decompressed length). Restart offsets are relative to the block
start; the first one is always 0.

Entry

Keys are prefix-compressed against the previous key in the block. Entries
starting at a restart point store their key in full.

    +------------------------+--------------------------+-----------------------+--------------------+----------------+
    | shared bytes (varint)  | unshared bytes (varint)  | value length (varint) | key delta (varlen) | value (varlen) |
    +------------------------+--------------------------+-----------------------+--------------------+----------------+

The absolute offset of an entry is its data block's offset plus the position
of the entry within the block. For compressed blocks, the position within the
decoded payload is scaled proportionally into the stored length of the block:

    offset = block offset + position * stored length / decoded length

Offsets therefore preserve storage order and always lie within the block's
extent in the file, so a scan over [0, file size) returns every key.

Stenographer Indexes

Stenographer packet-capture indexes are tables whose first entry holds an
8-byte version under key 0x00 (big-endian major and minor; major must be 2).
All other keys start with a type byte: 1 (protocol), 2 (port), 4 (IPv4) or
6 (IPv6), followed by the big-endian value. Values are lists of 4-byte packet
positions. See Reader.StenoVersion, Reader.StenoStats and StenoKeys.

Output

Keys are serialized as a JSON array of strings. With the default TextKeys
encoding, a key which is valid UTF-8 and does not start with "b64:" is emitted
verbatim; any other key is emitted as "b64:" followed by its standard base64
encoding. StenoKeys renders typed stenographer keys, such as "port:443".
DecodeKeys reverses the encoding.
*/
package sstkeys
