/*
Package frame implements the quadwire envelope codec.

A quadwire connection carries opaque payloads framed into word-aligned
envelopes. Each direction of a connection begins with a single marker byte
identifying the transport variant, followed by any number of envelopes:

  +------+------------+------------+--
  | 0xEF | envelope 0 | envelope 1 | ...
  +------+------------+------------+--

Envelope

Payload lengths are expressed in 4-byte words. A payload of N words with N
below 127 uses the short form:

  +--------+------------------+
  | 1 byte |    4*N bytes     |
  | N      |     payload      |
  +--------+------------------+

Larger payloads use the long form, the tag byte 0x7F followed by N as a
24-bit little-endian value:

  +------+--------------+------------------+
  | 0x7F | 3 bytes (LE) |    4*N bytes     |
  |      | N            |     payload      |
  +------+--------------+------------------+

Word counts that do not fit 24 bits wrap; that is a bound of the wire
format itself.

Payload shaping

The codec never interprets or pads payload bytes. Callers carrying
arbitrary (non word-aligned) data shape it with Payload, which prepends a
one-word prelude and zero-pads the tail back to word alignment:

  +-----+--------------+---------------+----------------+
  | tag | 3 bytes (LE) |     data      | 0..3 zero      |
  |     | data length  |               | pad bytes      |
  +-----+--------------+---------------+----------------+

  tag:
    0: clear, data is the caller's bytes unchanged
    1: snappy, data is a snappy block of the caller's bytes
*/
package frame
