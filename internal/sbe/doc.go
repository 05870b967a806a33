// Package sbe owns the generic message codec for block + repeating group
// market-data templates.
//
// Ownership boundary:
// - block padding to a declared length
// - repeating group decode/encode, fixed and self-describing
// - schema composition of a block and its groups
// - template id dispatch
//
// Decoding is single pass and left to right. Every value handed back is
// copied out of the input buffer, so callers may reuse the buffer once a
// decode returns.
package sbe
