// Package field owns the primitive fixed-width wire codecs that message
// schemas are composed from.
//
// All integers are little-endian, as on an SBE feed.
package field
