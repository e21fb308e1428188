// Package serialization owns the object-graph codec framework.
//
// Ownership boundary:
// - codec registry (concrete type <-> codec <-> stream name)
// - write/read sessions, identity tables, stream header
// - scope lookup bridge for services that are re-resolved on decode
//
// Stream layout:
// - 8 byte header (magic, version, flags)
// - values: tag, then back-reference id or interned type + codec payload
// - end marker
//
// Sessions are linear: created -> open -> closed, any error -> failed.
// I/O only happens at buffer fill/flush boundaries; codecs see synchronous
// primitives.
package serialization
