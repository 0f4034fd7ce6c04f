// Package cache implements the durable disk tier: one directory per cache name
// under a root-kind directory, one file per encoded key. Writes go through a
// dot-prefixed temp file plus rename so readers never observe half-written
// payloads, and per-path locks keep write/read/delete of one entry serialized.
// The Root type covers root-kind wide operations (name enumeration, orphan
// removal, aggregate size). Filesystem access goes through go-billy so tests
// can swap in an in-memory filesystem.
package cache
