// Package storage persists rendered images.
//
// Key types:
//   - ObjectStore: the backend interface (Put, Get, Stat, Delete, List)
//   - MemoryStore: in-process backend for tests and ephemeral servers
//   - FileStore: directory backend with a JSON metadata sidecar per object
//
// Keys are slash-separated relative paths. NewKey produces date-partitioned
// keys with a time-ordered UUID so listings come back in creation order.
package storage
