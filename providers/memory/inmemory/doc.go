// Package inmemory provides a concurrency-safe, map-backed [memory.Backend]
// that keeps conversation logs and the metadata index in process memory.
// It is designed for tests and single-process use where persistence across
// restarts is not required. The main entry point is [New].
package inmemory
