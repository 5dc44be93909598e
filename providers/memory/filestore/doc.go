// Package filestore implements [memory.Backend] on the local filesystem: one
// JSON document per conversation log and a single index.json holding every
// metadata record. Files are replaced atomically through a temporary file and
// a rename, and index read-modify-write cycles are serialized in process.
package filestore
