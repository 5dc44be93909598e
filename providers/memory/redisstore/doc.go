// Package redisstore implements [memory.Backend] on Redis. Each conversation
// has a JSON log key and a JSON metadata key, and a set lists the known ids.
// Index writes for different conversations are independent commands and never
// overwrite each other. With a TTL both keys expire together and LoadIndex
// drops ids whose metadata is gone.
package redisstore
