// Package memory implements the conversation store: per-conversation message
// logs bounded to the most recent entries, plus a shared metadata index with
// one record per conversation.
//
// [Store] owns the semantics (truncation, title generation, metadata
// bookkeeping, search, export, import) and serializes read-modify-write cycles
// per conversation id. Persistence is delegated to a [Backend]; the bundled
// implementations live in the sibling packages
// [github.com/leofalp/chatgate/providers/memory/filestore],
// [github.com/leofalp/chatgate/providers/memory/redisstore] and
// [github.com/leofalp/chatgate/providers/memory/inmemory].
//
// Unknown conversation ids are not errors: they read as empty conversations and
// delete as no-ops. Backend failures surface as [ai.StoreError].
package memory
