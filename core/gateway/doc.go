// Package gateway dispatches chat requests to named provider adapters and
// keeps the conversation store in step with what was actually generated.
//
// The entry point is [New], which takes a [memory.Store] and functional
// options registering providers ([WithProvider]), caller-side policies
// ([WithMiddleware]) and an observer ([WithObserver]). A [Gateway] offers three
// generation modes:
//
//   - [Gateway.Respond]: one synchronous generation. The user and assistant
//     turns are persisted only after the provider succeeded.
//   - [Gateway.RespondStream]: the same, delivered as a sequence of
//     [StreamFrame] values. Persistence happens after the terminal done frame.
//   - [Gateway.Compare]: the same prompt sent to several providers
//     concurrently. Every provider's outcome is reported on its own.
//
// Conversation CRUD operations pass straight through to the store.
package gateway
