// Package chat is the server side of real-time notification delivery.
//
// Registry maps an identity to its live transport, OfflineQueue buffers
// notifications for identities that are not connected, Dispatcher decides
// per notification whether to push or buffer, and Gateway admits WebSocket
// connections and flushes the buffered notifications on (re)connect.
//
// Both the registry and the offline queues live in process memory only.
// They are discarded on restart: a notification buffered for an offline
// identity is lost if the process exits before that identity reconnects.
// Callers that need durability must keep their own record (the message
// store) and treat notifications as a hint to refresh.
package chat
