// Package wsclient keeps one notification connection alive from the client
// side. Connection lifecycle is an explicit state machine (see state.go);
// retries follow a bounded exponential backoff and a clean close or logout
// never schedules a reconnect.
package wsclient
