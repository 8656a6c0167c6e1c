// Package notify defines the notification frames pushed to connected clients
// outside the request/response cycle, and their JSON wire codec.
//
// Every frame is a JSON object with a "type" discriminator; the kind-specific
// fields sit next to it:
//
//	{"type":"connection","status":"connected","username":"alice"}
//	{"type":"new_message","direction":"received","message":{...}}
//	{"type":"friend_request","from":"bob"}
//	{"type":"friend_request_response","from":"bob","status":"accepted"}
//	{"type":"ping"} / {"type":"pong"}
package notify
