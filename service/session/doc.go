// Package session resolves the credential a client presents on the
// WebSocket handshake to the identity it was issued for. Credentials are
// issued elsewhere (login); this package only reads them.
package session
