// Package http implements the client half of HTTP/1.1 message
// exchange over a raw byte stream: request serialization and a
// streaming response parser with content-length framing.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
