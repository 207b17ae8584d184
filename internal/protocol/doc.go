// Package protocol defines the freight control-plane wire format.
//
// Workers report status to the daemon as newline-terminated UTF-8 lines.
// The first whitespace-separated token names the message kind (HELLO,
// START, PROGRESS, STOP); the rest are key=value pairs in any order.
// The protocol is unidirectional: workers write, the daemon only reads.
package protocol
