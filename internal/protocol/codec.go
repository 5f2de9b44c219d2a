package protocol

import (
	"errors"
	"strings"
)

// ErrNonASCII is returned when a client sends bytes outside the ASCII range.
// The protocol is ASCII-only, so this is fatal for the connection.
var ErrNonASCII = errors.New("non-ascii input")

// Buffer accumulates inbound bytes for a single connection and yields
// complete newline-delimited messages. Partial lines stay buffered until
// the rest arrives.
type Buffer struct {
	data []byte
}

// Append adds received bytes to the buffer
func (b *Buffer) Append(p []byte) error {
	for _, c := range p {
		if c > 127 {
			return ErrNonASCII
		}
	}
	b.data = append(b.data, p...)
	return nil
}

// Next pops the oldest complete message, stripped of surrounding whitespace
// (including any \r). ok is false when no full line is buffered. A blank
// line is yielded as the empty string and rejected upstream.
func (b *Buffer) Next() (string, bool) {
	i := -1
	for j, c := range b.data {
		if c == '\n' {
			i = j
			break
		}
	}
	if i < 0 {
		return "", false
	}
	msg := strings.TrimSpace(string(b.data[:i]))
	b.data = b.data[i+1:]
	return msg, true
}

// Len reports the number of buffered bytes awaiting a newline
func (b *Buffer) Len() int {
	return len(b.data)
}
