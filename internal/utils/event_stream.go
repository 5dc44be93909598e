package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

// ErrEventTooLarge is returned by ReadEventStream when a single line grows
// beyond maxSSELineSize without a terminator.
var ErrEventTooLarge = errors.New("event stream line exceeds maximum size")

// readChunkSize is the size of each Read issued against the raw feed.
const readChunkSize = 32 * 1024

// EventStreamParser turns a raw incremental byte feed into event payloads
// without relying on a vendor client. Bytes are accumulated in a buffer and
// only text up to the last line terminator is treated as complete; the
// remainder waits for the next Feed. This makes the parser insensitive to how
// the network splits the feed: a line delivered across two reads is
// reassembled, never parsed half-way.
//
// Lines that do not start with the configured prefix (blank keep-alives,
// comments, "event:" fields) are ignored. A payload equal to the sentinel ends
// the stream; anything fed afterwards is discarded.
type EventStreamParser struct {
	prefix   string
	sentinel string
	buffer   []byte
	done     bool
}

// NewEventStreamParser creates a parser for lines of the form
// "<prefix><payload>", e.g. prefix "data:" and sentinel "[DONE]".
func NewEventStreamParser(prefix, sentinel string) *EventStreamParser {
	return &EventStreamParser{prefix: prefix, sentinel: sentinel}
}

// Feed appends chunk to the buffer and returns the payloads of every line that
// is now complete, in order. done reports whether the sentinel was reached.
func (parser *EventStreamParser) Feed(chunk []byte) (payloads []string, done bool) {
	if parser.done {
		return nil, true
	}

	parser.buffer = append(parser.buffer, chunk...)

	lastNewline := bytes.LastIndexByte(parser.buffer, '\n')
	if lastNewline < 0 {
		return nil, false
	}

	complete := string(parser.buffer[:lastNewline])
	parser.buffer = append(parser.buffer[:0], parser.buffer[lastNewline+1:]...)

	for _, line := range strings.Split(complete, "\n") {
		payload, ok := parser.parseLine(line)
		if !ok {
			continue
		}
		if payload == parser.sentinel {
			parser.done = true
			parser.buffer = nil
			return payloads, true
		}
		payloads = append(payloads, payload)
	}

	return payloads, false
}

// Flush returns the payload of a trailing line that arrived without a
// terminator before the feed closed. It reports false when nothing usable is
// buffered or the stream already ended.
func (parser *EventStreamParser) Flush() (string, bool) {
	if parser.done || len(parser.buffer) == 0 {
		return "", false
	}

	payload, ok := parser.parseLine(string(parser.buffer))
	parser.buffer = nil
	if !ok || payload == parser.sentinel {
		parser.done = parser.done || payload == parser.sentinel
		return "", false
	}
	return payload, true
}

// Buffered returns the number of bytes waiting for a line terminator.
func (parser *EventStreamParser) Buffered() int {
	return len(parser.buffer)
}

// Done reports whether the sentinel has been seen.
func (parser *EventStreamParser) Done() bool {
	return parser.done
}

func (parser *EventStreamParser) parseLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, parser.prefix) {
		return "", false
	}
	payload := strings.TrimSpace(line[len(parser.prefix):])
	if payload == "" {
		return "", false
	}
	return payload, true
}

// ReadEventStream drives parser from successive Read calls on reader and calls
// handle for each payload in arrival order. It returns nil when the sentinel
// is reached, the feed ends, or handle returns false; it returns the read
// error or ctx.Err() otherwise.
func ReadEventStream(ctx context.Context, reader io.Reader, parser *EventStreamParser, handle func(payload string) bool) error {
	chunk := make([]byte, readChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := reader.Read(chunk)
		if n > 0 {
			payloads, done := parser.Feed(chunk[:n])
			for _, payload := range payloads {
				if !handle(payload) {
					return nil
				}
			}
			if done {
				return nil
			}
			if parser.Buffered() > maxSSELineSize {
				return ErrEventTooLarge
			}
		}

		if errors.Is(readErr, io.EOF) {
			if payload, ok := parser.Flush(); ok {
				handle(payload)
			}
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
