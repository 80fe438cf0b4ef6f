package bridge

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// parseStream consumes an append-only text/event-stream buffer. It is a pure
// function of (prior remainder, new bytes): complete blocks are decoded into
// events and everything after the last block terminator, including any
// partial trailing line, is handed back as the new remainder. The decoded
// event sequence is identical regardless of how the byte stream is chunked.
//
// Framing: blocks separated by a blank line; "event:" names the type
// (default tool_result), one or more "data:" lines join with newlines into
// the payload, "id:" optionally carries the request identifier. A block
// whose payload fails to decode is logged and dropped without aborting the
// rest of the stream.
func parseStream(remainder string, chunk []byte) ([]domain.StreamEvent, string) {
	buf := remainder + string(chunk)

	var events []domain.StreamEvent
	var block []string
	consumed := 0 // offset just past the last completed block

	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		line := strings.TrimSuffix(buf[start:i], "\r")
		start = i + 1

		if line != "" {
			block = append(block, line)
			continue
		}

		// Blank line: block complete.
		if len(block) > 0 {
			if ev, ok := parseBlock(block); ok {
				events = append(events, ev)
			}
			block = block[:0]
		}
		consumed = start
	}

	return events, buf[consumed:]
}

// parseBlock decodes one completed frame. Returns false for empty or
// undecodable blocks.
func parseBlock(lines []string) (domain.StreamEvent, bool) {
	var eventType, id string
	var dataLines []string

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		default:
			// Comment or unknown field; ignored per SSE framing.
		}
	}

	data := strings.Join(dataLines, "\n")
	if data == "" {
		return domain.StreamEvent{}, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		slog.Warn("stream: dropping undecodable block", "err", err, "event", eventType, "size", len(data))
		return domain.StreamEvent{}, false
	}

	ev := domain.StreamEvent{
		Type:      domain.StreamToolResult,
		RequestID: id,
		Data:      json.RawMessage(data),
		Timestamp: time.Now(),
	}
	if eventType != "" {
		ev.Type = domain.StreamEventType(eventType)
	}
	return ev, true
}
