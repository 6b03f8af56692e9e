package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/launchdarkly/eventsource"
	"pkt.systems/apivar/internal/model"
)

const defaultEventName = "message"

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	}
	return mt
}

func (e *Executor) decode(contentType string, body []byte, index int) any {
	switch contentType {
	case model.MediaTypeJSON:
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			e.logger.Warn("executor.decode.json", "index", index, "err", err)
			return nil
		}
		return v
	case model.MediaTypeEventStream:
		events, err := decodeEvents(bytes.NewReader(body))
		if err != nil {
			e.logger.Warn("executor.decode.sse", "index", index, "err", err)
		}
		return events
	default:
		return nil
	}
}

// decodeEvents reads a complete text/event-stream body.
func decodeEvents(r io.Reader) ([]model.Event, error) {
	dec := eventsource.NewDecoder(r)
	events := []model.Event{}
	for {
		ev, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, err
		}
		name := ev.Event()
		if name == "" {
			name = defaultEventName
		}
		events = append(events, model.Event{Event: name, Data: ev.Data()})
	}
}
