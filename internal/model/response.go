package model

// Response is the captured result of one executed request.
type Response struct {
	Code        int                 `json:"code"`
	Content     any                 `json:"content"`
	ContentType string              `json:"contentType,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
}

// Event is one server-sent event.
type Event struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Media types recognised when decoding response bodies.
const (
	MediaTypeJSON        = "application/json"
	MediaTypeEventStream = "text/event-stream"
)
