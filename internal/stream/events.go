package stream

// Event types emitted over one chat turn. Within a turn, text events
// for a sentence always precede its audio event, and events across
// sentences preserve generation order.
const (
	EventText  = "text"
	EventAudio = "audio"
	EventError = "error"
	EventEnd   = "end"
)

// Event is one frame of the chat response stream, serialized as a
// single JSON object per frame.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`

	// End-of-stream summary, only set on EventEnd
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Cached         bool    `json:"cached,omitempty"`
	CharCount      int     `json:"char_count,omitempty"`
	AudioChunks    int     `json:"audio_chunks,omitempty"`
	FirstTokenMs   int64   `json:"first_token_ms,omitempty"`
}

// Text builds a text event carrying one model chunk
func Text(chunk string) Event {
	return Event{Type: EventText, Content: chunk}
}

// Audio builds an audio event carrying base64-encoded audio bytes
func Audio(b64 string) Event {
	return Event{Type: EventAudio, Content: b64}
}

// Error builds the single terminal error event for a failed turn
func Error(message string) Event {
	return Event{Type: EventError, Content: message}
}
