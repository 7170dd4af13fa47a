package model

import "encoding/json"

// ReleaseEvent carries a validated release/published webhook payload to
// downstream listeners. Payload is the raw event body as received.
type ReleaseEvent struct {
	AppSlug string
	Action  string
	Payload json.RawMessage
}
