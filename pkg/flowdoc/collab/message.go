package collab

import (
	"encoding/json"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/event"
)

// Wire methods sent by Invoke.
const (
	MethodNewPage      = "new_page"
	MethodPageRemoved  = "page_removed"
	MethodPageUpdated  = "page_updated"
	MethodNewShape     = "new_shape"
	MethodShapeUpdated = "shape_updated"
	MethodShapeRemoved = "shape_removed"
)

// Local topics delivered to subscribers.
const (
	TopicPageAdded    = "page_added"
	TopicPageRemoved  = "page_removed"
	TopicPageUpdated  = "page_updated"
	TopicShapeAdded   = "shape_added"
	TopicShapeUpdated = "shape_updated"
	TopicShapeRemoved = "shape_removed"
)

// Control topics exchanged with the hub.
const (
	topicAck          = "ack"
	topicSessionEnded = "session_invalid"
)

// CodeSessionInvalid is the response code telling a client its session
// is gone.
const CodeSessionInvalid = fderrors.CodeSessionInvalid

var topics = map[string]string{
	MethodNewPage:      TopicPageAdded,
	MethodPageRemoved:  TopicPageRemoved,
	MethodNewShape:     TopicShapeAdded,
	MethodShapeUpdated: TopicShapeUpdated,
	MethodShapeRemoved: TopicShapeRemoved,
	MethodPageUpdated:  TopicPageUpdated,
}

var topicEvents = map[string]string{
	TopicPageAdded:    event.TypePageAdded,
	TopicPageRemoved:  event.TypePageRemoved,
	TopicPageUpdated:  event.TypePageUpdated,
	TopicShapeAdded:   event.TypeShapeAdded,
	TopicShapeUpdated: event.TypeShapeUpdated,
	TopicShapeRemoved: event.TypeShapeRemoved,
}

// LocalTopic maps a wire method to the topic local subscribers see.
// Unmapped methods are only sent to the server.
func LocalTopic(method string) (string, bool) {
	t, ok := topics[method]
	return t, ok
}

// Message is one collaboration message. Session is the collaboration
// session (the shared document), From the client session that sent it.
type Message struct {
	Topic    string          `json:"topic"`
	Session  string          `json:"session"`
	From     string          `json:"from"`
	Page     string          `json:"page,omitempty"`
	Shape    string          `json:"shape,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Sequence int64           `json:"sequence,omitempty"`
	// ID asks the hub for an ack carrying the assigned sequence.
	ID   string `json:"id,omitempty"`
	Code int    `json:"code,omitempty"`
}

// Response is the envelope of every hub HTTP reply.
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Posted is the data of a post_topic reply.
type Posted struct {
	Sequence int64 `json:"sequence"`
}

// Reply is handed to an Invoke callback exactly once.
type Reply struct {
	Sequence int64
	Err      error
}
