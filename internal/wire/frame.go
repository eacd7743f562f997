package wire

// FrameAction is the verb of a client-to-server frame.
type FrameAction string

const (
	ActionSubscribe   FrameAction = "subscribe"
	ActionUnsubscribe FrameAction = "unsubscribe"
	ActionPublish     FrameAction = "publish"
)

// Frame is the envelope a client sends over the live channel. Subscribing
// binds the connection to a room topic; publishing asks the broker to
// broadcast Message on that topic. Server-to-client traffic is bare Message
// payloads, one JSON document per websocket frame.
type Frame struct {
	Action  FrameAction `json:"action"`
	Room    string      `json:"room"`
	Message *Message    `json:"message,omitempty"`
}
