package wire

// Envelope wraps a message with its room topic for transport through the
// broker pipeline, where the topic is not implicit in the partition key.
type Envelope struct {
	Room    string  `json:"room"`
	Message Message `json:"message"`
}
