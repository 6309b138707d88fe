package relay

import "encoding/json"

// Envelope is the wire framing for every relay message in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event names understood by the relay.
const (
	// EventEnterRoom subscribes the sending socket to a room; its data
	// is the room id as a JSON string.
	EventEnterRoom = "enterRoom"
	// EventSend carries a partial clock update from a client; its data
	// is a field map, optionally carrying roomId for late binding.
	EventSend = "send"
	// EventUpdate carries a field map to clients, either a relayed
	// delta or the reconciliation snapshot sent on join.
	EventUpdate = "update"
	// EventError reports a rejected message; the connection stays open.
	EventError = "error"
)

// ErrorPayload is the data of an EventError message.
type ErrorPayload struct {
	Message string `json:"message"`
}

func encodeEnvelope(event string, data []byte) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}

func encodeError(message string) []byte {
	data, _ := json.Marshal(ErrorPayload{Message: message})
	return data
}
