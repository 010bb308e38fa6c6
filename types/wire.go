package types

/*

	Wire contract between the sensing side and the controlling side.
	Two commands only, half-duplex, one request in flight at a time.
	Replies carry the request's sequence number so a late reply to a
	timed-out request can be told apart from the next reply.

*/

const (
	CmdTriggerRead = "TRIGGER_READ" // one scan, reply carries the energy value
	CmdStop        = "STOP"         // release the device, reply acknowledges

	AckStopped = "stopped"
)

// Request is the controller-to-sensor message.
type Request struct {
	Seq uint64 `json:"seq"`
	Cmd string `json:"cmd"`
}

// Reply is the sensor-to-controller message.
// Exactly one of Value, Ack, or Error is meaningful,
// keyed by the command that was sent.
type Reply struct {
	Seq   uint64  `json:"seq"`
	Value float64 `json:"value,omitempty"`
	Ack   string  `json:"ack,omitempty"`
	Error string  `json:"error,omitempty"`
}
