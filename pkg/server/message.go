package server

// Reply answers the statement with the same ID. Exactly one of Ack,
// Output and Error is set.
type Reply struct {
	StatementID int     `json:"id"`
	Ack         *string `json:"ack,omitempty"`
	Output      *string `json:"output,omitempty"`
	Error       *string `json:"error,omitempty"`
}
