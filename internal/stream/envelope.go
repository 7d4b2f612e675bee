package stream

// Kind tags which subscription a message came from.
type Kind int

const (
	// KindLog is a log notification from the program-mentions subscription.
	KindLog Kind = iota
	// KindAccount is an account-data notification for a tracked curve account.
	KindAccount
)

// Envelope is one raw notification handed from an ingestion worker to the
// detector queue. Raw holds the notification's `result` object untouched;
// parsing happens downstream so a slow parse never blocks the socket read
// loop.
type Envelope struct {
	Endpoint string
	Kind     Kind
	// Account is the tracked address an account notification belongs to,
	// resolved through the worker's subscription table. Empty for logs.
	Account string
	Raw     []byte
}
