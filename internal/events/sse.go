package events

import (
	"fmt"
	"io"
)

// KeepAlive is the SSE comment frame sent when no event arrives within the
// ping interval. Proxies treat it as traffic; clients ignore it.
const KeepAlive = ":\n\n"

// RetryPrelude returns the stream prelude advertising the client reconnect
// delay in milliseconds.
func RetryPrelude(ms int) []byte {
	return []byte(fmt.Sprintf("retry: %d\n\n", ms))
}

// WriteFrame writes one SSE event frame for the envelope:
//
//	id: <N>
//	event: <type>
//	data: <compact JSON envelope>
//	<blank line>
func WriteFrame(w io.Writer, e Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)
	return err
}
