/*
package client implements the quadwire client API.

possible returned errors once the client accepted the call

  Call
  * nil
  * ErrClosed
  * ErrPayloadTooLarge
  * ErrBusy
  * ErrNoConnection
  * ErrResponseTimeout
  * ErrInternal

  Ping
  * nil
  * ErrClosed
  * ErrBusy
  * ErrNoConnection
  * ErrResponseTimeout

connect and write failures surface as IO errors instead of the sentinels
above; IRetryable separates those and the transient server conditions
from permanent call errors.
*/
package client

import (
	"time"
)

type IClient interface {
	// Call sends payload and returns the peer's answer for it. Answers
	// pair with calls in submission order. A peer answering with a bare
	// envelope yields an empty value.
	Call(payload []byte) ([]byte, error)

	// CallWithTimeout bounds the whole call, queueing and connect time
	// included. A zero timeout leaves only the response timeout in force.
	CallWithTimeout(payload []byte, timeout time.Duration) ([]byte, error)

	// Ping exchanges a bare keepalive envelope with the peer.
	Ping() error

	Close()
}

// IRetryable marks errors worth retrying on a fresh call.
type IRetryable interface {
	Retryable() bool
}
