package session

import (
	"github.com/cockroachdb/errors"
)

type State int

const (
	Disconnected State = iota
	Connecting
	ChainMismatch
	Switching
	Connected
	Error
)

var stateNames = map[State]string{
	Disconnected:  "disconnected",
	Connecting:    "connecting",
	ChainMismatch: "chain_mismatch",
	Switching:     "switching",
	Connected:     "connected",
	Error:         "error",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// connecting reports whether a connect cycle owns the session.
func (s State) connecting() bool {
	return s == Connecting || s == ChainMismatch || s == Switching
}

// ChainChangePolicy decides what a chainChanged event does to a connected
// session.
type ChainChangePolicy string

const (
	// PolicyRenegotiate re-runs the chain guard and keeps the session.
	PolicyRenegotiate ChainChangePolicy = "renegotiate"
	// PolicyReset drops the session; the user has to connect again.
	PolicyReset ChainChangePolicy = "reset"
)

func ParseChainChangePolicy(raw string) (ChainChangePolicy, error) {
	switch ChainChangePolicy(raw) {
	case "", PolicyRenegotiate:
		return PolicyRenegotiate, nil
	case PolicyReset:
		return PolicyReset, nil
	}
	return "", errors.Newf("unknown chain change policy %q", raw)
}
