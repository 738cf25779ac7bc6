package core

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// AgentID is a 128-bit opaque identifier for an Agent. It also deterministically
// names the agent's multiplexer session: SessionName() = "grove-" + hex(id).
type AgentID [16]byte

// NewAgentID generates a fresh random AgentID (a v4 UUID under the hood;
// the hex form drops the dashes so the session name stays one token).
func NewAgentID() AgentID {
	return AgentID(uuid.New())
}

// String renders the id as lowercase hex.
func (id AgentID) String() string {
	return hex.EncodeToString(id[:])
}

// SessionNamePrefix is the fixed prefix every flock-managed multiplexer
// session name carries, used both to name new sessions and to recognize
// orphaned ones.
const SessionNamePrefix = "grove-"

// SessionName returns the multiplexer session name for this agent.
func (id AgentID) SessionName() string {
	return SessionNamePrefix + id.String()
}

// ParseAgentID decodes a hex-encoded AgentID.
func ParseAgentID(s string) (AgentID, error) {
	var id AgentID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrValidation("INVALID_AGENT_ID", fmt.Sprintf("malformed agent id %q", s))
	}
	if len(b) != len(id) {
		return id, ErrValidation("INVALID_AGENT_ID", fmt.Sprintf("agent id %q has wrong length", s))
	}
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so AgentID can be used
// directly as a JSON object key / string value.
func (id AgentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AgentID) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
