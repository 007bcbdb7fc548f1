// Package apitypes defines the wire-level record shapes shared by every
// runtime component: identifiers, Definition/Image/Container/Session/Message
// records, content parts, events, and the client configuration surface.
package apitypes

import (
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Prefix is the type tag prepended to every opaque identifier so that IDs are
// self-describing across logs, wire payloads, and repository keys.
type Prefix string

const (
	PrefixDefinition Prefix = "def"
	PrefixImage      Prefix = "img"
	PrefixContainer  Prefix = "ctr"
	PrefixSession    Prefix = "sess"
	PrefixAgent      Prefix = "agent"
	PrefixMessage    Prefix = "msg"
	PrefixTurn       Prefix = "turn"
	PrefixAck        Prefix = "ack"
)

// NewID generates a new opaque identifier with the given prefix, e.g.
// "sess_01HZY3K2N4XJ6Q7R8S9T0UVWXY". IDs are lexicographically sortable by
// creation time because they embed a ULID.
func NewID(p Prefix) string {
	return fmt.Sprintf("%s_%s", p, ulid.MustNew(ulid.Now(), rand.Reader).String())
}
