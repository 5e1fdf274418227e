// Package idx mints ULIDs for principal and request identifiers.
package idx

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

// Generator mints monotonic ULIDs and is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewGenerator builds a Generator over entropy and clock. Nil arguments fall
// back to crypto/rand and time.Now.
func NewGenerator(entropy io.Reader, now func() time.Time) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: ulid.Monotonic(entropy, 0), now: now}
}

// New returns the next ID. IDs minted within the same millisecond sort in
// mint order.
func (g *Generator) New() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(g.now().UTC()), g.entropy).String())
}

var process = sync.OnceValue(func() *Generator { return NewGenerator(nil, nil) })

// New mints an ID from the process-wide generator.
func New() ID { return process().New() }

// Parse validates s as a canonical ULID.
func Parse(s string) (ID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", ErrInvalid
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Time reports when id was minted, or the zero time if id is not a ULID.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
