package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewCorrelationID mints the token that pairs an RPC request with its reply.
// Monotonic entropy keeps tokens unique for the lifetime of the process.
func NewCorrelationID() string {
	return CreateULID()
}

// PrivateQueueName builds a per-instance queue name such as
// "product_service.rpc.reply.01J...". Parts are lower-cased and joined by dots.
func PrivateQueueName(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, strings.ToLower(p))
		}
	}
	segments = append(segments, strings.ToLower(CreateULID()))
	return strings.Join(segments, ".")
}

// IsPrivateQueueName reports whether name already ends in a ULID segment,
// meaning it was produced by PrivateQueueName and must be used verbatim.
func IsPrivateQueueName(name string) bool {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(name[idx+1:]))
	return err == nil
}
