package commit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSalt returns a fresh single-use salt. The nanosecond timestamp
// guarantees ordering across a participant's matches and the UUID supplies
// the entropy that makes the commitment pre-image unguessable.
func NewSalt() string {
	return fmt.Sprintf("clapo-%d-%s", time.Now().UnixNano(), uuid.NewString())
}
