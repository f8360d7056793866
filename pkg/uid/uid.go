package uid

import (
	"fmt"
	"os"
	"time"

	"github.com/sony/sonyflake"
)

var startTime = time.Date(2021, 6, 28, 00, 00, 00, 00, time.UTC)

// UID generates process-unique identifiers, used to correlate
// every log line of one migration batch.
type UID interface {
	NextID() (uint64, error)
}

type Sonyflake struct {
	generator *sonyflake.Sonyflake
}

var _ UID = (*Sonyflake)(nil)

// NewSonyflake returns a generator backed by sonyflake. Sonyflake derives
// its machine id from a private IPv4 address; hosts without one (some
// containers) get a pid-derived machine id instead, so construction only
// fails when both derivations fail.
func NewSonyflake() (*Sonyflake, error) {
	gen, err := newSonyflake(sonyflake.Settings{
		StartTime: startTime,
	})
	if err != nil {
		gen, err = newSonyflake(sonyflake.Settings{
			StartTime: startTime,
			MachineID: func() (uint16, error) {
				return uint16(os.Getpid()), nil
			},
		})
	}

	return gen, err
}

// newSonyflake guards the library's nil return: sonyflake.NewSonyflake
// returns nil instead of an error when it cannot derive a machine id, and
// NextID on a nil generator panics.
func newSonyflake(settings sonyflake.Settings) (*Sonyflake, error) {
	generator := sonyflake.NewSonyflake(settings)
	if generator == nil {
		return nil, fmt.Errorf("uid generator is nil, cannot derive machine id")
	}

	return &Sonyflake{generator: generator}, nil
}

func (s *Sonyflake) NextID() (uint64, error) {
	return s.generator.NextID()
}
