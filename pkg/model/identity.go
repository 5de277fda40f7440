package model

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// NewID generates a new unique, time-ordered identifier
func NewID() string {
	id, err := ksuid.NewRandom()
	if err != nil {
		panic(fmt.Sprintf("cannot generate random ksuid: %v", err))
	}
	return id.String()
}

// NewIDWithTime generates a new unique identifier ordered at some point in time
func NewIDWithTime(ts time.Time) string {
	id, err := ksuid.NewRandomWithTime(ts)
	if err != nil {
		panic(fmt.Sprintf("cannot generate random ksuid: %v", err))
	}
	return id.String()
}

// IsValidID checks the format of an identifier
func IsValidID(id string) bool {
	_, err := ksuid.Parse(id)
	return err == nil
}

// Timestamp returns a UTC timestamp truncated to the microsecond, so it survives storage round trips
func Timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
