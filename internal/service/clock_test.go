package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampClock_Next(t *testing.T) {
	now := time.UnixMilli(1000)
	clock := newStampClock(func() time.Time { return now })

	assert.Equal(t, int64(1000), clock.Next())
	assert.Equal(t, int64(1001), clock.Next(), "same millisecond is bumped")

	now = time.UnixMilli(900)
	assert.Equal(t, int64(1002), clock.Next(), "wall clock going back does not reorder")

	now = time.UnixMilli(5000)
	assert.Equal(t, int64(5000), clock.Next())
}
