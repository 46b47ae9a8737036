package workload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arloliu/regionlb/types"
)

func TestTracker(t *testing.T) {
	tr := NewTracker()
	east := types.NewEndpoint("10.0.0.1", "9042", "east")
	west := types.NewEndpoint("10.0.1.1", "9042", "west")

	read := types.NewStatement("SELECT * FROM t")
	write := types.NewStatement("INSERT INTO t (id) VALUES (1)")

	tr.TrackAttempt()
	tr.TrackResult(read, east, nil)
	tr.TrackAttempt()
	tr.TrackAttempt()
	tr.TrackResult(read, west, nil)
	tr.TrackAttempt()
	tr.TrackResult(write, types.Endpoint{}, errors.New("boom"))

	stats := tr.Snapshot()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(4), stats.Attempts)
	assert.InDelta(t, 1.0/3.0, stats.FailureRatio(), 0.0001)
	assert.InDelta(t, 0.5, stats.ServedShare("read", "east"), 0.0001)
	assert.Zero(t, stats.ServedShare("write", "east"))
	assert.Equal(t, "requests=3 failures=1 attempts=4 read@east=1 read@west=1", stats.String())

	// Snapshots are copies
	stats.Served["read"]["east"] = 100
	assert.Equal(t, int64(1), tr.Snapshot().Served["read"]["east"])

	tr.Reset()
	stats = tr.Snapshot()
	assert.Zero(t, stats.Requests)
	assert.Zero(t, stats.FailureRatio())
	assert.Empty(t, stats.Served)
}
