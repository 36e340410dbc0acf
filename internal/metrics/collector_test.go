package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	c.Record(OpCompletion, 100*time.Millisecond, 40, nil)
	c.Record(OpCompletion, 300*time.Millisecond, 10, errors.New("boom"))
	c.RecordTiming(OpQueueWait, 5*time.Millisecond)

	snap := c.Snapshot()
	comp := snap.Operations[OpCompletion]
	require.NotNil(t, comp)
	assert.Equal(t, int64(2), comp.Count)
	assert.Equal(t, int64(1), comp.Failures)
	assert.Equal(t, int64(100), comp.MinTimeMs)
	assert.Equal(t, int64(300), comp.MaxTimeMs)
	assert.Equal(t, 200.0, comp.AvgTimeMs)
	assert.Equal(t, int64(50), comp.OutputChars)

	assert.NotNil(t, snap.Operations[OpQueueWait])
	assert.Nil(t, snap.Operations[OpStream])
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.Record(OpCompletion, time.Second, 1, nil)
	assert.Empty(t, c.Snapshot().Operations)
}
