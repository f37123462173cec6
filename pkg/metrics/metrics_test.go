package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	active, removed int
	backlog         map[string]int
}

func (f fakeSource) ActiveWriters() int                 { return f.active }
func (f fakeSource) RemovedWriters() int                { return f.removed }
func (f fakeSource) ReplicationBacklog() map[string]int { return f.backlog }

func TestCollectorSamplesSourceIntoGauges(t *testing.T) {
	src := fakeSource{active: 3, removed: 1, backlog: map[string]int{"core-a": 5}}
	c := NewCollector(src)
	c.collect()

	assert.Equal(t, float64(3), testutil.ToFloat64(WritersTotal.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(WritersTotal.WithLabelValues("removed")))
	assert.Equal(t, float64(5), testutil.ToFloat64(ReplicationBacklog.WithLabelValues("core-a")))
}

func TestTimerObservesDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 5*time.Millisecond)
}
