package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordHistory("60", "ok")
	r.RecordHistory("60", "ok")
	r.RecordHistory("1D", "no_data")
	r.RecordBarLoad("file", 10*time.Millisecond, nil)
	r.RecordBarLoad("file", time.Millisecond, errors.New("boom"))
	r.RecordCache("hit")
	r.RecordShapeOp("created")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.historyTotal.WithLabelValues("60", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.historyTotal.WithLabelValues("1D", "no_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.loadErrors.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.shapeOps.WithLabelValues("created")))
}
