package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulateByLabel(t *testing.T) {
	hits := CacheLookups.WithLabelValues(LayerMemory, ResultHit)
	before := testutil.ToFloat64(hits)

	hits.Inc()
	hits.Inc()

	assert.Equal(t, before+2, testutil.ToFloat64(hits))
}

func TestCollectorsAreRegistered(t *testing.T) {
	LeadSubmissions.WithLabelValues("success").Inc()
	assert.GreaterOrEqual(t, testutil.CollectAndCount(LeadSubmissions, "sitefront_lead_submissions_total"), 1)
}
