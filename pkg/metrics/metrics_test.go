package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.ObserveRequest("gladly", "GET", 200)
	m.ObserveRequest("gladly", "GET", 200)
	m.ObserveRequest("shopify", "PUT", 0)
	m.ObserveMutation("add_question", nil)
	m.ObserveMutation("add_question", errors.New("boom"))
	m.ObserveRecords("export", "written", 3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("gladly", "GET", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("shopify", "PUT", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("add_question", "error")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues("export", "written")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveRequest("gladly", "GET", 500)
		m.ObserveMutation("remove_question", nil)
		m.ObserveRecords("sync", "added", 1)
	})
}
