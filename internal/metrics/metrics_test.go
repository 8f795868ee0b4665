package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = New(reg)
	require.Error(t, err)
	assert.True(t, ErrAlreadyRegistered(err))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusTimeout, Status(fmt.Errorf("wrapped: %w", &errspkg.RPCTimeoutError{Timeout: time.Second})))
	assert.Equal(t, StatusTransport, Status(errspkg.NewTransportError("publish", "X", errors.New("down"))))
	assert.Equal(t, StatusError, Status(errors.New("other")))
}

func TestRPCMetrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.IncRPCInFlight()
	m.IncRPCInFlight()
	m.DecRPCInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rpcInFlight))

	m.RecordRPCCall("INVENTORY_SERVICE", "GET_PRODUCT_IDS_BY_VARIANT_OPTIONS", nil, 0.01)
	m.RecordRPCCall("INVENTORY_SERVICE", "GET_PRODUCT_IDS_BY_VARIANT_OPTIONS", &errspkg.RPCTimeoutError{}, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rpcCalls.WithLabelValues("INVENTORY_SERVICE", "GET_PRODUCT_IDS_BY_VARIANT_OPTIONS", StatusTimeout)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.rpcCalls))

	m.IncLateReplies()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lateReplies))
}

func TestDispatcherAndBrokerMetrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordEvent("CREATE_REVIEW", true, nil)
	m.RecordEvent("SOMETHING_NEW", false, nil)
	m.RecordEvent("DELETE_PRODUCT", true, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDispatched.WithLabelValues("SOMETHING_NEW", StatusIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDispatched.WithLabelValues("DELETE_PRODUCT", StatusError)))

	m.RecordRPCServed("GET_PRODUCT_BY_ID", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rpcServed.WithLabelValues("GET_PRODUCT_BY_ID", StatusSuccess)))

	m.RecordPublish("PRODUCT_SERVICE", nil)
	m.SetConnectionUp(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionUp))
	m.SetConnectionUp(false)
	m.IncConnectionLost()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionUp))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionLost))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRPCInFlight()
		m.DecRPCInFlight()
		m.RecordRPCCall("X", "Y", nil, 1)
		m.IncLateReplies()
		m.RecordEvent("X", true, nil)
		m.RecordRPCServed("X", nil)
		m.RecordPublish("X", nil)
		m.SetConnectionUp(true)
		m.IncConnectionLost()
	})
}
