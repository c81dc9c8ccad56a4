package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/mqtt"
)

func TestRecordMessage(t *testing.T) {
	m := New()
	m.RecordMessage(model.DecodedMessage{PacketType: "POSITION", Channel: "LongFast"})
	m.RecordMessage(model.DecodedMessage{PacketType: "POSITION", Channel: "LongFast"})
	m.RecordMessage(model.DecodedMessage{PacketType: model.PacketTypeEncrypted, Channel: "Private"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("POSITION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues(model.PacketTypeEncrypted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decryptFailures.WithLabelValues("Private")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.decryptFailures.WithLabelValues("LongFast")))
}

func TestRecordState(t *testing.T) {
	m := New()
	m.RecordState(mqtt.Status{State: mqtt.Connecting})
	m.RecordState(mqtt.Status{State: mqtt.Reconnecting, Attempt: 1})
	m.RecordState(mqtt.Status{State: mqtt.Reconnecting, Attempt: 2})
	m.RecordState(mqtt.Status{State: mqtt.Connected})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionState))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconnectAttempts))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.RecordSinkError("kafka")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `meshmon_sink_errors_total{sink="kafka"} 1`)
	assert.Contains(t, string(body), "meshmon_mqtt_connection_state 0")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordSinkError("stdout")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.sinkErrors.WithLabelValues("stdout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.sinkErrors.WithLabelValues("stdout")))
}
