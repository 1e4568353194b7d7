package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 桥接业务指标
type AppMetrics struct {
	CommandsSent     *prometheus.CounterVec // labels: command
	PresetRecalls    *prometheus.CounterVec // labels: preset, source=mqtt|http
	HeightPolls      *prometheus.CounterVec // labels: result=height|none|error
	PacketsDecoded   *prometheus.CounterVec // labels: kind
	TransportErrors  *prometheus.CounterVec // labels: op=read|write
	BytesRead        prometheus.Counter
	CurrentHeight    prometheus.Gauge
	MQTTPublishTotal *prometheus.CounterVec // labels: result=ok|error
	MQTTInboundTotal *prometheus.CounterVec // labels: handled=true|false
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_commands_sent_total",
			Help: "Command frames written to the desk controller.",
		}, []string{"command"}),
		PresetRecalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_preset_recalls_total",
			Help: "Completed preset recall sequences.",
		}, []string{"preset", "source"}),
		HeightPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_height_polls_total",
			Help: "Height polls by result.",
		}, []string{"result"}),
		PacketsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_packets_decoded_total",
			Help: "Status spans decoded by packet kind.",
		}, []string{"kind"}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_transport_errors_total",
			Help: "Serial transport failures.",
		}, []string{"op"}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "desk_serial_bytes_read_total",
			Help: "Total bytes read from the desk controller.",
		}),
		CurrentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "desk_current_height",
			Help: "Last resolved desk height as shown on the handset display.",
		}),
		MQTTPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_publish_total",
			Help: "MQTT publishes by result.",
		}, []string{"result"}),
		MQTTInboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_inbound_total",
			Help: "Inbound MQTT messages, handled or ignored.",
		}, []string{"handled"}),
	}
	reg.MustRegister(
		m.CommandsSent, m.PresetRecalls, m.HeightPolls, m.PacketsDecoded, m.TransportErrors,
		m.BytesRead, m.CurrentHeight, m.MQTTPublishTotal, m.MQTTInboundTotal,
	)
	return m
}

// NewNopMetrics 返回注册到独立 registry 的指标，供测试与禁用场景使用
func NewNopMetrics() *AppMetrics {
	return NewAppMetrics(prometheus.NewRegistry())
}
