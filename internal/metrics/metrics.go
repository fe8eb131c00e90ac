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

// AppMetrics 自定义业务指标
type AppMetrics struct {
	SerialBytesRx     prometheus.Counter
	SerialBytesTx     prometheus.Counter
	FramesParsedTotal *prometheus.CounterVec // labels: result=ok|checksum|malformed
	FramesRoutedTotal *prometheus.CounterVec // labels: cmd
	CommandsSentTotal *prometheus.CounterVec // labels: cmd
	CommandTimeouts   prometheus.Counter
	AckLatency        prometheus.Histogram
	PlayingGauge      prometheus.Gauge // 1=播放中 0=空闲
	QueueDepth        prometheus.Gauge // 接收帧队列深度
	TracksFinished    prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		SerialBytesRx: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_received_total",
			Help: "Total bytes received over the serial link.",
		}),
		SerialBytesTx: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_sent_total",
			Help: "Total bytes written to the serial link.",
		}),
		FramesParsedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfp_frames_parsed_total",
			Help: "DFPlayer frame decode attempts.",
		}, []string{"result"}),
		FramesRoutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfp_frames_routed_total",
			Help: "Routed inbound frames by command.",
		}, []string{"cmd"}),
		CommandsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfp_commands_sent_total",
			Help: "Outbound commands by name.",
		}, []string{"cmd"}),
		CommandTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dfp_command_timeout_total",
			Help: "Commands that were not acknowledged in time.",
		}),
		AckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dfp_ack_latency_seconds",
			Help:    "Latency between command write and ACK.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 3},
		}),
		PlayingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dfp_playing",
			Help: "Whether a track is currently playing.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dfp_rx_queue_depth",
			Help: "Frames waiting in the inbound queue.",
		}),
		TracksFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dfp_tracks_finished_total",
			Help: "Track-finished notifications received.",
		}),
	}
	reg.MustRegister(
		m.SerialBytesRx, m.SerialBytesTx, m.FramesParsedTotal, m.FramesRoutedTotal,
		m.CommandsSentTotal, m.CommandTimeouts, m.AckLatency, m.PlayingGauge,
		m.QueueDepth, m.TracksFinished,
	)
	return m
}
