package node

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics is the optional Prometheus surface exposed by the supervisor
// when config.EnableMetrics is set: active session counts, pool
// busy/idle gauges, and RPC call latency, grounded on the corpus's own
// prometheus package slot.
type metrics struct {
	reg *prometheus.Registry

	sessionsActive  *prometheus.GaugeVec
	slavePoolBusy   prometheus.Gauge
	serverPoolBusy  prometheus.Gauge
	clientPoolBusy  prometheus.Gauge
	rpcCallDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rosnode",
			Name:      "tcpros_sessions_active",
			Help:      "Live TCPROS sessions by topic or service name.",
		}, []string{"name"}),
		slavePoolBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosnode",
			Name:      "slave_pool_busy_workers",
			Help:      "Busy Slave-RPC pool workers.",
		}),
		serverPoolBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosnode",
			Name:      "tcpros_server_pool_busy_workers",
			Help:      "Busy TCPROS-server pool workers.",
		}),
		clientPoolBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosnode",
			Name:      "tcpros_client_pool_busy_workers",
			Help:      "Busy TCPROS-client pool workers.",
		}),
		rpcCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rosnode",
			Name:      "master_rpc_call_duration_seconds",
			Help:      "Duration of outbound Master/Slave RPC calls.",
		}, []string{"method"}),
	}
	m.reg.MustRegister(m.sessionsActive, m.slavePoolBusy, m.serverPoolBusy, m.clientPoolBusy, m.rpcCallDuration)
	return m
}

// Gatherer exposes the metrics registry for an application-provided
// /metrics HTTP endpoint; the node runtime itself never starts an HTTP
// server for this, consistent with the command-line/transport glue
// being an external collaborator concern.
func (n *Node) Gatherer() prometheus.Gatherer {
	if n.metrics == nil {
		return nil
	}
	return n.metrics.reg
}

// recordRPC observes one outbound Master/Slave RPC call's duration,
// a no-op when metrics are disabled.
func (n *Node) recordRPC(method string, start time.Time) {
	if n.metrics == nil {
		return
	}
	n.metrics.rpcCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// sampleMetrics periodically snapshots pool occupancy and per-name
// session counts into the gauges, until ctx is cancelled. Pool/session
// counters aren't instrumented at every increment/decrement site since
// they already expose an O(1) Busy()/CountSessions() read — sampling
// avoids threading a metrics handle through pool and registry.
func (n *Node) sampleMetrics(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.metrics.slavePoolBusy.Set(float64(n.slavePool.Busy()))
			n.metrics.serverPoolBusy.Set(float64(n.serverPool.Busy()))
			n.metrics.clientPoolBusy.Set(float64(n.clientPool.Busy()))

			for _, name := range n.Registry.TopicNames() {
				n.metrics.sessionsActive.WithLabelValues(name).Set(float64(n.Registry.CountSessions(name)))
			}
			for _, name := range n.Registry.ServiceNames() {
				n.metrics.sessionsActive.WithLabelValues(name).Set(float64(n.Registry.CountSessions(name)))
			}
		}
	}
}
