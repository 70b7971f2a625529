package metrics

import (
	"net/http"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Recorder exports relay activity as Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	connections   prometheus.Gauge
	rooms         prometheus.Gauge
	updates       prometheus.Counter
	rejected      *prometheus.CounterVec
	reapedMembers prometheus.Counter
	authFailures  prometheus.Counter
}

func NewRecorder(nodeID string) *Recorder {
	labels := prometheus.Labels{"node_id": nodeID}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "connections",
			Help:        "number of live client connections",
			ConstLabels: labels,
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "rooms",
			Help:        "number of rooms with at least one local member",
			ConstLabels: labels,
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "updates_relayed_total",
			Help:        "design updates stamped and fanned out",
			ConstLabels: labels,
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "updates_rejected_total",
			Help:        "design updates refused, by error code",
			ConstLabels: labels,
		}, []string{"code"}),
		reapedMembers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "members_reaped_total",
			Help:        "members removed after a failed delivery",
			ConstLabels: labels,
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "auth_failures_total",
			Help:        "handshakes rejected by the authenticator",
			ConstLabels: labels,
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.connections,
		r.rooms,
		r.updates,
		r.rejected,
		r.reapedMembers,
		r.authFailures,
	)

	return r
}

var _ domain.Recorder = (*Recorder)(nil)

func (r *Recorder) ConnectionOpened() { r.connections.Inc() }
func (r *Recorder) ConnectionClosed() { r.connections.Dec() }
func (r *Recorder) RoomCreated()      { r.rooms.Inc() }
func (r *Recorder) RoomDeleted()      { r.rooms.Dec() }
func (r *Recorder) UpdateRelayed()    { r.updates.Inc() }
func (r *Recorder) MemberReaped()     { r.reapedMembers.Inc() }
func (r *Recorder) AuthFailed()       { r.authFailures.Inc() }

func (r *Recorder) UpdateRejected(code domain.Code) {
	r.rejected.WithLabelValues(string(code)).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
