package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of the cart and offline layers.
type Metrics struct {
	cartMutations       *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	notifySignals       *prometheus.CounterVec
	offlineResponses    *prometheus.CounterVec
	contextsActive      prometheus.Gauge
}

// New registers the collectors on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on registerer. Registering twice
// on the same registerer reuses the existing collectors.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nexcart_cart_mutations_total",
			Help: "Cart mutations applied, by operation",
		}, []string{"op"}),
		persistenceFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nexcart_persistence_failures_total",
			Help: "Cart persistence failures that were logged and swallowed",
		}, []string{"store", "op"}),
		notifySignals: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nexcart_notify_signals_total",
			Help: "Cart change signals, by source (local or remote)",
		}, []string{"source"}),
		offlineResponses: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "nexcart_offline_responses_total",
			Help: "Responses served by the offline cache worker, by request class and outcome",
		}, []string{"class", "outcome"}),
		contextsActive: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "nexcart_cart_contexts_active",
			Help: "Number of open cart contexts",
		}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

// CartMutation counts one applied cart operation.
func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

// PersistenceFailure counts a swallowed store failure.
func (m *Metrics) PersistenceFailure(store, op string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(store, op).Inc()
}

func (m *Metrics) NotifySignal(source string) {
	if m == nil {
		return
	}
	m.notifySignals.WithLabelValues(source).Inc()
}

func (m *Metrics) OfflineResponse(class, outcome string) {
	if m == nil {
		return
	}
	m.offlineResponses.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) ContextOpened() {
	if m == nil {
		return
	}
	m.contextsActive.Inc()
}

func (m *Metrics) ContextClosed() {
	if m == nil {
		return
	}
	m.contextsActive.Dec()
}
