package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eleven2mqtt"

// Metrics groups the bridge collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pollTicks       *prometheus.CounterVec
	devicePolls     *prometheus.CounterVec
	stateWrites     prometheus.Counter
	commandAttempts prometheus.Counter
	commandOutcomes *prometheus.CounterVec
	devices         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Poll ticks by result (ok, aborted)",
		}, []string{"result"}),
		devicePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_polls_total",
			Help:      "Device state fetches by result (ok, error)",
		}, []string{"result"}),
		stateWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_writes_total",
			Help:      "Readings that changed and were published",
		}),
		commandAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_attempts_total",
			Help:      "Operating mode POST attempts, retries included",
		}),
		commandOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_outcomes_total",
			Help:      "Operating mode commands by outcome",
		}, []string{"outcome"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Discovered hybrid inverters",
		}),
	}
	reg.MustRegister(m.pollTicks, m.devicePolls, m.stateWrites, m.commandAttempts, m.commandOutcomes, m.devices)
	return m
}

func (m *Metrics) PollTick(ok bool) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(result(ok, "aborted")).Inc()
}

func (m *Metrics) DevicePoll(ok bool) {
	if m == nil {
		return
	}
	m.devicePolls.WithLabelValues(result(ok, "error")).Inc()
}

func (m *Metrics) StateWrite() {
	if m == nil {
		return
	}
	m.stateWrites.Inc()
}

func (m *Metrics) CommandAttempt() {
	if m == nil {
		return
	}
	m.commandAttempts.Inc()
}

func (m *Metrics) CommandOutcome(outcome string) {
	if m == nil {
		return
	}
	m.commandOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}

func result(ok bool, failure string) string {
	if ok {
		return "ok"
	}
	return failure
}
