package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"vaultswap/core/events"
	"vaultswap/native/escrow"
)

// EscrowMetrics tracks escrow instruction outcomes and committed offer
// lifecycle events.
type EscrowMetrics struct {
	instructions *prometheus.CounterVec
	lifecycle    *prometheus.CounterVec
	openOffers   *prometheus.GaugeVec
	luckyDraws   *prometheus.CounterVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metrics registry.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultswap",
				Subsystem: "escrow",
				Name:      "instructions_total",
				Help:      "Escrow instructions executed, segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultswap",
				Subsystem: "escrow",
				Name:      "events_total",
				Help:      "Committed escrow lifecycle events by type.",
			}, []string{"type"}),
			openOffers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "vaultswap",
				Subsystem: "escrow",
				Name:      "open_offers",
				Help:      "Offers created but not yet exchanged or cancelled since process start.",
			}, []string{"variant"}),
			luckyDraws: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultswap",
				Subsystem: "room",
				Name:      "lucky_draws_total",
				Help:      "Room creations that took part in the lucky draw, by result.",
			}, []string{"lucky"}),
		}
		prometheus.MustRegister(
			escrowRegistry.instructions,
			escrowRegistry.lifecycle,
			escrowRegistry.openOffers,
			escrowRegistry.luckyDraws,
		)
	})
	return escrowRegistry
}

// ObserveInstruction implements escrow.Observer.
func (m *EscrowMetrics) ObserveInstruction(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = string(escrow.KindOf(err))
	}
	m.instructions.WithLabelValues(op, outcome).Inc()
}

// Emit implements events.Emitter. Only committed events reach it, so the open
// offer gauge never counts a reverted creation.
func (m *EscrowMetrics) Emit(evt events.Event) {
	payload := events.Payload(evt)
	if m == nil || payload == nil {
		return
	}
	switch payload.Type {
	case escrow.EventEscrowCreated:
		m.openOffers.WithLabelValues(escrow.VariantEscrow.String()).Inc()
	case escrow.EventRoomCreated:
		m.openOffers.WithLabelValues(escrow.VariantRoom.String()).Inc()
		if _, eligible := payload.Attributes["draw"]; eligible {
			m.luckyDraws.WithLabelValues(payload.Attributes["lucky"]).Inc()
		}
	case escrow.EventEscrowExchanged, escrow.EventEscrowCancelled:
		if variant := payload.Attributes["variant"]; variant != "" {
			m.openOffers.WithLabelValues(variant).Dec()
		}
	default:
		return
	}
	m.lifecycle.WithLabelValues(payload.Type).Inc()
}
