package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook and reward outcomes.
type PaymentMetrics struct {
	webhookEvents *prometheus.CounterVec
	rewards       *prometheus.CounterVec
	rewardTokens  prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paypal_webhook_events_total",
		Help: "PayPal webhook events by outcome.",
	}, []string{"outcome"})
	rewards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_rewards_total",
		Help: "Token reward attempts by outcome.",
	}, []string{"outcome"})
	rewardTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "token_rewards_issued_tokens_total",
		Help: "Total tokens credited via order rewards.",
	})
	reg.MustRegister(webhookEvents, rewards, rewardTokens)
	return &PaymentMetrics{
		webhookEvents: webhookEvents,
		rewards:       rewards,
		rewardTokens:  rewardTokens,
	}
}

// IncWebhookEvent counts a webhook delivery by outcome
// (processed, ignored, malformed, invalid_signature, error).
func (p *PaymentMetrics) IncWebhookEvent(outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReward counts a reward attempt by outcome (issued, skipped, error).
func (p *PaymentMetrics) IncReward(outcome string) {
	if p == nil || p.rewards == nil {
		return
	}
	p.rewards.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddRewardTokens accumulates issued token volume.
func (p *PaymentMetrics) AddRewardTokens(amount int64) {
	if p == nil || p.rewardTokens == nil || amount <= 0 {
		return
	}
	p.rewardTokens.Add(float64(amount))
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
