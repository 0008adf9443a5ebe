package metrics

import "time"

// Metric names recorded by the intake and call services
const (
	ResolveTotal         = "routing_resolve_total"
	ResolveDuration      = "routing_resolve_duration"
	ResolveErrors        = "routing_resolve_errors_total"
	DuplicatesDropped    = "routing_duplicates_dropped_total"
	CallReceiversTotal   = "calls_receivers_selected_total"
	DialOutcomesTotal    = "calls_dial_outcomes_total"
	EventPublishFailures = "events_publish_failures_total"
)

// RecordResolve counts one finished resolution by outcome and channel.
func (r *Registry) RecordResolve(outcome, channel string, d time.Duration) {
	labels := map[string]string{"outcome": outcome, "channel": channel}
	r.IncrementCounter(ResolveTotal, labels, "Inbound messages resolved")
	r.RecordTimer(ResolveDuration, d, map[string]string{"channel": channel}, "Time to resolve an inbound message")
}

func (r *Registry) RecordResolveError(code, channel string) {
	r.IncrementCounter(ResolveErrors, map[string]string{"code": code, "channel": channel}, "Inbound messages that failed to resolve")
}

func (r *Registry) RecordDuplicate(channel string) {
	r.IncrementCounter(DuplicatesDropped, map[string]string{"channel": channel}, "Redeliveries dropped inside the duplicate window")
}

func (r *Registry) RecordCallReceivers(receiverType string) {
	r.IncrementCounter(CallReceiversTotal, map[string]string{"type": receiverType}, "Call receiver selections")
}

func (r *Registry) RecordDialOutcome(state string, escalated bool) {
	labels := map[string]string{"state": state}
	if escalated {
		labels["escalated"] = "true"
	}
	r.IncrementCounter(DialOutcomesTotal, labels, "Dial outcomes reported by the telephony provider")
}

func (r *Registry) RecordEventPublishFailure(eventType string) {
	r.IncrementCounter(EventPublishFailures, map[string]string{"type": eventType}, "Events that could not be published")
}
