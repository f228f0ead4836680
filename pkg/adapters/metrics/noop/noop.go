// Package noop provides a metrics collector that discards everything.
// It backs one-shot CLI runs and tests, where a Prometheus registry is
// unwanted.
package noop

import "time"

// Collector implements ports.MetricsCollector with no-ops.
type Collector struct{}

// NewCollector creates a no-op collector.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordSessionStarted()                        {}
func (*Collector) RecordSessionCompleted(string, time.Duration) {}
func (*Collector) RecordStageDuration(string, time.Duration)    {}
func (*Collector) RecordAgentRun(string, string, time.Duration) {}
func (*Collector) RecordToolCall(string, string, time.Duration) {}
func (*Collector) RecordCacheHit(string)                        {}
func (*Collector) RecordLLMTokens(string, int, int)             {}
func (*Collector) RecordDebateRounds(string, int)               {}
func (*Collector) RecordWorkerPoolStatus(int, int, int)         {}
func (*Collector) SetActiveSessions(int)                        {}
func (*Collector) SetSubscribers(int)                           {}
