package recorder

import "CoinSentry/internal/alert"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAlert(_ alert.Alert) error          { return nil }
func (n *NoopRecorder) RecordValuation(_ *ValuationRecord) error { return nil }
func (n *NoopRecorder) RecordTrend(_ *TrendRecord) error         { return nil }
func (n *NoopRecorder) Close() error                             { return nil }
