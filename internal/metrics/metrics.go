// Package metrics keeps process-wide counters for RPC traffic, unlock
// attempts and transfer outcomes. They are printed by --verbose runs.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds counters. The zero value is ready to use.
type Metrics struct {
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	fiatLookups atomic.Int64
	fiatErrors  atomic.Int64

	unlocksTotal   atomic.Int64
	unlockFailures atomic.Int64

	transfersSubmitted atomic.Int64
	transfersConfirmed atomic.Int64
	transfersFailed    atomic.Int64
	transfersCancelled atomic.Int64
}

// Global is the process-wide instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records one chain RPC call.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordFiatLookup records one exchange-rate request.
func (m *Metrics) RecordFiatLookup(err error) {
	m.fiatLookups.Add(1)
	if err != nil {
		m.fiatErrors.Add(1)
	}
}

// RecordUnlock records an unlock attempt.
func (m *Metrics) RecordUnlock(err error) {
	m.unlocksTotal.Add(1)
	if err != nil {
		m.unlockFailures.Add(1)
	}
}

// RecordTransferSubmitted counts a transfer handed to the dispatcher.
func (m *Metrics) RecordTransferSubmitted() {
	m.transfersSubmitted.Add(1)
}

// RecordTransferResult counts a finished transfer job.
func (m *Metrics) RecordTransferResult(err error) {
	if err != nil {
		m.transfersFailed.Add(1)
		return
	}
	m.transfersConfirmed.Add(1)
}

// RecordTransferCancelled counts a transfer abandoned before submission.
func (m *Metrics) RecordTransferCancelled() {
	m.transfersCancelled.Add(1)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	RPCCallsTotal      int64   `json:"rpc_calls_total"`
	RPCErrorsTotal     int64   `json:"rpc_errors_total"`
	RPCLatencyAvgMs    float64 `json:"rpc_latency_avg_ms"`
	FiatLookups        int64   `json:"fiat_lookups"`
	FiatErrors         int64   `json:"fiat_errors"`
	UnlocksTotal       int64   `json:"unlocks_total"`
	UnlockFailures     int64   `json:"unlock_failures"`
	TransfersSubmitted int64   `json:"transfers_submitted"`
	TransfersConfirmed int64   `json:"transfers_confirmed"`
	TransfersFailed    int64   `json:"transfers_failed"`
	TransfersCancelled int64   `json:"transfers_cancelled"`
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:      m.rpcCallsTotal.Load(),
		RPCErrorsTotal:     m.rpcErrorsTotal.Load(),
		RPCLatencyAvgMs:    m.RPCLatencyAvgMs(),
		FiatLookups:        m.fiatLookups.Load(),
		FiatErrors:         m.fiatErrors.Load(),
		UnlocksTotal:       m.unlocksTotal.Load(),
		UnlockFailures:     m.unlockFailures.Load(),
		TransfersSubmitted: m.transfersSubmitted.Load(),
		TransfersConfirmed: m.transfersConfirmed.Load(),
		TransfersFailed:    m.transfersFailed.Load(),
		TransfersCancelled: m.transfersCancelled.Load(),
	}
}

// RPCLatencyAvgMs returns the mean RPC latency in milliseconds, or 0 before
// any call.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.rpcLatencyNanos.Load()) / float64(calls) / 1e6
}

// InFlight is the number of submitted transfers without a result yet.
func (m *Metrics) InFlight() int64 {
	return m.transfersSubmitted.Load() - m.transfersConfirmed.Load() - m.transfersFailed.Load()
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.rpcCallsTotal, &m.rpcErrorsTotal, &m.rpcLatencyNanos,
		&m.fiatLookups, &m.fiatErrors,
		&m.unlocksTotal, &m.unlockFailures,
		&m.transfersSubmitted, &m.transfersConfirmed, &m.transfersFailed, &m.transfersCancelled,
	} {
		c.Store(0)
	}
}
