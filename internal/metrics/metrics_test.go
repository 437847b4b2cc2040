package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTest = errors.New("test error")

func TestRecordRPCCall(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordRPCCall(10*time.Millisecond, nil)
	m.RecordRPCCall(30*time.Millisecond, errTest)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.RPCCallsTotal)
	assert.Equal(t, int64(1), s.RPCErrorsTotal)
	assert.InDelta(t, 20.0, s.RPCLatencyAvgMs, 0.001)
}

func TestRPCLatencyNoCalls(t *testing.T) {
	t.Parallel()
	assert.Zero(t, (&Metrics{}).RPCLatencyAvgMs())
}

func TestTransferCounters(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordTransferSubmitted()
	m.RecordTransferSubmitted()
	m.RecordTransferSubmitted()
	m.RecordTransferResult(nil)
	m.RecordTransferResult(errTest)
	m.RecordTransferCancelled()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TransfersSubmitted)
	assert.Equal(t, int64(1), s.TransfersConfirmed)
	assert.Equal(t, int64(1), s.TransfersFailed)
	assert.Equal(t, int64(1), s.TransfersCancelled)
	assert.Equal(t, int64(1), m.InFlight())
}

func TestUnlockAndFiatCounters(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordUnlock(errTest)
	m.RecordUnlock(nil)
	m.RecordFiatLookup(nil)
	m.RecordFiatLookup(errTest)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.UnlocksTotal)
	assert.Equal(t, int64(1), s.UnlockFailures)
	assert.Equal(t, int64(2), s.FiatLookups)
	assert.Equal(t, int64(1), s.FiatErrors)
}

func TestReset(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordRPCCall(time.Second, errTest)
	m.RecordTransferSubmitted()
	m.Reset()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestConcurrentRecording(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRPCCall(time.Millisecond, nil)
			m.RecordTransferSubmitted()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), m.Snapshot().RPCCallsTotal)
	assert.Equal(t, int64(100), m.Snapshot().TransfersSubmitted)
}
