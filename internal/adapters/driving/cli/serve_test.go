package cli

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/logger"
)

// blockingMaintenance runs until its context ends.
type blockingMaintenance struct {
	started atomic.Bool
}

func (m *blockingMaintenance) Start(ctx context.Context) error {
	m.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (m *blockingMaintenance) Stop() error { return nil }

func (m *blockingMaintenance) RunNow(_ context.Context) domain.MaintenanceResult {
	return domain.MaintenanceResult{}
}

func (m *blockingMaintenance) LastResult() *domain.MaintenanceResult { return nil }

// fakeMetrics records the address it was asked to serve.
type fakeMetrics struct {
	addr atomic.Value
	err  error
}

func (f *fakeMetrics) Serve(ctx context.Context, addr string) error {
	f.addr.Store(addr)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "p", flag.Shorthand)
		assert.Equal(t, "0", flag.DefValue)
	}
}

func TestStartBackground_RunsUntilCancelled(t *testing.T) {
	maintenance := &blockingMaintenance{}
	metrics := &fakeMetrics{}
	svc := &Services{Maintenance: maintenance, Metrics: metrics}
	svc.Settings.MetricsAddr = "127.0.0.1:9464"

	ctx, cancel := context.WithCancel(context.Background())
	done := startBackground(ctx, svc, logger.For("test"))

	assert.Eventually(t, func() bool {
		return maintenance.started.Load() && metrics.addr.Load() == "127.0.0.1:9464"
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("background stopped before cancel")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background did not stop")
	}
}

func TestStartBackground_SkipsMetricsWithoutAddr(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := &Services{Metrics: metrics}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case <-startBackground(ctx, svc, logger.For("test")):
	case <-time.After(time.Second):
		t.Fatal("expected immediate completion")
	}
	assert.Nil(t, metrics.addr.Load())
}

func TestStartBackground_MetricsFailureDoesNotBlock(t *testing.T) {
	svc := &Services{Metrics: &fakeMetrics{err: errors.New("address in use")}}
	svc.Settings.MetricsAddr = ":1"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	select {
	case <-startBackground(ctx, svc, logger.For("test")):
	case <-time.After(time.Second):
		t.Fatal("expected completion after metrics failure")
	}
}
