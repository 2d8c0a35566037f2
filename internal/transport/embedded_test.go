package transport

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()
		if e := NewEmbeddedTor(); e.startupTimeout != 3*time.Minute {
			t.Errorf("expected 3m, got %v", e.startupTimeout)
		}
	})

	t.Run("WithStartupTimeout", func(t *testing.T) {
		t.Parallel()
		if e := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute)); e.startupTimeout != 5*time.Minute {
			t.Errorf("expected 5m, got %v", e.startupTimeout)
		}
	})
}

func TestEmbeddedTor_NotStarted(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()
	if e.IsRunning() {
		t.Error("expected not running")
	}
	if e.SocksAddr() != "" {
		t.Errorf("expected empty SocksAddr, got %q", e.SocksAddr())
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on unstarted instance: %v", err)
	}
	if _, err := e.Option(); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
