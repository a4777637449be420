package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeoutsAreIndependent(t *testing.T) {
	t.Setenv("BILLING_TIMEOUT", "3s")
	t.Setenv("RATES_TIMEOUT", "45")

	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, 45*time.Second, cfg.RatesTimeout)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BILLING_TIMEOUT", "")
	t.Setenv("RATES_TIMEOUT", "not-a-duration")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.LedgerTimeout)
	assert.Equal(t, 10*time.Second, cfg.RatesTimeout)
	assert.Equal(t, time.Hour, cfg.RatesInterval)
}
