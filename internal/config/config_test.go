package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("PENDING_PAIR_TIMEOUT", "")
	t.Setenv("BAN_CLOSES_PAIR_HISTORY", "")
	t.Setenv("TELEGRAM_TIMEOUT_SECONDS", "")

	cfg := New()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/matchmaker")
	assert.Equal(t, 48*time.Hour, cfg.Matching.PendingPairTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Matching.RejectionTimeout)
	assert.Equal(t, time.Hour, cfg.Matching.SweepInterval)
	assert.Equal(t, 1, cfg.Matching.DefaultAgeDiff)
	assert.Equal(t, 16, cfg.Matching.MinAge)
	assert.Equal(t, 100, cfg.Matching.MaxAge)
	assert.True(t, cfg.Matching.BanClosesPairHistory)
	assert.Empty(t, cfg.Matching.AdminIDs)
	assert.Equal(t, 10*time.Second, cfg.Telegram.RequestTimeout)
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("ADMIN_IDS", "7, 9,abc,-3")
	t.Setenv("PENDING_PAIR_TIMEOUT", "12")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "5")
	t.Setenv("BAN_CLOSES_PAIR_HISTORY", "no")
	t.Setenv("TELEGRAM_TIMEOUT_SECONDS", "3")

	cfg := New()

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.DB.DSN)
	assert.Equal(t, []int64{7, 9}, cfg.Matching.AdminIDs)
	assert.Equal(t, 12*time.Hour, cfg.Matching.PendingPairTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Matching.SweepInterval)
	assert.False(t, cfg.Matching.BanClosesPairHistory)
	assert.Equal(t, 3*time.Second, cfg.Telegram.RequestTimeout)
}

func TestParseIDList(t *testing.T) {
	assert.Nil(t, ParseIDList(""))
	assert.Equal(t, []int64{1, 2, 3}, ParseIDList("1,2,,3"))
}
