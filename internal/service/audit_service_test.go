package service

import (
	"context"
	"testing"
	"time"

	"refbook/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditScan_FindsStuckLinksWithoutRepairing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, bob := referredPair(t, e)

	// Simulate a submission interrupted between the first-purchase claim and the
	// credit claim.
	won, err := e.accounts.ClaimFirstPurchase(ctx, bob.ID)
	require.NoError(t, err)
	require.True(t, won)

	audit := NewAuditService(config.AuditConfig{Enabled: true, Interval: time.Minute}, e.referrals)
	stuck, err := audit.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, bob.ID, stuck[0].ReferredID)

	assert.False(t, e.link(t, bob.ID).CreditsAwarded)
	assert.Zero(t, e.credits(t, bob.ID))
}

func TestAuditScan_CleanAfterNormalFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, bob := referredPair(t, e)
	_, err := e.engine.SubmitPurchase(ctx, bob.ID, "Dune", 10)
	require.NoError(t, err)

	stuck, err := NewAuditService(config.AuditConfig{}, e.referrals).Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestAuditStart_SchedulesAndShutsDown(t *testing.T) {
	e := newEnv(t)
	audit := NewAuditService(config.AuditConfig{Enabled: true, Interval: time.Hour}, e.referrals)

	sched, err := audit.Start(context.Background())
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 1)
	require.NoError(t, sched.Shutdown())
}
