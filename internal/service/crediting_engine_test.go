package service

import (
	"bytes"
	"context"
	"log"
	"math"
	"sync"
	"testing"

	"refbook/config"
	"refbook/internal/domain"
	"refbook/internal/models"
	"refbook/internal/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referredPair creates Alice (code ABCD1234) and Bob, referred by Alice.
func referredPair(t *testing.T, e *env) (alice, bob *models.Account) {
	t.Helper()
	alice = e.referrer(t)
	bob, err := e.svc.CreateAccountWithReferral(context.Background(), "bob@example.com", "secret1", "Bob", "ABCD1234")
	require.NoError(t, err)
	return alice, bob
}

func TestSubmitPurchase_FirstPurchaseCreditsBoth(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 12.5)
	require.NoError(t, err)
	assert.True(t, res.IsFirstPurchase)
	assert.True(t, res.CreditsAwardedThisCall)
	require.NotNil(t, res.CurrentCredits)
	assert.Equal(t, int64(2), *res.CurrentCredits)
	assert.Equal(t, "Dune", res.Purchase.ProductName)

	assert.Equal(t, int64(2), e.credits(t, alice.ID))
	assert.Equal(t, int64(2), e.credits(t, bob.ID))

	link := e.link(t, bob.ID)
	assert.Equal(t, models.ReferralStatusConverted, link.Status)
	assert.True(t, link.CreditsAwarded)

	got, err := e.accounts.GetByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageCreditResolved, got.Stage(link))

	require.Equal(t, 2, e.notifier.count())
}

func TestSubmitPurchase_SecondPurchaseChangesNothing(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)
	ctx := context.Background()

	_, err := e.engine.SubmitPurchase(ctx, bob.ID, "Dune", 10)
	require.NoError(t, err)
	res, err := e.engine.SubmitPurchase(ctx, bob.ID, "Emma", 8)
	require.NoError(t, err)

	assert.False(t, res.IsFirstPurchase)
	assert.False(t, res.CreditsAwardedThisCall)
	require.NotNil(t, res.CurrentCredits)
	assert.Equal(t, int64(2), *res.CurrentCredits)
	assert.Equal(t, int64(2), e.credits(t, alice.ID))

	list, err := e.engine.ListPurchases(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSubmitPurchase_ConcurrentFirstPurchasesCreditOnce(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)

	const n = 20
	results := make([]*PurchaseResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var first, awarded int
	for _, res := range results {
		require.NotNil(t, res)
		if res.IsFirstPurchase {
			first++
		}
		if res.CreditsAwardedThisCall {
			awarded++
		}
	}
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, awarded)
	assert.Equal(t, int64(2), e.credits(t, alice.ID))
	assert.Equal(t, int64(2), e.credits(t, bob.ID))

	list, err := e.engine.ListPurchases(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestSubmitPurchase_NotReferred(t *testing.T) {
	e := newEnv(t)
	carol, err := e.svc.CreateAccountWithReferral(context.Background(), "carol@example.com", "secret1", "Carol", "")
	require.NoError(t, err)

	res, err := e.engine.SubmitPurchase(context.Background(), carol.ID, "Dune", 10)
	require.NoError(t, err)
	assert.True(t, res.IsFirstPurchase)
	assert.False(t, res.CreditsAwardedThisCall)
	require.NotNil(t, res.CurrentCredits)
	assert.Zero(t, *res.CurrentCredits)
	assert.Zero(t, e.notifier.count())
}

func TestSubmitPurchase_ReferrerOwnPurchaseDoesNotCredit(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)

	res, err := e.engine.SubmitPurchase(context.Background(), alice.ID, "Dune", 10)
	require.NoError(t, err)
	assert.True(t, res.IsFirstPurchase)
	assert.False(t, res.CreditsAwardedThisCall)
	assert.Zero(t, e.credits(t, alice.ID))
	assert.False(t, e.link(t, bob.ID).CreditsAwarded)
}

func TestSubmitPurchase_Validation(t *testing.T) {
	e := newEnv(t)
	_, bob := referredPair(t, e)
	ctx := context.Background()

	for name, tc := range map[string]struct {
		account, product string
		amount           float64
	}{
		"no account":      {"", "Dune", 1},
		"blank product":   {bob.ID, "   ", 1},
		"negative amount": {bob.ID, "Dune", -1},
		"nan amount":      {bob.ID, "Dune", math.NaN()},
		"inf amount":      {bob.ID, "Dune", math.Inf(1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.engine.SubmitPurchase(ctx, tc.account, tc.product, tc.amount)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	got, err := e.accounts.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPurchased)
}

func TestSubmitPurchase_ZeroAmountCountsAsFirstPurchase(t *testing.T) {
	e := newEnv(t)
	_, bob := referredPair(t, e)

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Free sample", 0)
	require.NoError(t, err)
	assert.True(t, res.IsFirstPurchase)
	assert.True(t, res.CreditsAwardedThisCall)
}

func TestSubmitPurchase_RecordFailureAbortsBeforeClaim(t *testing.T) {
	e := newEnv(t)
	_, bob := referredPair(t, e)
	e.purchases.createErr = errInjected

	_, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.ErrorIs(t, err, ErrPurchaseRecord)

	got, err := e.accounts.GetByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPurchased)
	assert.False(t, e.link(t, bob.ID).CreditsAwarded)
}

func TestSubmitPurchase_FirstPurchaseClaimFailureAborts(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)
	e.accounts.claimErr = errInjected

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.ErrorIs(t, err, errInjected)
	assert.Nil(t, res)

	got, err := e.accounts.GetByID(context.Background(), bob.ID)
	require.NoError(t, err)
	link := e.link(t, bob.ID)
	assert.Equal(t, models.StageNew, got.Stage(link))
	assert.Zero(t, e.credits(t, alice.ID))
	assert.Zero(t, e.notifier.count())
}

// A failure after the first-purchase claim leaves the account claimed but its link
// uncredited. Nothing retries it inline; the audit reports it.
func TestSubmitPurchase_CreditResolutionFailureAbortsAndIsAudited(t *testing.T) {
	for name, inject := range map[string]func(e *env){
		"link lookup":  func(e *env) { e.referrals.getErr = errInjected },
		"credit claim": func(e *env) { e.referrals.claimErr = errInjected },
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			alice, bob := referredPair(t, e)
			inject(e)

			res, err := e.engine.SubmitPurchase(ctx, bob.ID, "Dune", 10)
			require.ErrorIs(t, err, errInjected)
			assert.Nil(t, res)

			got, err := e.accounts.GetByID(ctx, bob.ID)
			require.NoError(t, err)
			link := e.link(t, bob.ID)
			assert.False(t, link.CreditsAwarded)
			assert.Equal(t, models.ReferralStatusPending, link.Status)
			assert.Equal(t, models.StageFirstPurchaseClaimed, got.Stage(link))
			assert.Zero(t, e.credits(t, alice.ID))
			assert.Zero(t, e.credits(t, bob.ID))

			stuck, err := NewAuditService(config.AuditConfig{}, e.referrals.ReferralRepository).Scan(ctx)
			require.NoError(t, err)
			require.Len(t, stuck, 1)
			assert.Equal(t, link.ID, stuck[0].ID)

			// The account's first purchase is spent; a retry does not reopen it.
			e.referrals.getErr, e.referrals.claimErr = nil, nil
			res, err = e.engine.SubmitPurchase(ctx, bob.ID, "Emma", 10)
			require.NoError(t, err)
			assert.False(t, res.IsFirstPurchase)
			assert.False(t, res.CreditsAwardedThisCall)
		})
	}
}

func TestSubmitPurchase_PartialCreditIsNotRetried(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)
	e.accounts.incrementErr = map[string]error{alice.ID: errInjected}

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.NoError(t, err)
	assert.True(t, res.IsFirstPurchase)
	assert.False(t, res.CreditsAwardedThisCall)
	require.NotNil(t, res.CurrentCredits)
	assert.Equal(t, int64(2), *res.CurrentCredits)
	assert.Zero(t, e.credits(t, alice.ID))
	assert.True(t, e.link(t, bob.ID).CreditsAwarded)
	assert.Zero(t, e.notifier.count())

	// A later purchase does not reopen the link.
	e.accounts.incrementErr = nil
	res, err = e.engine.SubmitPurchase(context.Background(), bob.ID, "Emma", 10)
	require.NoError(t, err)
	assert.False(t, res.CreditsAwardedThisCall)
	assert.Zero(t, e.credits(t, alice.ID))
}

func TestSubmitPurchase_PartialCreditLogCarriesRequestID(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)
	e.accounts.incrementErr = map[string]error{alice.ID: errInjected}

	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	ctx := requestid.NewContext(context.Background(), "req-42")
	_, err := e.engine.SubmitPurchase(ctx, bob.ID, "Dune", 10)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "PARTIAL CREDIT AWARD")
	assert.Contains(t, out, "req=req-42")
	assert.Contains(t, out, "failed=referrer")
}

func TestSubmitPurchase_BalanceReadFailureStillSucceeds(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)
	e.accounts.getErr = errInjected

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.NoError(t, err)
	assert.True(t, res.CreditsAwardedThisCall)
	assert.Nil(t, res.CurrentCredits)

	e.accounts.getErr = nil
	assert.Equal(t, int64(2), e.credits(t, alice.ID))
}

func TestSubmitPurchase_AwardSettingOverride(t *testing.T) {
	ctx := context.Background()
	for name, tc := range map[string]struct {
		value string
		want  int64
	}{
		"override": {"5", 5},
		"zero":     {"0", 0},
		"invalid":  {"lots", 2},
		"negative": {"-3", 2},
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			alice, bob := referredPair(t, e)
			require.NoError(t, e.settings.Set(ctx, domain.SettingReferralAwardCredits, tc.value))

			res, err := e.engine.SubmitPurchase(ctx, bob.ID, "Dune", 10)
			require.NoError(t, err)
			assert.True(t, res.CreditsAwardedThisCall)
			assert.Equal(t, tc.want, e.credits(t, alice.ID))
			assert.Equal(t, tc.want, e.credits(t, bob.ID))
		})
	}
}

func TestSubmitPurchase_NotifiesBothSides(t *testing.T) {
	e := newEnv(t)
	alice, bob := referredPair(t, e)

	_, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.NoError(t, err)

	link := e.link(t, bob.ID)
	assert.ElementsMatch(t, []notice{
		{AccountID: alice.ID, Role: "referrer", LinkID: link.ID, Amount: 2},
		{AccountID: bob.ID, Role: "referred", LinkID: link.ID, Amount: 2},
	}, e.notifier.sent)
}

func TestSubmitPurchase_NotifyFailureDoesNotFailPurchase(t *testing.T) {
	e := newEnv(t)
	_, bob := referredPair(t, e)
	e.notifier.err = errInjected

	res, err := e.engine.SubmitPurchase(context.Background(), bob.ID, "Dune", 10)
	require.NoError(t, err)
	assert.True(t, res.CreditsAwardedThisCall)
	assert.Equal(t, 2, e.notifier.count())
}
