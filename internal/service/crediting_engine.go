package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"refbook/config"
	"refbook/internal/domain"
	"refbook/internal/models"
	"refbook/internal/requestid"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CreditingEngine records purchases and awards referral credit on an account's first
// purchase, exactly once. It holds no locks: every transition is a single conditional
// update in the store, and the outcome of each step gates the next.
//
//	1. append purchase event            (failure aborts)
//	2. has_purchased false -> true      (loser: not first purchase, skip to 5)
//	3. link credits_awarded false -> true (no link or loser: no credit, skip to 5)
//	4. credits += award, both accounts  (failure logged, never retried, never fails the call)
//	5. read back balance
type CreditingEngine struct {
	accounts     AccountStore
	referrals    ReferralStore
	purchases    PurchaseLog
	settings     SettingStore
	notifier     Notifier
	awardCredits int64
}

func NewCreditingEngine(
	cfg *config.ReferralConfig,
	accounts AccountStore,
	referrals ReferralStore,
	purchases PurchaseLog,
	settings SettingStore,
	notifier Notifier,
) *CreditingEngine {
	return &CreditingEngine{
		accounts:     accounts,
		referrals:    referrals,
		purchases:    purchases,
		settings:     settings,
		notifier:     notifier,
		awardCredits: cfg.AwardCredits,
	}
}

// PurchaseResult is the outcome of one submission. CreditsAwardedThisCall is about this
// call only: a concurrent duplicate that lost the first-purchase claim reports false even
// though another call awarded the credit.
type PurchaseResult struct {
	Purchase               *models.PurchaseEvent
	IsFirstPurchase        bool
	CreditsAwardedThisCall bool
	// CurrentCredits is nil when the balance could not be read back.
	CurrentCredits *int64
}

// SubmitPurchase records a purchase for an authenticated account and resolves referral
// credit if this is the account's first purchase.
func (e *CreditingEngine) SubmitPurchase(ctx context.Context, accountID, productName string, amount float64) (*PurchaseResult, error) {
	productName = strings.TrimSpace(productName)
	if accountID == "" {
		return nil, validationError("account id is required")
	}
	if productName == "" {
		return nil, validationError("product name is required")
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, validationError("amount must be a non-negative number")
	}

	// Step 1: the purchase is recorded before anything else.
	p := &models.PurchaseEvent{
		AccountID:   accountID,
		ProductName: productName,
		Amount:      amount,
	}
	if err := e.purchases.Create(ctx, p); err != nil {
		log.Printf("[purchase] record failed: req=%s account=%s err=%v", requestid.FromContext(ctx), accountID, err)
		return nil, fmt.Errorf("%w: %v", ErrPurchaseRecord, err)
	}
	res := &PurchaseResult{Purchase: p}

	// Step 2: the conditional update is the only source of truth for "first".
	first, err := e.accounts.ClaimFirstPurchase(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("claim first purchase for account %s: %w", accountID, err)
	}
	res.IsFirstPurchase = first

	if first {
		awarded, err := e.resolveReferralCredit(ctx, accountID)
		if err != nil {
			return nil, err
		}
		res.CreditsAwardedThisCall = awarded
	}

	// Step 5
	a, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		log.Printf("[purchase] balance read-back failed: req=%s account=%s purchase=%s err=%v", requestid.FromContext(ctx), accountID, p.ID, err)
	} else {
		credits := a.Credits
		res.CurrentCredits = &credits
	}
	return res, nil
}

// resolveReferralCredit runs steps 3 and 4 for an account that just won its first
// purchase claim. It returns an error only for step 3 failures.
func (e *CreditingEngine) resolveReferralCredit(ctx context.Context, accountID string) (bool, error) {
	link, err := e.referrals.GetByReferredID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil // not referred
		}
		return false, fmt.Errorf("load referral link for account %s: %w", accountID, err)
	}
	won, err := e.referrals.ClaimCredit(ctx, link.ID)
	if err != nil {
		return false, fmt.Errorf("claim referral credit on link %s: %w", link.ID, err)
	}
	if !won {
		return false, nil
	}

	amount := e.awardAmount(ctx)
	if amount > 0 {
		if perr := e.applyCredits(ctx, link, amount); perr != nil {
			log.Printf("[purchase] PARTIAL CREDIT AWARD, needs reconciliation: req=%s %v", requestid.FromContext(ctx), perr)
			return false, nil
		}
	}
	log.Printf("[purchase] referral converted: req=%s link=%s referrer=%s referred=%s credits=%d", requestid.FromContext(ctx), link.ID, link.ReferrerID, accountID, amount)
	e.notifyAwarded(ctx, link, amount)
	return true, nil
}

// applyCredits increments both balances in parallel. The two increments are independent;
// a failure of either is reported, not rolled back.
func (e *CreditingEngine) applyCredits(ctx context.Context, link *models.ReferralLink, amount int64) *PartialCreditError {
	// The link is already marked credited, so the increments must not be abandoned
	// halfway by a cancelled request.
	ctx = context.WithoutCancel(ctx)
	var referrerErr, referredErr error
	var g errgroup.Group
	g.Go(func() error {
		referrerErr = e.accounts.IncrementCredits(ctx, link.ReferrerID, amount)
		return nil
	})
	g.Go(func() error {
		referredErr = e.accounts.IncrementCredits(ctx, link.ReferredID, amount)
		return nil
	})
	_ = g.Wait()
	if referrerErr == nil && referredErr == nil {
		return nil
	}
	return &PartialCreditError{
		LinkID:      link.ID,
		ReferrerID:  link.ReferrerID,
		ReferredID:  link.ReferredID,
		Amount:      amount,
		ReferrerErr: referrerErr,
		ReferredErr: referredErr,
	}
}

// awardAmount returns the admin override from system settings, falling back to config.
func (e *CreditingEngine) awardAmount(ctx context.Context) int64 {
	if e.settings == nil {
		return e.awardCredits
	}
	val, err := e.settings.Get(ctx, domain.SettingReferralAwardCredits)
	if err != nil || val == "" {
		return e.awardCredits
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n < 0 {
		log.Printf("[purchase] ignoring invalid %s setting %q", domain.SettingReferralAwardCredits, val)
		return e.awardCredits
	}
	return n
}

func (e *CreditingEngine) notifyAwarded(ctx context.Context, link *models.ReferralLink, amount int64) {
	if e.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, side := range []struct{ accountID, role string }{
		{link.ReferrerID, "referrer"},
		{link.ReferredID, "referred"},
	} {
		if err := e.notifier.NotifyCreditAwarded(ctx, side.accountID, side.role, link, amount); err != nil {
			log.Printf("[purchase] notify %s failed: req=%s account=%s link=%s err=%v", side.role, requestid.FromContext(ctx), side.accountID, link.ID, err)
		}
	}
}

// ListPurchases returns the account's purchases, newest first.
func (e *CreditingEngine) ListPurchases(ctx context.Context, accountID string) ([]models.PurchaseEvent, error) {
	return e.purchases.ListByAccount(ctx, accountID)
}
