package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"refbook/config"
	"refbook/internal/models"
	"refbook/internal/repository"
	"refbook/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInjected = errors.New("injected failure")

// faultyAccounts wraps the real store and fails selected operations.
type faultyAccounts struct {
	*repository.AccountRepository
	deleteErr    error
	incrementErr map[string]error
	getErr       error
	claimErr     error
}

func (f *faultyAccounts) ClaimFirstPurchase(ctx context.Context, id string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.AccountRepository.ClaimFirstPurchase(ctx, id)
}

func (f *faultyAccounts) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.AccountRepository.Delete(ctx, id)
}

func (f *faultyAccounts) IncrementCredits(ctx context.Context, id string, amount int64) error {
	if err := f.incrementErr[id]; err != nil {
		return err
	}
	return f.AccountRepository.IncrementCredits(ctx, id, amount)
}

func (f *faultyAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.AccountRepository.GetByID(ctx, id)
}

type faultyReferrals struct {
	*repository.ReferralRepository
	createErr error
	getErr    error
	claimErr  error
}

func (f *faultyReferrals) GetByReferredID(ctx context.Context, referredID string) (*models.ReferralLink, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ReferralRepository.GetByReferredID(ctx, referredID)
}

func (f *faultyReferrals) ClaimCredit(ctx context.Context, linkID string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.ReferralRepository.ClaimCredit(ctx, linkID)
}

func (f *faultyReferrals) Create(ctx context.Context, link *models.ReferralLink) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.ReferralRepository.Create(ctx, link)
}

type faultyPurchases struct {
	*repository.PurchaseRepository
	createErr error
}

func (f *faultyPurchases) Create(ctx context.Context, p *models.PurchaseEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.PurchaseRepository.Create(ctx, p)
}

type notice struct {
	AccountID string
	Role      string
	LinkID    string
	Amount    int64
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notice
	err  error
}

func (n *recordingNotifier) NotifyCreditAwarded(_ context.Context, accountID, role string, link *models.ReferralLink, amount int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notice{AccountID: accountID, Role: role, LinkID: link.ID, Amount: amount})
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type env struct {
	db        *gorm.DB
	cfg       *config.Config
	accounts  *faultyAccounts
	referrals *faultyReferrals
	purchases *faultyPurchases
	settings  *repository.SettingRepository
	notifier  *recordingNotifier
	svc       *AccountService
	engine    *CreditingEngine
	dashboard *DashboardService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	e := &env{
		db:        db,
		cfg:       config.Default(),
		accounts:  &faultyAccounts{AccountRepository: repository.NewAccountRepository(db)},
		referrals: &faultyReferrals{ReferralRepository: repository.NewReferralRepository(db)},
		purchases: &faultyPurchases{PurchaseRepository: repository.NewPurchaseRepository(db)},
		settings:  repository.NewSettingRepository(db),
		notifier:  &recordingNotifier{},
	}
	e.svc = NewAccountService(e.cfg, e.accounts, e.referrals)
	e.svc.hashCost = bcrypt.MinCost
	e.engine = NewCreditingEngine(&e.cfg.Referral, e.accounts, e.referrals, e.purchases, e.settings, e.notifier)
	e.dashboard = NewDashboardService(e.accounts, e.referrals)
	return e
}

// referrer creates an account with the fixed code ABCD1234.
func (e *env) referrer(t *testing.T) *models.Account {
	t.Helper()
	a := &models.Account{Email: "alice@example.com", PasswordHash: "x", Name: "Alice", ReferralCode: "ABCD1234"}
	require.NoError(t, e.accounts.AccountRepository.Create(context.Background(), a))
	return a
}

func (e *env) credits(t *testing.T, id string) int64 {
	t.Helper()
	a, err := e.accounts.AccountRepository.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Credits
}

func (e *env) link(t *testing.T, referredID string) *models.ReferralLink {
	t.Helper()
	l, err := e.referrals.ReferralRepository.GetByReferredID(context.Background(), referredID)
	require.NoError(t, err)
	return l
}
