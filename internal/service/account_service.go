package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"refbook/config"
	"refbook/internal/auth"
	"refbook/internal/models"
	"refbook/internal/requestid"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AccountService struct {
	cfg       *config.Config
	accounts  AccountStore
	referrals ReferralStore
	hashCost  int
}

func NewAccountService(cfg *config.Config, accounts AccountStore, referrals ReferralStore) *AccountService {
	return &AccountService{cfg: cfg, accounts: accounts, referrals: referrals, hashCost: bcrypt.DefaultCost}
}

// CreateAccountWithReferral registers a new account and, when a referral code is given,
// the pending referral link to its owner. Either both records exist afterwards or
// neither does: a failed link insert is compensated by deleting the new account.
// If that delete fails too, an *InconsistencyError is returned and logged; the
// orphan account is left for out-of-band repair.
func (s *AccountService) CreateAccountWithReferral(ctx context.Context, email, password, name, referralCode string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	referralCode = strings.TrimSpace(referralCode)
	if err := validateRegistration(email, password, name, referralCode); err != nil {
		return nil, err
	}

	var referrer *models.Account
	if referralCode != "" {
		r, err := s.accounts.GetByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidReferralCode
			}
			return nil, fmt.Errorf("resolve referral code: %w", err)
		}
		referrer = r
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, err
	}
	a := &models.Account{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
	}
	if referrer != nil {
		a.ReferredBy = &referrer.ID
	}
	// Email uniqueness is enforced by the store's unique index, not by a lookup first.
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	if referrer == nil {
		return a, nil
	}

	linkErr := s.referrals.Create(ctx, &models.ReferralLink{
		ReferrerID: referrer.ID,
		ReferredID: a.ID,
	})
	if linkErr == nil {
		return a, nil
	}
	log.Printf("[register] referral link insert failed: req=%s referrer=%s referred=%s err=%v", requestid.FromContext(ctx), referrer.ID, a.ID, linkErr)
	// The compensating delete must run even if the request was cancelled.
	if delErr := s.accounts.Delete(context.WithoutCancel(ctx), a.ID); delErr != nil {
		incErr := &InconsistencyError{AccountID: a.ID, Cause: linkErr, CompensationErr: delErr}
		log.Printf("[register] UNRECOVERABLE INCONSISTENCY: req=%s %v", requestid.FromContext(ctx), incErr)
		return nil, incErr
	}
	return nil, fmt.Errorf("%w: %v", ErrReferralLinkConflict, linkErr)
}

func validateRegistration(email, password, name, referralCode string) error {
	if email == "" || !strings.Contains(email, "@") {
		return validationError("please provide a valid email")
	}
	if len(password) < 6 {
		return validationError("password must be at least 6 characters long")
	}
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return validationError("name must be between 2 and 50 characters")
	}
	if len(referralCode) > 20 {
		return ErrInvalidReferralCode
	}
	return nil
}

// IssueToken signs an access token for the account.
func (s *AccountService) IssueToken(a *models.Account) (string, error) {
	return auth.GenerateAccessToken(&s.cfg.JWT, a.ID, a.Email)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*models.Account, string, error) {
	a, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	token, err := s.IssueToken(a)
	if err != nil {
		return nil, "", err
	}
	return a, token, nil
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (*models.Account, error) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

// ValidateReferralCode returns the account owning code.
func (s *AccountService) ValidateReferralCode(ctx context.Context, code string) (*models.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidReferralCode
	}
	a, err := s.accounts.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}
	return a, nil
}
