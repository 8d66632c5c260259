package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"refbook/internal/domain"
	"refbook/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultCodeAttempts = 10

var ErrReferralCodeExhausted = errors.New("failed to generate a unique referral code after retries")

type AccountRepository struct {
	db           *gorm.DB
	codeAttempts int
	newCode      func() (string, error)
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db, codeAttempts: defaultCodeAttempts, newCode: generateReferralCode}
}

// WithCodeAttempts sets how many generated referral codes Create tries before giving up.
// Values below 1 keep the default.
func (r *AccountRepository) WithCodeAttempts(n int) *AccountRepository {
	if n > 0 {
		r.codeAttempts = n
	}
	return r
}

// generateReferralCode returns an 8-character uppercase alphanumeric code, e.g. "Q7K2M9XA".
func generateReferralCode() (string, error) {
	max := big.NewInt(int64(len(domain.ReferralCodeAlphabet)))
	b := make([]byte, domain.ReferralCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = domain.ReferralCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Create inserts the account, assigning an id and, when absent, a referral code.
// A unique violation on email is returned as gorm.ErrDuplicatedKey; code collisions
// are retried with a fresh code.
func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ReferralCode != "" {
		return r.db.WithContext(ctx).Create(a).Error
	}
	for i := 0; i < r.codeAttempts; i++ {
		code, err := r.newCode()
		if err != nil {
			return err
		}
		a.ReferralCode = code
		err = r.db.WithContext(ctx).Create(a).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		taken, cerr := r.codeTaken(ctx, code)
		if cerr != nil {
			return fmt.Errorf("check referral code: %w", cerr)
		}
		if !taken {
			// The conflict was on email.
			a.ReferralCode = ""
			return err
		}
		// Collision: retry with new code
	}
	a.ReferralCode = ""
	return ErrReferralCodeExhausted
}

func (r *AccountRepository) codeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("referral_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	var a models.Account
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes the account by id. Deleting a missing account is not an error,
// so a compensating delete can be repeated safely.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{}).Error
}

// ClaimFirstPurchase atomically flips has_purchased from false to true.
// It reports true only for the single caller whose update matched the row.
func (r *AccountRepository) ClaimFirstPurchase(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND has_purchased = ?", id, false).
		Update("has_purchased", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementCredits atomically adds amount to the account's credits.
func (r *AccountRepository) IncrementCredits(ctx context.Context, id string, amount int64) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
