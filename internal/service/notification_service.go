package service

import (
	"context"
	"encoding/json"
	"fmt"

	"refbook/internal/domain"
	"refbook/internal/models"
)

// NotificationStore is the per-account notification inbox.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, accountID string) (bool, error)
}

// Pusher delivers a payload to the live connections of an account.
type Pusher interface {
	BroadcastToAccount(accountID string, payload interface{})
}

// NotificationService stores notifications and pushes them to connected clients.
type NotificationService struct {
	repo NotificationStore
	push Pusher
}

func NewNotificationService(repo NotificationStore, push Pusher) *NotificationService {
	return &NotificationService{repo: repo, push: push}
}

// Notify saves the notification, then pushes it. Push is fire-and-forget.
func (s *NotificationService) Notify(ctx context.Context, accountID, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		dataJSON = string(b)
	}
	n := &models.Notification{
		AccountID: accountID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Data:      dataJSON,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.push != nil {
		s.push.BroadcastToAccount(accountID, map[string]interface{}{
			"id":         n.ID,
			"type":       n.Type,
			"title":      n.Title,
			"body":       n.Body,
			"data":       data,
			"created_at": n.CreatedAt,
		})
	}
	return nil
}

// NotifyCreditAwarded tells one side of a converted referral about its credit.
// role is "referrer" or "referred".
func (s *NotificationService) NotifyCreditAwarded(ctx context.Context, accountID, role string, link *models.ReferralLink, amount int64) error {
	body := fmt.Sprintf("You earned %d credits: your referral made their first purchase.", amount)
	if role == "referred" {
		body = fmt.Sprintf("You earned %d credits on your first purchase.", amount)
	}
	return s.Notify(ctx, accountID, domain.EventCreditAwarded, "Credits awarded", body, map[string]interface{}{
		"role":        role,
		"credits":     amount,
		"link_id":     link.ID,
		"referred_id": link.ReferredID,
	})
}

func (s *NotificationService) List(ctx context.Context, accountID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByAccountID(ctx, accountID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, accountID string) (bool, error) {
	return s.repo.MarkRead(ctx, id, accountID)
}
