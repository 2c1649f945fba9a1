package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"ticket-queue-backend/internal/model"
)

// PutSubscription creates or replaces the subscription for an endpoint. A
// browser follows one ticket at a time, so re-subscribing moves it.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "ticket_id"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// GetSubscription returns gorm.ErrRecordNotFound (wrapped) for unknown
// endpoints.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return sub, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// SubscriptionsForTicket lists the browsers waiting on a ticket.
func (s *gormStore) SubscriptionsForTicket(ctx context.Context, ticketID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for ticket %s: %w", ticketID, err)
	}
	return subs, nil
}

// DeleteSubscriptionsForTicket drops every subscription of a finished ticket.
func (s *gormStore) DeleteSubscriptionsForTicket(ctx context.Context, ticketID string) error {
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&model.PushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete subscriptions for ticket %s: %w", ticketID, err)
	}
	return nil
}
