package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"ticket-queue-backend/internal/model"
	"ticket-queue-backend/internal/queue"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the subset of the store the push notifier needs.
type SubscriptionStore interface {
	SubscriptionsForTicket(ctx context.Context, ticketID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	DeleteSubscriptionsForTicket(ctx context.Context, ticketID string) error
}

// PushNotifier tells a customer's browser that their ticket was called.
type PushNotifier struct {
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewPushNotifier creates a notifier using the real web push sender.
func NewPushNotifier(s SubscriptionStore, webpushOptions *webpush.Options) *PushNotifier {
	return &PushNotifier{
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

type pushPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	TicketID string `json:"ticket_id"`
	Number   string `json:"number"`
	Desk     string `json:"desk"`
}

func (p *PushNotifier) Name() string { return "web-push" }

func (p *PushNotifier) Handle(ctx context.Context, evt queue.Event) error {
	if evt.Ticket == nil {
		return nil
	}
	switch evt.Kind {
	case queue.EventTicketCalled:
		return p.sendCalled(ctx, *evt.Ticket)
	case queue.EventTicketCompleted, queue.EventTicketCancelled:
		return p.store.DeleteSubscriptionsForTicket(ctx, evt.Ticket.ID)
	}
	return nil
}

func (p *PushNotifier) sendCalled(ctx context.Context, t queue.Ticket) error {
	subscriptions, err := p.store.SubscriptionsForTicket(ctx, t.ID)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:    fmt.Sprintf("Ticket %s", t.Number),
		Body:     fmt.Sprintf("Please go to desk %s", t.DeskLabel),
		TicketID: t.ID,
		Number:   t.Number,
		Desk:     t.DeskLabel,
	})
	if err != nil {
		return err
	}

	log.Printf("Sending %d notifications for ticket %s", len(subscriptions), t.Number)
	for _, sub := range subscriptions {
		p.sendNotification(ctx, sub, payload)
	}
	return nil
}

// sendNotification sends a single web push notification. Delivery failures
// are logged, not retried: the display board still shows the call.
func (p *PushNotifier) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := p.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
