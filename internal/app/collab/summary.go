package collab

import (
	"context"
	"math"

	"github.com/dalemusser/sharedcart/internal/domain/models"
)

// Summary totals the cart and splits it across numPeople. Only the share is
// rounded to cents. It never mutates the session.
func (s *Service) Summary(ctx context.Context, user Identity, sessionID string, numPeople int) (models.Summary, error) {
	sess, err := s.GetSession(ctx, user, sessionID)
	if err != nil {
		return models.Summary{}, err
	}
	if numPeople < 1 {
		return models.Summary{}, invalid("numPeople", "must be at least 1")
	}
	return Split(sess.Items, numPeople), nil
}

// Split computes the total price of items and the per-person share.
func Split(items []models.CartLineItem, numPeople int) models.Summary {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	out := models.Summary{TotalPrice: total, NumPeople: numPeople}
	if numPeople > 0 {
		out.PerPerson = roundCents(total / float64(numPeople))
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Activity lists the newest events for a session the caller participates in.
func (s *Service) Activity(ctx context.Context, user Identity, sessionID string, limit int64) ([]models.CollabEvent, error) {
	if _, err := s.GetSession(ctx, user, sessionID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []models.CollabEvent{}, nil
	}
	events, err := s.events.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, persistence("list activity", err)
	}
	return events, nil
}
