package collab

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/sharedcart/internal/app/store/collabsessions"
	"github.com/dalemusser/sharedcart/internal/app/system/htmlsanitize"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxCommentLength is the longest accepted comment, in runes.
const MaxCommentLength = 2000

// VoteType is the client's vote intent.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// ParseVoteType accepts "up" or "down" (case-insensitive).
func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(strings.ToLower(strings.TrimSpace(s))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	}
	return "", invalid("voteType", "must be up or down")
}

func (v VoteType) value() int {
	if v == VoteDown {
		return models.VoteDownValue
	}
	return models.VoteUpValue
}

// ItemInput describes a product entering a session.
type ItemInput struct {
	ProductID string
	Name      string
	Price     float64
	Quantity  int
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return invalid("productId", "required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return invalid("price", "must be a non-negative number")
	}
	if in.Quantity < 1 {
		return invalid("quantity", "must be at least 1")
	}
	return nil
}

// normalizeItems dedupes by product id, summing quantities. The first
// occurrence supplies the name/price snapshot.
func normalizeItems(in []ItemInput, addedBy string, at time.Time) ([]models.CartLineItem, error) {
	items := make([]models.CartLineItem, 0, len(in))
	index := make(map[string]int, len(in))
	for _, it := range in {
		it.ProductID = strings.TrimSpace(it.ProductID)
		if err := it.validate(); err != nil {
			return nil, err
		}
		if i, ok := index[it.ProductID]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, newLineItem(it, addedBy, at))
	}
	return items, nil
}

func newLineItem(in ItemInput, addedBy string, at time.Time) models.CartLineItem {
	return models.CartLineItem{
		ProductID: in.ProductID,
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price,
		Quantity:  in.Quantity,
		Votes:     []models.Vote{},
		Comments:  []models.Comment{},
		AddedBy:   addedBy,
		AddedAt:   at,
	}
}

// CreateSession starts a new shared cart with creator as its first participant.
func (s *Service) CreateSession(ctx context.Context, creator Identity, initial []ItemInput) (string, error) {
	if strings.TrimSpace(creator.UserID) == "" {
		return "", invalid("userId", "required")
	}
	now := s.now()
	items, err := normalizeItems(initial, creator.UserID, now)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= idAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", persistence("generate session id", err)
		}
		sess := models.CollabSession{
			SessionID:    id,
			Participants: []string{creator.UserID},
			Items:        items,
			Revision:     1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.store.Insert(ctx, sess)
		if errors.Is(err, collabsessions.ErrDuplicateSessionID) {
			s.log.Warn("collab session id collision", zap.String("session_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.log.Error("collab session create failed", zap.Error(err))
			return "", persistence("create session", err)
		}

		s.afterWrite(ctx, sess, models.CollabEvent{
			SessionID: id,
			UserID:    creator.UserID,
			Type:      models.EventSessionCreated,
			Details:   map[string]string{"items": strconv.Itoa(len(items))},
		})
		return id, nil
	}
	return "", persistence("create session", collabsessions.ErrDuplicateSessionID)
}

// JoinSession adds user to the participant set. Joining twice is a no-op.
func (s *Service) JoinSession(ctx context.Context, user Identity, sessionID string) (models.CollabSession, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return models.CollabSession{}, persistence("wait for session lock", err)
	}
	defer unlock()

	cur, err := s.load(ctx, sessionID)
	if err != nil {
		return models.CollabSession{}, err
	}
	if cur.HasParticipant(user.UserID) {
		return cur, nil
	}

	sess, err := s.store.AddParticipant(ctx, sessionID, user.UserID)
	if errors.Is(err, collabsessions.ErrNotFound) {
		return models.CollabSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.CollabSession{}, persistence("join session", err)
	}

	s.afterWrite(ctx, sess, models.CollabEvent{
		SessionID: sessionID,
		UserID:    user.UserID,
		Type:      models.EventParticipantJoined,
	})
	return sess, nil
}

// GetSession returns the session if user participates in it.
func (s *Service) GetSession(ctx context.Context, user Identity, sessionID string) (models.CollabSession, error) {
	sess, err := s.read(ctx, sessionID, user.UserID)
	if err != nil {
		return models.CollabSession{}, err
	}
	if !sess.HasParticipant(user.UserID) {
		return models.CollabSession{}, ErrNotAParticipant
	}
	return sess, nil
}

// AddItem inserts a product or, if it is already present, increases its
// quantity by in.Quantity.
func (s *Service) AddItem(ctx context.Context, user Identity, sessionID string, in ItemInput) (models.CollabSession, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	return s.mutate(ctx, user, sessionID, func(next *models.CollabSession) (models.CollabEvent, error) {
		if err := in.validate(); err != nil {
			return models.CollabEvent{}, err
		}
		ev := models.CollabEvent{
			Type:      models.EventItemAdded,
			ProductID: in.ProductID,
			Details:   map[string]string{"quantity": strconv.Itoa(in.Quantity)},
		}
		if i := next.ItemIndex(in.ProductID); i >= 0 {
			next.Items[i].Quantity += in.Quantity
			ev.Details["merged"] = "true"
			return ev, nil
		}
		next.Items = append(next.Items, newLineItem(in, user.UserID, s.now()))
		return ev, nil
	})
}

// UpdateQuantity sets an absolute quantity; quantity <= 0 removes the item.
func (s *Service) UpdateQuantity(ctx context.Context, user Identity, sessionID, productID string, quantity int) (models.CollabSession, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, user, sessionID, func(next *models.CollabSession) (models.CollabEvent, error) {
		if productID == "" {
			return models.CollabEvent{}, invalid("productId", "required")
		}
		i := next.ItemIndex(productID)
		if i < 0 {
			return models.CollabEvent{}, ErrItemNotFound
		}
		if quantity <= 0 {
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
			return models.CollabEvent{Type: models.EventItemRemoved, ProductID: productID}, nil
		}
		next.Items[i].Quantity = quantity
		return models.CollabEvent{
			Type:      models.EventQuantityUpdated,
			ProductID: productID,
			Details:   map[string]string{"quantity": strconv.Itoa(quantity)},
		}, nil
	})
}

// Vote toggles user's vote on an item:
//
//	none          -> vt
//	same as vt    -> none
//	opposite      -> vt
func (s *Service) Vote(ctx context.Context, user Identity, sessionID, productID string, vt VoteType) (models.CollabSession, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, user, sessionID, func(next *models.CollabSession) (models.CollabEvent, error) {
		if vt != VoteUp && vt != VoteDown {
			return models.CollabEvent{}, invalid("voteType", "must be up or down")
		}
		i := next.ItemIndex(productID)
		if i < 0 {
			return models.CollabEvent{}, ErrItemNotFound
		}
		item := &next.Items[i]
		value := vt.value()
		ev := models.CollabEvent{
			Type:      models.EventVoteCast,
			ProductID: productID,
			Details:   map[string]string{"vote": string(vt)},
		}

		switch j := item.VoteIndex(user.UserID); {
		case j < 0:
			item.Votes = append(item.Votes, models.Vote{UserID: user.UserID, Value: value, CastAt: s.now()})
		case item.Votes[j].Value == value:
			item.Votes = append(item.Votes[:j], item.Votes[j+1:]...)
			ev.Type = models.EventVoteCleared
		default:
			item.Votes[j].Value = value
			item.Votes[j].CastAt = s.now()
		}
		ev.Details["score"] = strconv.Itoa(item.Score())
		return ev, nil
	})
}

// Comment appends an immutable comment to an item.
func (s *Service) Comment(ctx context.Context, user Identity, sessionID, productID, text string) (models.CollabSession, error) {
	productID = strings.TrimSpace(productID)
	clean := strings.TrimSpace(text)
	if !htmlsanitize.IsPlainText(clean) {
		clean = htmlsanitize.PlainText(clean)
	}

	return s.mutate(ctx, user, sessionID, func(next *models.CollabSession) (models.CollabEvent, error) {
		if clean == "" {
			return models.CollabEvent{}, invalid("text", "must not be empty")
		}
		if utf8.RuneCountInString(clean) > MaxCommentLength {
			return models.CollabEvent{}, invalid("text", "too long")
		}
		i := next.ItemIndex(productID)
		if i < 0 {
			return models.CollabEvent{}, ErrItemNotFound
		}
		name := strings.TrimSpace(user.UserName)
		if name == "" {
			name = "Unknown"
		}
		c := models.Comment{
			ID:        uuid.NewString(),
			UserID:    user.UserID,
			UserName:  name,
			Text:      clean,
			CreatedAt: s.now(),
		}
		next.Items[i].Comments = append(next.Items[i].Comments, c)
		return models.CollabEvent{
			Type:      models.EventCommentAdded,
			ProductID: productID,
			Details:   map[string]string{"comment_id": c.ID},
		}, nil
	})
}
