// Package notify delivers and stores user notifications. Notifications
// are an ephemeral side channel: records live in Redis under a TTL and are
// never joined to the relational store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taskdeck/internal/apperr"
	"taskdeck/internal/domain"
)

// Notifier is the fire-and-forget trigger contract consumed by the engine.
// Failures are the implementation's problem to log; the engine never rolls
// back a mutation because a notification was lost.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message, typ string, relatedID string) error
}

func notificationKey(userID, notificationID string) string {
	return fmt.Sprintf("notifications:%s:%s", userID, notificationID)
}

func userListKey(userID string) string {
	return fmt.Sprintf("user_notifications:%s", userID)
}

// Store keeps notifications in Redis with a bounded TTL plus a per-user
// index list for pagination.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) Notify(ctx context.Context, userID, title, message, typ string, relatedID string) error {
	n := domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if relatedID != "" {
		n.RelatedID = &relatedID
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, notificationKey(userID, n.ID), payload, s.TTL).Err(); err != nil {
		return err
	}
	listKey := userListKey(userID)
	if err := s.Client.LPush(ctx, listKey, n.ID).Err(); err != nil {
		return err
	}
	return s.Client.Expire(ctx, listKey, s.TTL).Err()
}

// List returns a page of the user's notifications, newest first. Entries
// whose record expired ahead of the index list are skipped.
func (s *Store) List(ctx context.Context, userID string, skip, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.Client.LRange(ctx, userListKey(userID), int64(skip), int64(skip+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := s.get(ctx, userID, id)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, userID, notificationID string) (domain.Notification, error) {
	data, err := s.Client.Get(ctx, notificationKey(userID, notificationID)).Bytes()
	if err != nil {
		return domain.Notification{}, err
	}
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (s *Store) Get(ctx context.Context, userID, notificationID string) (domain.Notification, error) {
	n, err := s.get(ctx, userID, notificationID)
	if err != nil {
		return domain.Notification{}, apperr.NotFound(apperr.CodeNotificationNotFound, "notification not found")
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	n, err := s.get(ctx, userID, notificationID)
	if err != nil {
		return apperr.NotFound(apperr.CodeNotificationNotFound, "notification not found")
	}
	n.IsRead = true
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, notificationKey(userID, notificationID), payload, s.TTL).Err()
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ids, err := s.Client.LRange(ctx, userListKey(userID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		if err := s.MarkRead(ctx, userID, id); err == nil {
			updated++
		}
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, userID, notificationID string) error {
	if err := s.Client.LRem(ctx, userListKey(userID), 0, notificationID).Err(); err != nil {
		return err
	}
	deleted, err := s.Client.Del(ctx, notificationKey(userID, notificationID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return apperr.NotFound(apperr.CodeNotificationNotFound, "notification not found")
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	all, err := s.List(ctx, userID, 0, 1000)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range all {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Noop discards every notification. Used when Redis is not configured and
// by tests that only care that the trigger fired.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string, string, string) error { return nil }
