package cache

import (
	"ShopTalk/internal/config"
	"ShopTalk/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rosterKey = "chat:online_customers"
	rosterTTL = 24 * time.Hour
	opTimeout = 3 * time.Second
)

type rosterEntry struct {
	CustomerID   string `json:"customer_id"`
	SessionID    string `json:"session_id"`
	CustomerName string `json:"customer_name"`
	Since        int64  `json:"since"`
}

// Presence mirrors the in-process connection roster into redis so dashboards
// and sibling services can read who is online without touching the relay.
type Presence struct {
	client *redis.Client
	log    *slog.Logger
}

func NewPresence(conf *config.Config, log *slog.Logger) (*Presence, error) {
	if !conf.Redis.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Presence{
		client: client,
		log:    log.With(sl.Module("presence")),
	}, nil
}

// SetOnline records the customer in the roster hash. The mirror is advisory:
// failures are logged, never surfaced to the chat path.
func (p *Presence) SetOnline(customerID, sessionID, customerName string) {
	data, err := json.Marshal(rosterEntry{
		CustomerID:   customerID,
		SessionID:    sessionID,
		CustomerName: customerName,
		Since:        time.Now().Unix(),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := p.client.HSet(ctx, rosterKey, customerID, data).Err(); err != nil {
		p.log.Error("mark customer online", slog.String("customer_id", customerID), sl.Err(err))
		return
	}
	// The TTL caps staleness if the process dies without cleanup.
	p.client.Expire(ctx, rosterKey, rosterTTL)
}

func (p *Presence) SetOffline(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := p.client.HDel(ctx, rosterKey, customerID).Err(); err != nil {
		p.log.Error("mark customer offline", slog.String("customer_id", customerID), sl.Err(err))
	}
}

// Online returns the mirrored roster keyed by customer id.
func (p *Presence) Online() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	entries, err := p.client.HGetAll(ctx, rosterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return entries, nil
}

func (p *Presence) Close() error {
	return p.client.Close()
}
