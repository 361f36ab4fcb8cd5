package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis implements Broker over Redis Pub/Sub so several API replicas can
// follow runs executed by any one of them.
type Redis struct {
	rdb    *redis.Client
	prefix string
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[chan Message]*redis.PubSub
}

func NewRedis(url, prefix string, log zerolog.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "lnskit"
	}
	return &Redis{rdb: redis.NewClient(opt), prefix: prefix, log: log, subs: map[chan Message]*redis.PubSub{}}, nil
}

func (b *Redis) Subscribe(runID string) chan Message {
	ch := make(chan Message, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.channel(runID))
	// initial receive confirms the subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn().Err(err).Str("run", runID).Msg("redis subscribe failed")
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.Debug().Err(err).Str("run", runID).Msg("dropping malformed event")
				continue
			}
			offer(ch, m)
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; the forwarding goroutine then
// closes ch.
func (b *Redis) Unsubscribe(runID string, ch chan Message) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(runID string, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.channel(runID), data).Err(); err != nil {
		b.log.Warn().Err(err).Str("run", runID).Msg("redis publish failed")
	}
}

func (b *Redis) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *Redis) channel(runID string) string { return b.prefix + ":run:" + runID }
