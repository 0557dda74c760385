package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const changeChannelPrefix = "chatsync:changes:"

// ChangeFeed announces collection writes over Redis pub/sub. Messages carry
// no data; listeners re-query the collection.
type ChangeFeed struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewChangeFeed(rdb *redis.Client, log *zap.Logger) *ChangeFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChangeFeed{rdb: rdb, log: log}
}

func changeChannel(collection string) string {
	return changeChannelPrefix + collection
}

func (f *ChangeFeed) Publish(ctx context.Context, collection string) error {
	return f.rdb.Publish(ctx, changeChannel(collection), "changed").Err()
}

// Listen returns a channel that receives a signal after every announced
// write to collection. Signals coalesce while the reader is busy. The channel
// closes when ctx is done or the Redis subscription ends.
func (f *ChangeFeed) Listen(ctx context.Context, collection string) (<-chan struct{}, error) {
	sub := f.rdb.Subscribe(ctx, changeChannel(collection))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				f.log.Debug("change_feed_close_failed", zap.String("collection", collection), zap.Error(err))
			}
		}()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
