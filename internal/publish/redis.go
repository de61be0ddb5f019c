package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// RedisSink appends every frame to a stream and keeps the current code of each seat in a
// hash named <stream>:seats.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
	log    *zap.Logger
}

// NewRedisSink wraps client. maxLen <= 0 leaves the stream untrimmed.
func NewRedisSink(client *redis.Client, stream string, maxLen int64, log *zap.Logger) *RedisSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen, log: log.Named("redis")}
}

func (s *RedisSink) Name() string { return "redis" }

// SeatsKey is the hash holding the latest code per seat.
func (s *RedisSink) SeatsKey() string { return s.stream + ":seats" }

func (s *RedisSink) Publish(ctx context.Context, r *types.FrameResult) error {
	update := NewStatusUpdate(r)
	codes, err := json.Marshal(update.StatusCodes)
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"session_id":   r.SessionID,
			"frame_number": strconv.FormatUint(r.FrameNumber, 10),
			"timestamp":    update.Timestamp,
			"occupied":     strconv.Itoa(r.Occupied),
			"status_codes": string(codes),
			"data":         string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	hash := make(map[string]interface{}, len(update.StatusCodes))
	for seat, code := range update.StatusCodes {
		hash[seat] = code
	}

	pipe := s.client.TxPipeline()
	xadd := pipe.XAdd(ctx, args)
	if len(hash) > 0 {
		pipe.HSet(ctx, s.SeatsKey(), hash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish to %s: %w", s.stream, err)
	}
	s.log.Debug("frame published", zap.String("id", xadd.Val()), zap.Uint64("frame_number", r.FrameNumber))
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
