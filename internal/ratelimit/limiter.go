package ratelimit

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Papun1111/pagesmith/internal/types"
)

const rateLimitKeyPrefix = "rate-limit:"

// Limiter enforces per-identity sliding-window rate limits against a shared
// redis instance, so concurrent processes see one consistent window.
type Limiter struct {
	rdb    redis.Cmdable
	limits map[types.Plan]Limit
	log    *log.Logger
}

func NewLimiter(rdb redis.Cmdable, logger *log.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limits: DefaultLimits(),
		log:    logger,
	}
}

func (l *Limiter) limitFor(plan types.Plan) Limit {
	if limit, ok := l.limits[plan]; ok {
		return limit
	}

	// unknown plans get the most restrictive budget
	return l.limits[types.PlanFree]
}

// Check records the current request for identity and reports whether it is
// within the plan's budget. The trim, insert, count and expiry run as a
// single MULTI/EXEC transaction, so no two concurrent calls can observe an
// inconsistent intermediate count. A rejected request stays recorded and
// counts toward future windows.
func (l *Limiter) Check(ctx context.Context, identity string, plan types.Plan) (bool, error) {
	limit := l.limitFor(plan)

	key := rateLimitKeyPrefix + identity
	now := time.Now()
	windowStart := now.Add(-limit.Window)

	var count *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart.UnixMilli(), 10))
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: requestStamp(now),
		})
		count = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, limit.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit transaction for %q: %w", identity, err)
	}

	return count.Val() <= limit.MaxRequests, nil
}

// requestStamp returns a unique sorted-set member for a request. Uniqueness
// matters: two requests in the same millisecond must not collapse into one
// entry or the window undercounts.
func requestStamp(now time.Time) string {
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(rand.Int63(), 36)
}
