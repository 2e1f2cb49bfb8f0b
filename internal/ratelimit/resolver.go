package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/types"
)

const (
	planCacheKeyPrefix = "plan:"
	planCacheTTL       = 5 * time.Minute
)

// PlanResolver resolves an identity to its subscription plan, consulting
// redis as a short-lived cache over the user store.
type PlanResolver struct {
	rdb redis.Cmdable
	db  database.PagesmithRepository
	log *log.Logger
}

func NewPlanResolver(rdb redis.Cmdable, db database.PagesmithRepository, logger *log.Logger) *PlanResolver {
	return &PlanResolver{
		rdb: rdb,
		db:  db,
		log: logger,
	}
}

func (r *PlanResolver) Resolve(ctx context.Context, identity string) (types.Plan, error) {
	key := planCacheKeyPrefix + identity

	cached, err := r.rdb.Get(ctx, key).Result()
	if err == nil {
		if plan := types.Plan(cached); plan.Valid() {
			return plan, nil
		}
		// a corrupt cache entry falls through to the user store
	} else if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("read plan cache for %q: %w", identity, err)
	}

	plan := types.PlanFree
	user, err := r.db.GetUserById(ctx, identity)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return "", fmt.Errorf("get user %q: %w", identity, err)
		}
		// unknown users are limited as free
	} else if p := types.Plan(user.Plan); p.Valid() {
		plan = p
	}

	// failing to populate the cache is not fatal, the next call retries
	if err := r.rdb.Set(ctx, key, string(plan), planCacheTTL).Err(); err != nil {
		r.log.Printf("cache plan for %q: %v", identity, err)
	}

	return plan, nil
}
