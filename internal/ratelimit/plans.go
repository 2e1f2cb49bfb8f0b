package ratelimit

import (
	"time"

	"github.com/Papun1111/pagesmith/internal/types"
)

// Limit is the sliding-window budget for a plan: at most MaxRequests
// within any trailing Window.
type Limit struct {
	Window      time.Duration
	MaxRequests int64
}

func DefaultLimits() map[types.Plan]Limit {
	return map[types.Plan]Limit{
		types.PlanFree:  {Window: time.Hour, MaxRequests: 100},
		types.PlanTier2: {Window: time.Hour, MaxRequests: 500},
		types.PlanTier3: {Window: time.Hour, MaxRequests: 2000},
	}
}
