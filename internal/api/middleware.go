package api

import (
	"fmt"
	"net/http"
)

func (s *PagesmithApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *PagesmithApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		identity, err := s.identityFromToken(tokenString)
		if err != nil {
			s.log.Printf("failed to verify token: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// rateLimitMiddleware admits or rejects the request based on the caller's
// plan budget. Any failure while resolving the plan or talking to redis
// fails open: a dead cache must never become a full outage.
func (s *PagesmithApp) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := Identity(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		plan, err := s.resolver.Resolve(r.Context(), identity)
		if err != nil {
			s.log.Printf("resolve plan for %q: %v, failing open", identity, err)
			s.stats.Incr(metricRateLimitFailOpens)
			next(w, r)
			return
		}

		allowed, err := s.limiter.Check(r.Context(), identity, plan)
		if err != nil {
			s.log.Printf("rate limit check for %q: %v, failing open", identity, err)
			s.stats.Incr(metricRateLimitFailOpens)
			next(w, r)
			return
		}

		if !allowed {
			s.stats.Incr(metricRateLimitRejections)
			errResp := NewTooManyRequestsError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r)
	}
}
