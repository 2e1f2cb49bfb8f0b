package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/ratelimit"
	"github.com/Papun1111/pagesmith/internal/stats"
	"github.com/Papun1111/pagesmith/internal/testutil"
	"github.com/Papun1111/pagesmith/internal/types"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &PagesmithApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &PagesmithApp{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware(t *testing.T) {
	app := &PagesmithApp{
		log:        testutil.TestLogger(t),
		signingKey: testSigningKey,
	}

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := Identity(r.Context())
		assert.True(t, ok, "expected identity to be bound to the request context")
		assert.Equal(t, "u1", identity)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSigningKey)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("token without subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}, testSigningKey)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func newRateLimitedApp(t *testing.T, db database.PagesmithRepository, su stats.StatsProvider) (*PagesmithApp, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := testutil.TestLogger(t)
	return &PagesmithApp{
		log:      logger,
		db:       db,
		resolver: ratelimit.NewPlanResolver(rdb, db, logger),
		limiter:  ratelimit.NewLimiter(rdb, logger),
		stats:    su,
	}, mr
}

func Test_rateLimitMiddleware(t *testing.T) {
	t.Run("admits within budget and rejects over it", func(t *testing.T) {
		db := &database.MockPagesmithRepository{}
		db.On("GetUserById", mock.Anything, "u1").Return(database.User{Id: "u1", Plan: string(types.PlanFree)}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", metricRateLimitRejections).Once()

		app, _ := newRateLimitedApp(t, db, su)

		var served int
		handler := app.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
			served++
			w.WriteHeader(http.StatusOK)
		})

		freeMax := 100
		for i := 0; i < freeMax; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithIdentity(context.Background(), "u1"))
			rr := httptest.NewRecorder()
			handler(rr, req)
			require.Equal(t, http.StatusOK, rr.Code, "request %d should be admitted", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithIdentity(context.Background(), "u1"))
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code, "expected rejection over the plan budget")
		assert.Equal(t, freeMax, served, "expected exactly the budget to reach the handler")
		su.AssertExpectations(t)
		db.AssertExpectations(t)
	})

	t.Run("fails open when redis is down", func(t *testing.T) {
		db := &database.MockPagesmithRepository{}

		su := &stats.MockStatsUpdater{}
		su.On("Incr", metricRateLimitFailOpens).Once()

		app, mr := newRateLimitedApp(t, db, su)
		mr.Close()

		handler := app.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithIdentity(context.Background(), "u1"))
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected the request to be admitted when the fast store is down")
		su.AssertExpectations(t)
	})

	t.Run("fails open when the user store is down", func(t *testing.T) {
		db := &database.MockPagesmithRepository{}
		db.On("GetUserById", mock.Anything, "u1").Return(database.User{}, errors.New("connection refused")).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", metricRateLimitFailOpens).Once()

		app, _ := newRateLimitedApp(t, db, su)

		handler := app.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithIdentity(context.Background(), "u1"))
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		su.AssertExpectations(t)
		db.AssertExpectations(t)
	})

	t.Run("rejects requests without an identity", func(t *testing.T) {
		app := &PagesmithApp{log: testutil.TestLogger(t)}

		handler := app.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run without an identity")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
