package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/http/handlers"
	"github.com/dht-dimaond/diamond/internal/ledger"
	"github.com/dht-dimaond/diamond/internal/mining"
	"github.com/dht-dimaond/diamond/internal/referral"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
	"github.com/dht-dimaond/diamond/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// newTestHandler builds a handler on the in-memory store with the production
// wiring otherwise intact.
func newTestHandler(t *testing.T) (*handlers.Handler, *repository.UserRepository) {
	t.Helper()
	s := memstore.New()
	users := repository.NewUserRepository(s)

	checkpoints, err := mining.NewFileCheckpoints(t.TempDir())
	require.NoError(t, err)
	miningMgr := mining.NewManager(users, checkpoints)
	t.Cleanup(miningMgr.Shutdown)

	graph := referral.NewManager(s, referral.Config{})
	led := ledger.New(s, ledger.DefaultConfig())

	h := handlers.New(s, miningMgr, graph, led, handlers.Rewards{
		Mission:    100,
		Referral:   100,
		GrandPrize: 500,
	}, "test-bot-token")
	return h, users
}

// asUser injects an authenticated identity the way the JWT middleware does.
func asUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		c.Next()
	}
}

func seed(t *testing.T, users *repository.UserRepository, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, users.EnsureUser(context.Background(), id, domain.Profile{}))
	}
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateReferralValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, users := newTestHandler(t)
	seed(t, users, 1, 2)

	r := gin.New()
	r.POST("/api/referrals", h.CreateReferral)

	cases := []struct {
		name string
		body any
		code int
	}{
		{"missing user", map[string]any{"referrerId": 2}, http.StatusBadRequest},
		{"missing referrer", map[string]any{"userId": 1}, http.StatusBadRequest},
		{"equal ids", map[string]any{"userId": 1, "referrerId": 1}, http.StatusBadRequest},
		{"not json", "garbage", http.StatusBadRequest},
		{"valid", map[string]any{"userId": 1, "referrerId": 2}, http.StatusOK},
		{"repeat is ok", map[string]any{"userId": 1, "referrerId": 2}, http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := postJSON(t, r, "/api/referrals", c.body)
			require.Equal(t, c.code, w.Code, w.Body.String())
		})
	}
}

func TestCreateReferralUnknownReferrer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, users := newTestHandler(t)
	seed(t, users, 1)

	r := gin.New()
	r.POST("/api/referrals", h.CreateReferral)

	w := postJSON(t, r, "/api/referrals", map[string]any{"userId": 1, "referrerId": 999})
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestGetReferrals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, users := newTestHandler(t)
	seed(t, users, 1, 2)

	require.NoError(t, h.Graph.Attribute(context.Background(), 1, 2))

	r := gin.New()
	r.GET("/api/referrals", h.GetReferrals)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals?userId=2", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Referrals []int64 `json:"referrals"`
		Referrer  *int64  `json:"referrer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []int64{1}, resp.Referrals)
	require.Nil(t, resp.Referrer)

	// the referred side reports its referrer
	req = httptest.NewRequest(http.MethodGet, "/api/referrals?userId=1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.Referrals)
	require.NotNil(t, resp.Referrer)
	require.EqualValues(t, 2, *resp.Referrer)
}

// faultStore fails point reads of one key, like a backend error surfacing
// mid-request.
type faultStore struct {
	store.Store
	failKey string
}

func (f *faultStore) Get(ctx context.Context, collection, key string) (store.Document, error) {
	if key == f.failKey {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.Get(ctx, collection, key)
}

func TestGetReferralsReferrerLookupFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := memstore.New()
	users := repository.NewUserRepository(mem)
	ctx := context.Background()
	require.NoError(t, users.EnsureUser(ctx, 1, domain.Profile{}))
	require.NoError(t, users.EnsureUser(ctx, 2, domain.Profile{}))

	graph := referral.NewManager(mem, referral.Config{})
	require.NoError(t, graph.Attribute(ctx, 1, 2))

	// the referrer's document becomes unreadable after attribution
	h := &handlers.Handler{
		Graph: referral.NewManager(&faultStore{Store: mem, failKey: "2"}, referral.Config{}),
	}

	r := gin.New()
	r.GET("/api/referrals", h.GetReferrals)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals?userId=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// a store failure must not present as "unreferred"
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
}

func TestGetReferralsMissingParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandler(t)

	r := gin.New()
	r.GET("/api/referrals", h.GetReferrals)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReferralDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, users := newTestHandler(t)
	seed(t, users, 1, 2, 3)

	ctx := context.Background()
	require.NoError(t, h.Graph.Attribute(ctx, 2, 1))
	require.NoError(t, h.Graph.Attribute(ctx, 3, 1))

	r := gin.New()
	r.GET("/api/referrals/details", asUser(1), h.GetReferralDetails)

	req := httptest.NewRequest(http.MethodGet, "/api/referrals/details", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Referrals []struct {
			TelegramID int64 `json:"telegramId"`
		} `json:"referrals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Referrals, 2)
}
