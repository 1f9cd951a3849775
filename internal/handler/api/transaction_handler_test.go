package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alfanzaky/txqueue/config"
	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/internal/engine"
	"github.com/alfanzaky/txqueue/pkg/auth"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type fakeQueue struct {
	mu    sync.Mutex
	items []domain.Transaction
	err   error
}

func (q *fakeQueue) Enqueue(t domain.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, t)
	return nil
}

func (q *fakeQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fakeQueue) Pending() int  { return 0 }
func (q *fakeQueue) Running() bool { return q.err == nil }

type testServer struct {
	router *gin.Engine
	queue  *fakeQueue
	auth   *auth.JWTAuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	q := &fakeQueue{}
	authService := auth.NewJWTAuthService(config.AuthConfig{
		AccessSecret:   "handler-secret",
		Issuer:         "txqueue",
		AccessTokenTTL: time.Hour,
	})

	router := gin.New()
	handler := NewTransactionHandler(q, QueueInfo{ID: "transactions", Durability: "full", Backend: "memory"}, 1024)
	SetupRoutes(router, handler, authService)
	return &testServer{router: router, queue: q, auth: authService}
}

func (s *testServer) do(t *testing.T, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := s.auth.GenerateAccessToken("test-client", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const validBody = `{"account":"acct-42","amount":1999,"currency":"usd","kind":"DEBIT"}`

func TestEnqueueTransaction(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleProducer, validBody)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Status string                     `json:"status"`
		Data   domain.TransactionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	require.Equal(t, "acct-42", resp.Data.Account)
	require.Equal(t, "USD", resp.Data.Currency)
	require.NotEmpty(t, resp.Data.ID)

	require.Len(t, s.queue.items, 1)
	require.Equal(t, resp.Data.ID, s.queue.items[0].ID.String())
	require.Equal(t, int64(1999), s.queue.items[0].Amount)
}

func TestEnqueueRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/transactions", "", validBody)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.Empty(t, s.queue.items)
}

func TestEnqueueRejectsInvalidTransactions(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"malformed json":   `{"account":`,
		"missing currency": `{"account":"a","amount":1,"kind":"DEBIT"}`,
		"negative amount":  `{"account":"a","amount":-5,"currency":"USD","kind":"DEBIT"}`,
		"unknown kind":     `{"account":"a","amount":5,"currency":"USD","kind":"REFUND"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleProducer, body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleProducer,
		`{"account":"`+strings.Repeat("x", 2048)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	require.Empty(t, s.queue.items)
}

func TestEnqueueWhenEngineClosed(t *testing.T) {
	s := newTestServer(t)
	s.queue.err = engine.ErrEngineClosed

	w := s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleAdmin, validBody)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.queue.err = errors.New("disk full")
	w = s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleAdmin, validBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestQueueStatsRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusAccepted,
		s.do(t, http.MethodPost, "/api/v1/transactions", domain.RoleProducer, validBody).Code)

	w := s.do(t, http.MethodGet, "/api/v1/queue", domain.RoleProducer, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/queue", domain.RoleAdmin, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.QueueStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, domain.QueueStats{
		QueueID:    "transactions",
		Durability: "full",
		Backend:    "memory",
		Depth:      1,
		Running:    true,
	}, resp.Data)
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/tokens", domain.RoleProducer, `{"subject":"svc"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tokens", domain.RoleAdmin, `{"subject":"svc","role":"viewer"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tokens", domain.RoleAdmin, `{"subject":"billing"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, domain.RoleProducer, resp.Data.Role)

	claims, err := s.auth.ValidateToken(resp.Data.Token)
	require.NoError(t, err)
	require.Equal(t, "billing", claims.Subject)
}
