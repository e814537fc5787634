package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/vp-storefront/internal/cache"
	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/http/middleware"
	"github.com/tbourn/vp-storefront/internal/services"
)

// memRemote is an in-memory remote store that can be told to fail.
type memRemote struct {
	mu   sync.Mutex
	rows map[string]domain.Purchase
	err  error
}

func (m *memRemote) Append(_ context.Context, p domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.rows == nil {
		m.rows = make(map[string]domain.Purchase)
	}
	m.rows[p.ID] = p
	return nil
}

func (m *memRemote) Get(_ context.Context, id, userID string) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.rows[id]
	if !found || p.UserID != userID {
		return nil, errors.New("not found")
	}
	return &p, nil
}

func (m *memRemote) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memRemote) failWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// memIdem is an in-memory IdempotencyStore.
type memIdem struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memIdem) Lookup(_ context.Context, userID, checkoutID, key string, _ time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, found := s.m[userID+"|"+checkoutID+"|"+key]
	return pid, found, nil
}

func (s *memIdem) Remember(_ context.Context, userID, checkoutID, key, purchaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[userID+"|"+checkoutID+"|"+key] = purchaseID
	return nil
}

// heldScheduler never fires; redirects stay pending until cancelled.
type heldScheduler struct{}

func (heldScheduler) Schedule(time.Duration, func()) func() bool { return func() bool { return true } }

type testEnv struct {
	router    *gin.Engine
	remote    *memRemote
	local     *cache.Log
	idem      *memIdem
	checkouts *services.CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := &memRemote{}
	local := cache.NewLog(cache.NewMemoryBackend(), zerolog.Nop())
	idem := &memIdem{}

	checkouts := services.NewCheckoutService(remote, local, remote)
	checkouts.Scheduler = heldScheduler{}
	checkouts.Logger = zerolog.Nop()

	h := New(checkouts, services.NewHistoryService(local), idem)
	return &testEnv{
		router:    newTestRouter(h, idem.Lookup),
		remote:    remote,
		local:     local,
		idem:      idem,
		checkouts: checkouts,
	}
}

func newTestRouter(h *Handlers, lookup middleware.IdempotencyLookup) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Authenticate(nil, true))

	r.GET("/packages", h.ListPackages)
	r.POST("/checkouts", h.StartCheckout)
	r.GET("/checkouts/:id", h.GetCheckout)
	r.PUT("/checkouts/:id/account", h.UpdateAccount)
	r.POST("/checkouts/:id/confirm", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup), h.ConfirmCheckout)
	r.DELETE("/checkouts/:id/redirect", h.CancelRedirect)
	r.GET("/purchases", h.ListPurchases)
	r.GET("/purchases/:id", h.GetPurchase)
	return r
}

type call struct {
	method  string
	path    string
	body    any
	user    string
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, e.router, c)
}

func serve(t *testing.T, r http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		switch b := c.body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(middleware.HeaderUserID, c.user)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

// startCheckout opens a checkout for the 2000 VP catalog package.
func (e *testEnv) startCheckout(t *testing.T) services.CheckoutView {
	t.Helper()
	w := e.do(t, call{method: http.MethodPost, path: "/checkouts", body: StartCheckoutRequest{Points: 2000}})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	return decode[services.CheckoutView](t, w)
}

func (e *testEnv) setAccount(t *testing.T, id, riotID, riotTag string) {
	t.Helper()
	w := e.do(t, call{
		method: http.MethodPut,
		path:   "/checkouts/" + id + "/account",
		body:   UpdateAccountRequest{RiotID: riotID, RiotTag: riotTag},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set account: %d %s", w.Code, w.Body.String())
	}
}
