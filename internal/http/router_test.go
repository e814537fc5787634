package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vp-storefront/internal/auth"
	"github.com/tbourn/vp-storefront/internal/cache"
	"github.com/tbourn/vp-storefront/internal/config"
	"github.com/tbourn/vp-storefront/internal/domain"
	"github.com/tbourn/vp-storefront/internal/http/middleware"
	"github.com/tbourn/vp-storefront/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestLog() *cache.Log {
	return cache.NewLog(cache.NewMemoryBackend(), zerolog.Nop())
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:    base,
		RateRPS:        100,
		RateBurst:      50,
		IdempotencyTTL: time.Hour,
		RedirectDelay:  time.Hour,
		CheckoutTTL:    time.Hour,
		Auth:           config.AuthConfig{AllowHeaderIdentity: true},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

type apiCall struct {
	method, path, body string
	headers            map[string]string
}

func do(t *testing.T, r http.Handler, a apiCall) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if a.body != "" {
		body = bytes.NewBufferString(a.body)
	}
	req := httptest.NewRequest(a.method, a.path, body)
	if a.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), newTestLog(), testConfig("/api/v1"))

	w := do(t, r, apiCall{method: http.MethodGet, path: "/health"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/metrics"})
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/nope"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if got := decodeMap(t, w)["code"]; got != "not_found" {
		t.Fatalf("NoRoute code = %v", got)
	}

	w = do(t, r, apiCall{method: http.MethodPost, path: "/health"})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off unless enabled
	w = do(t, r, apiCall{method: http.MethodGet, path: "/swagger/index.html"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	RegisterRoutes(r, newTestDB(t), newTestLog(), cfg)

	w := do(t, r, apiCall{method: http.MethodGet, path: "/health", headers: map[string]string{"Origin": "http://example.com"}})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/health", headers: map[string]string{"Origin": "http://evil.example"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be echoed, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig("/api/v1")
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newTestDB(t), newTestLog(), cfg)

	w := do(t, r, apiCall{method: http.MethodGet, path: "/swagger/index.html"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := do(t, r, apiCall{method: http.MethodPost, path: "/echo", body: "0123456789AB"})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := do(t, r, apiCall{method: http.MethodGet, path: path})
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig("/api/v1")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	RegisterRoutes(r, newTestDB(t), newTestLog(), cfg)

	w := do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/packages"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET packages = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing, nosniff=%q", got)
	}
	if cc := w.Header().Get("Cache-Control"); strings.Contains(cc, "no-store") {
		t.Fatalf("catalog should be cacheable, got %q", cc)
	}
}

func TestRegisterRoutes_PurchaseFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	local := newTestLog()
	checkouts := RegisterRoutes(r, db, local, testConfig("/api/v1"))
	user := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderUserName: "Ana"}

	w := do(t, r, apiCall{method: http.MethodPost, path: "/api/v1/checkouts", body: `{"points":2000}`})
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("checkout responses must not be cached, got %q", cc)
	}
	id, _ := decodeMap(t, w)["id"].(string)
	if id == "" || checkouts.Len() != 1 {
		t.Fatalf("checkout not registered: id=%q len=%d", id, checkouts.Len())
	}
	base := "/api/v1/checkouts/" + id

	w = do(t, r, apiCall{method: http.MethodPut, path: base + "/account", body: `{"riotId":"PlayerX","riotTag":"BR1"}`})
	if w.Code != http.StatusOK {
		t.Fatalf("account = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, apiCall{method: http.MethodPost, path: base + "/confirm", headers: user})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm = %d %s", w.Code, w.Body.String())
	}
	view := decodeMap(t, w)
	if view["state"] != "confirmed" {
		t.Fatalf("state = %v", view["state"])
	}
	p, _ := view["purchase"].(map[string]any)
	pid, _ := p["id"].(string)
	if pid == "" {
		t.Fatalf("purchase missing: %v", view)
	}

	// remote store has it
	if n, err := repo.CountPurchases(context.Background(), db, "u1"); err != nil || n != 1 {
		t.Fatalf("CountPurchases = %d, %v", n, err)
	}
	// local cache has it
	if all := local.ListAll(context.Background()); len(all) != 1 || all[0].ID != pid {
		t.Fatalf("local cache = %+v", all)
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases", headers: user})
	if w.Code != http.StatusOK {
		t.Fatalf("history = %d", w.Code)
	}
	hist := decodeMap(t, w)
	if hist["totalCount"] != float64(1) || hist["totalPoints"] != float64(2000) || hist["remoteCount"] != float64(1) {
		t.Fatalf("history = %v", hist)
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases/" + pid, headers: user})
	if w.Code != http.StatusOK {
		t.Fatalf("get purchase = %d", w.Code)
	}
	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases/" + pid,
		headers: map[string]string{middleware.HeaderUserID: "u2"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("other user's purchase = %d, want 404", w.Code)
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous history = %d, want 401", w.Code)
	}
}

func TestRegisterRoutes_IdempotentConfirmReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, newTestLog(), testConfig("/api/v1"))
	headers := map[string]string{
		middleware.HeaderUserID:         "u1",
		middleware.HeaderIdempotencyKey: "confirm-1",
	}

	w := do(t, r, apiCall{method: http.MethodPost, path: "/api/v1/checkouts", body: `{"points":950}`})
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d %s", w.Code, w.Body.String())
	}
	id, _ := decodeMap(t, w)["id"].(string)
	base := "/api/v1/checkouts/" + id
	do(t, r, apiCall{method: http.MethodPut, path: base + "/account", body: `{"riotId":"PlayerX","riotTag":"BR1"}`})

	first := do(t, r, apiCall{method: http.MethodPost, path: base + "/confirm", headers: headers})
	if first.Code != http.StatusOK {
		t.Fatalf("confirm = %d %s", first.Code, first.Body.String())
	}
	second := do(t, r, apiCall{method: http.MethodPost, path: base + "/confirm", headers: headers})
	if second.Code != http.StatusOK {
		t.Fatalf("replay = %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}
	if n, _ := repo.CountPurchases(context.Background(), db, "u1"); n != 1 {
		t.Fatalf("replay must not persist twice, count=%d", n)
	}

	// Without the key the second confirm is a conflict.
	w = do(t, r, apiCall{method: http.MethodPost, path: base + "/confirm",
		headers: map[string]string{middleware.HeaderUserID: "u1"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("confirm without key = %d, want 409", w.Code)
	}
}

func Test_remoteStore_Proxies(t *testing.T) {
	db := newTestDB(t)
	s := remoteStore{db: db}
	ctx := context.Background()

	p := domain.Purchase{
		ID: "11111111-1111-4111-8111-111111111111", UserID: "u1", Points: 2000, Price: 38.9,
		RiotID: "PlayerX", RiotTag: "BR1", Status: domain.StatusCompleted, Date: time.Now().UTC(),
	}
	if err := s.Append(ctx, p); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := s.Get(ctx, p.ID, "u1")
	if err != nil || got.Points != 2000 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, p.ID, "u2"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Get other user err = %v", err)
	}
}

func Test_idempotencyStore_LookupRemember(t *testing.T) {
	db := newTestDB(t)
	s := idempotencyStore{db: db, ttl: time.Hour}
	ctx := context.Background()

	if _, found, err := s.Lookup(ctx, "u1", "c1", "k1", time.Now()); found || err != nil {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}
	if err := s.Remember(ctx, "u1", "c1", "k1", "p1"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	pid, found, err := s.Lookup(ctx, "u1", "c1", "k1", time.Now())
	if !found || pid != "p1" || err != nil {
		t.Fatalf("Lookup = %q, %v, %v", pid, found, err)
	}
	// expired
	if _, found, err := s.Lookup(ctx, "u1", "c1", "k1", time.Now().Add(2*time.Hour)); found || err != nil {
		t.Fatalf("expired record: found=%v err=%v", found, err)
	}
	if err := s.Remember(ctx, "u1", "c1", "k1", "p2"); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("duplicate Remember err = %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()
	if _, found, err := s.Lookup(ctx, "u1", "c1", "k1", time.Now()); found || err == nil {
		t.Fatalf("closed db: found=%v err=%v", found, err)
	}
}

func TestRegisterRoutes_RedirectDelayFromConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, d := range []time.Duration{0, 5 * time.Second} {
		cfg := testConfig("/api/v1")
		cfg.RedirectDelay = d
		checkouts := RegisterRoutes(gin.New(), newTestDB(t), newTestLog(), cfg)
		if checkouts.RedirectDelay != d {
			t.Fatalf("RedirectDelay = %v; want %v", checkouts.RedirectDelay, d)
		}
	}
}

func TestRegisterRoutes_IdempotencyLookup_ClosedDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, newTestLog(), testConfig("/api/v1"))

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// A failing lookup is a miss; the request reaches the handler.
	w := do(t, r, apiCall{method: http.MethodPost, path: "/api/v1/checkouts/missing/confirm", headers: map[string]string{
		middleware.HeaderUserID:         "u1",
		middleware.HeaderIdempotencyKey: "force-error",
	}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_BearerIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig("/api/v1")
	cfg.Auth = config.AuthConfig{JWTSecret: "test-secret"}
	RegisterRoutes(r, newTestDB(t), newTestLog(), cfg)

	tok, err := auth.NewVerifier("test-secret").Issue(auth.Identity{UID: "u1", DisplayName: "Ana"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	w := do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases",
		headers: map[string]string{"Authorization": "Bearer " + tok}})
	if w.Code != http.StatusOK {
		t.Fatalf("bearer history = %d %s", w.Code, w.Body.String())
	}
	if decodeMap(t, w)["empty"] != true {
		t.Fatalf("new user history should be empty: %s", w.Body.String())
	}

	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases",
		headers: map[string]string{"Authorization": "Bearer garbage"}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", w.Code)
	}

	// header identities are off unless allowed
	w = do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases",
		headers: map[string]string{middleware.HeaderUserID: "u1"}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("header identity without opt-in = %d, want 401", w.Code)
	}
}

func TestRegisterRoutes_NoSecretIgnoresBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), newTestLog(), testConfig("/api/v1"))

	w := do(t, r, apiCall{method: http.MethodGet, path: "/api/v1/purchases", headers: map[string]string{
		"Authorization":         "Bearer whatever",
		middleware.HeaderUserID: "u1",
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected header identity to apply, got %d", w.Code)
	}
}
