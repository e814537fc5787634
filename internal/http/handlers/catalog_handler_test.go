package handlers

import (
	"net/http"
	"testing"
)

func TestListPackages(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, call{method: http.MethodGet, path: "/packages"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	got := decode[CatalogResponse](t, w)
	if len(got.Packages) != 6 {
		t.Fatalf("packages = %d", len(got.Packages))
	}
	second := got.Packages[1]
	if second.Points != 2000 || second.Bonus != 50 || second.TotalPoints != 2050 || second.PriceDisplay != "38.90" {
		t.Fatalf("second package = %+v", second)
	}
	if got.Packages[0].PriceDisplay != "18.90" || got.Packages[5].PriceDisplay != "379.90" {
		t.Fatalf("price display: %+v", got.Packages)
	}
	if w.Header().Get("Cache-Control") == "" {
		t.Fatalf("catalog should be cacheable")
	}
}
