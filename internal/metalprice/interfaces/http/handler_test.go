package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/application"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/internal/metalprice/infrastructure/persistence/memory"
	"github.com/wyfcoding/metalprice/pkg/response"
)

type stubSource struct {
	mu    sync.Mutex
	fail  bool
	calls int
	gold  decimal.Decimal
}

func (s *stubSource) FetchDirectPrice(_ context.Context, metal domain.Metal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return decimal.Zero, domain.ErrSourceUnavailable
	}
	if metal == domain.Gold {
		return s.gold, nil
	}
	return decimal.NewFromInt(25), nil
}

func setup(t *testing.T, src *stubSource, guards ...gin.HandlerFunc) (*gin.Engine, *application.PriceService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := application.NewPriceService(src, nil, memory.NewDeltaStore(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		application.Options{TTL: time.Hour, Currency: "USD"})
	t.Cleanup(svc.Wait)

	r := gin.New()
	NewPriceHandler(svc, guards...).RegisterRoutes(r.Group("/api"))
	return r, svc
}

func do(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, body
}

func TestGetPrices(t *testing.T) {
	r, _ := setup(t, &stubSource{gold: decimal.NewFromInt(2000)})

	w, body := do(t, r, http.MethodGet, "/api/v1/metals/prices")
	if w.Code != http.StatusOK || body.Code != 0 {
		t.Fatalf("status = %d body = %+v", w.Code, body)
	}

	data, _ := json.Marshal(body.Data)
	var dto application.SnapshotDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		t.Fatal(err)
	}
	if len(dto.Records) != 4 || dto.Records[2].Metal != "platinum" || dto.Records[2].Price != "1400.00" {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.Stale || dto.AssembledAt == nil || dto.Currency != "USD" {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestGetPricesColdFailureIsEmpty(t *testing.T) {
	r, _ := setup(t, &stubSource{fail: true})

	w, body := do(t, r, http.MethodGet, "/api/v1/metals/prices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data, _ := json.Marshal(body.Data)
	var dto application.SnapshotDTO
	_ = json.Unmarshal(data, &dto)
	if len(dto.Records) != 0 || dto.AssembledAt != nil {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestGetPrice(t *testing.T) {
	tests := []struct {
		name   string
		fail   bool
		path   string
		status int
	}{
		{"found", false, "/api/v1/metals/prices/palladium", http.StatusOK},
		{"case insensitive", false, "/api/v1/metals/prices/GOLD", http.StatusOK},
		{"unknown metal", false, "/api/v1/metals/prices/rhodium", http.StatusBadRequest},
		{"not available", true, "/api/v1/metals/prices/gold", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setup(t, &stubSource{fail: tt.fail, gold: decimal.NewFromInt(2000)})
			w, body := do(t, r, http.MethodGet, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", w.Code, tt.status, body)
			}
		})
	}
}

func TestRefreshBypassesCache(t *testing.T) {
	src := &stubSource{gold: decimal.NewFromInt(2000)}
	r, _ := setup(t, src)

	do(t, r, http.MethodGet, "/api/v1/metals/prices")
	do(t, r, http.MethodGet, "/api/v1/metals/prices")
	w, _ := do(t, r, http.MethodPost, "/api/v1/metals/prices/refresh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	// 两次读取共用一次刷新（金、银各一次），手动刷新再抓取一次
	if src.calls != 4 {
		t.Fatalf("source calls = %d, want 4", src.calls)
	}
}

func TestRefreshGuardCanReject(t *testing.T) {
	deny := func(c *gin.Context) {
		response.ErrorWithStatus(c, http.StatusTooManyRequests, "slow down", "")
	}
	src := &stubSource{gold: decimal.NewFromInt(2000)}
	r, _ := setup(t, src, deny)

	w, _ := do(t, r, http.MethodPost, "/api/v1/metals/prices/refresh")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	if src.calls != 0 {
		t.Fatal("guarded refresh must not reach the source")
	}
}

func TestResetHistory(t *testing.T) {
	src := &stubSource{gold: decimal.NewFromInt(2000)}
	r, svc := setup(t, src)

	do(t, r, http.MethodGet, "/api/v1/metals/prices")
	svc.Wait()
	w, _ := do(t, r, http.MethodDelete, "/api/v1/metals/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	src.mu.Lock()
	src.gold = decimal.NewFromInt(2100)
	src.mu.Unlock()

	rec, err := svc.GetPrice(context.Background(), domain.Gold)
	if err != nil {
		t.Fatal(err)
	}
	// 缓存未失效，仍为原快照
	if !rec.Price.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("gold = %s", rec.Price)
	}
	s := svc.RefreshLivePrices(context.Background())
	got, _ := s.Find(domain.Gold)
	if !got.Change.IsZero() {
		t.Fatalf("change after reset = %s, want 0", got.Change)
	}
}
