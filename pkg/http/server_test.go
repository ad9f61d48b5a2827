package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type lookupRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Side   string `query:"side" default:"BUY" validate:"oneof=BUY SELL"`
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/lookup", func(c echo.Context) error {
		req := &lookupRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		if req.Symbol == "MISSING" {
			return AppErrorResponse(c, NotFoundError("no such symbol"))
		}
		return SuccessResponse(c, req)
	})
	e.GET("/boom", func(c echo.Context) error {
		panic("boom")
	})
}

func serve(s *Server, target string) (*httptest.ResponseRecorder, APIResponse) {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestServerEnvelopeAndValidation(t *testing.T) {
	s := NewServer(routes{}, WithRegistry(prometheus.NewRegistry()))

	rec, env := serve(s, "/lookup?symbol=BTCUSDT")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("unexpected %d %+v", rec.Code, env)
	}
	if data := env.Data.(map[string]interface{}); data["Side"] != "BUY" {
		t.Fatalf("default side not applied: %+v", data)
	}

	_, env = serve(s, "/lookup?side=HOLD")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", env)
	}
	errs := env.Data.([]interface{})
	if len(errs) != 2 {
		t.Fatalf("expected symbol and side errors, got %+v", errs)
	}

	_, env = serve(s, "/lookup?symbol=MISSING")
	if env.Status != http.StatusNotFound {
		t.Fatalf("expected 404 in body, got %+v", env)
	}
}

func TestServerExposesRouteMetrics(t *testing.T) {
	s := NewServer(routes{}, WithRegistry(prometheus.NewRegistry()))
	serve(s, "/lookup?symbol=BTCUSDT")
	serve(s, "/lookup?symbol=ETHUSDT")

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	want := `voltx_http_requests_total{class="2xx",method="GET",route="/lookup"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %q in metrics output:\n%s", want, body)
	}
}

func TestAppErrorWrapping(t *testing.T) {
	base := http.ErrHandlerTimeout
	err := InternalError("snapshot failed").WithError(base)
	if err.Error() != "snapshot failed: "+base.Error() || err.Unwrap() != base {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestServerRecoversPanicAndTagsRequest(t *testing.T) {
	s := NewServer(routes{}, WithRegistry(prometheus.NewRegistry()))

	rec, env := serve(s, "/boom")
	if rec.Code != http.StatusInternalServerError || env.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %+v", rec.Code, env)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("request id header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/lookup?symbol=BTCUSDT", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "abc-123" {
		t.Fatalf("inbound request id not echoed, got %q", got)
	}
}
