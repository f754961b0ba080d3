package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "rollcall/internal/platform/errors"
	phttp "rollcall/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       perr.ErrorCode  `json:"code"`
	Field      string          `json:"field"`
	RequestID  string          `json:"request_id"`
	Data       json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestCall(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		fn       func(*http.Request) (any, error)
		wantCode int
		wantErr  perr.ErrorCode
	}{
		{"plain value", func(*http.Request) (any, error) { return map[string]int{"n": 1}, nil }, http.StatusOK, perr.ErrorCodeUnknown},
		{"response passthrough", func(*http.Request) (any, error) { return Created("job-1"), nil }, http.StatusCreated, perr.ErrorCodeUnknown},
		{"typed error", func(*http.Request) (any, error) { return nil, perr.NotFoundf("job x not found") }, http.StatusNotFound, perr.ErrorCodeNotFound},
		{"bare error", func(*http.Request) (any, error) { return nil, errors.New("boom") }, http.StatusInternalServerError, perr.ErrorCodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec, env := do(t, http.HandlerFunc(Call(tc.fn)), http.MethodGet, "/")
			if rec.Code != tc.wantCode || env.StatusCode != tc.wantCode {
				t.Fatalf("code = %d envelope = %+v", rec.Code, env)
			}
			if env.Code != tc.wantErr {
				t.Fatalf("error code = %d, want %d", env.Code, tc.wantErr)
			}
		})
	}
}

func TestGetPostAndParam(t *testing.T) {
	t.Parallel()

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	Get(r, "/jobs/{id}", func(req *http.Request) (any, error) { return Param(req, "id"), nil })
	Post(r, "/jobs/{id}/cancel", func(req *http.Request) (any, error) { return OK("cancelled " + Param(req, "id")), nil })

	_, env := do(t, mux, http.MethodGet, "/jobs/abc")
	if string(env.Data) != `"abc"` {
		t.Fatalf("data = %s", env.Data)
	}
	_, env = do(t, mux, http.MethodPost, "/jobs/abc/cancel")
	if string(env.Data) != `"cancelled abc"` {
		t.Fatalf("data = %s", env.Data)
	}
	if rec, _ := do(t, mux, http.MethodPost, "/jobs/abc"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST on GET route = %d", rec.Code)
	}
}

func TestMountAPIV1_ScopesMiddleware(t *testing.T) {
	t.Parallel()

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	MountAPIV1(r, []func(http.Handler) http.Handler{chimw.RequestID}, func(api Router) {
		MountUnder(api, "/uploads", nil, func(u Router) {
			Get(u, "/", func(*http.Request) (any, error) { return "list", nil })
		})
	})

	rec, env := do(t, mux, http.MethodGet, "/api/v1/uploads/")
	if rec.Code != http.StatusOK || env.RequestID == "" {
		t.Fatalf("code=%d envelope=%+v", rec.Code, env)
	}
	if rec, _ := do(t, mux, http.MethodGet, "/uploads/"); rec.Code != http.StatusNotFound {
		t.Fatalf("unversioned path = %d", rec.Code)
	}
}

func TestCommonStack(t *testing.T) {
	t.Parallel()

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	MountAPIV1(r, CommonStack(), func(api Router) {
		Get(api, "/uploads/{id}", func(*http.Request) (any, error) { panic("bad row") })
		Get(api, "/uploads", func(*http.Request) (any, error) { return "ok", nil })
	})

	if rec, env := do(t, mux, http.MethodGet, "/api/v1/uploads/x"); rec.Code != http.StatusInternalServerError || env.RequestID == "" {
		t.Fatalf("panic route: code=%d envelope=%+v", rec.Code, env)
	}
	if rec, _ := do(t, mux, http.MethodGet, "/api/v1/uploads/"); rec.Code != http.StatusOK {
		t.Fatalf("trailing slash: code=%d", rec.Code)
	}
}
