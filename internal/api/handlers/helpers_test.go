package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api"
	"github.com/hugh/projectflow/internal/archive"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/billing"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/invitations"
	"github.com/hugh/projectflow/internal/testutil"
	"github.com/hugh/projectflow/pkg/util"
)

type route struct {
	method string
	suffix string
	status int
	body   string
	// bodyFn, when set, is evaluated per request instead of body.
	bodyFn func() string
}

type testEnv struct {
	*testutil.TestSetup
	Router http.Handler
}

type envOption func(*api.RouterConfig)

func withGoogle(factory *google.Factory) envOption {
	return func(cfg *api.RouterConfig) { cfg.Google = factory }
}

func withArchiver(a archive.Archiver) envOption {
	return func(cfg *api.RouterConfig) { cfg.Archiver = a }
}

// setupRouter builds the full API on a fresh database with dev-mode sign-in
// and manual billing.
func setupRouter(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	tc := testutil.NewTestContext(t)
	logger := util.NopLogger()

	backend, err := auth.NewBackend("dev", tc.Store, nil, "")
	if err != nil {
		t.Fatalf("failed to create auth backend: %v", err)
	}
	provider, err := billing.New(billing.ProviderManual)
	if err != nil {
		t.Fatalf("failed to create billing provider: %v", err)
	}
	checker := access.NewChecker(tc.Store)

	cfg := api.RouterConfig{
		DB:          tc.DB,
		Logger:      logger,
		Store:       tc.Store,
		Sessions:    tc.Sessions,
		AuthService: auth.NewService(backend, auth.NewGoogleOAuth(), tc.Store, logger),
		Access:      checker,
		Invitations: invitations.NewService(tc.Store, checker, nil, "http://localhost:5000", logger),
		Archiver:    archive.NopArchiver{},
		Billing:     provider,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testEnv{TestSetup: tc, Router: api.NewRouter(cfg)}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, method, path, body, cookie))
	return rr
}

// fakeGoogle serves canned Google API responses, matched on method and path
// suffix.
func fakeGoogle(t *testing.T, routes ...route) *google.Factory {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, rt := range routes {
			if r.Method == rt.method && strings.HasSuffix(r.URL.Path, rt.suffix) {
				w.Header().Set("Content-Type", "application/json")
				status := rt.status
				if status == 0 {
					status = http.StatusOK
				}
				w.WriteHeader(status)
				body := rt.body
				if rt.bodyFn != nil {
					body = rt.bodyFn()
				}
				_, _ = w.Write([]byte(body))
				return
			}
		}
		t.Logf("unexpected google call: %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	return google.NewFactory(google.FactoryConfig{
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	}, util.NopLogger())
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}
