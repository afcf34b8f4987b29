package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asanapdf/internal/api"
	"asanapdf/internal/auth"
	"asanapdf/internal/logger"
	"asanapdf/internal/render"
	"asanapdf/internal/service"
	"asanapdf/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubExchanger struct {
	mu   sync.Mutex
	resp *auth.TokenResponse
	err  error

	code, verifier string
}

func (s *stubExchanger) Exchange(ctx context.Context, code, verifier string) (*auth.TokenResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code, s.verifier = code, verifier
	return s.resp, s.err
}

func (s *stubExchanger) set(resp *auth.TokenResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resp, s.err = resp, err
}

func (s *stubExchanger) received() (code, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.verifier
}

type failingBackend struct{}

func (failingBackend) Open() (render.Canvas, error) {
	return nil, errors.New("font missing")
}

type fixture struct {
	server    *httptest.Server
	svc       *testutil.FakeService
	exchanger *stubExchanger
	signer    *auth.StateSigner

	mu     sync.Mutex
	tokens []string
}

func (f *fixture) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func newFixture(t *testing.T, mutate func(*api.Options)) *fixture {
	t.Helper()

	signer, err := auth.NewStateSigner(testSecret)
	require.NoError(t, err)

	f := &fixture{
		svc:       testutil.NewFakeService(),
		exchanger: &stubExchanger{resp: &auth.TokenResponse{AccessToken: "tok-123", TokenType: "bearer"}},
		signer:    signer,
	}
	f.svc.AddProject("p1", "Launch")
	f.svc.AddProject("p2", "Marketing")
	f.svc.AddTask("p1", service.Task{
		ID:   "t1",
		Name: "Write copy",
		CustomFields: []service.CustomField{
			{ID: "cf1", Name: "Priority", Type: "enum", Value: &service.FieldValue{Kind: service.KindEnum, Enum: "High"}},
		},
	})
	f.svc.AddTask("p1", service.Task{ID: "t2", Name: "Review"})

	opts := api.Options{
		Settings: auth.Settings{
			ClientID:    "client-1",
			RedirectURL: "http://localhost:8085/auth/callback",
			AuthURL:     "https://app.asana.com/-/oauth_authorize",
			TokenURL:    "https://app.asana.com/-/oauth_token",
		},
		Exchanger: f.exchanger,
		Signer:    signer,
		Services: func(ctx context.Context, token string) (service.Service, error) {
			f.mu.Lock()
			f.tokens = append(f.tokens, token)
			f.mu.Unlock()
			return f.svc, nil
		},
		BannerTitle: "Acme",
		Logger:      logger.Discard(),
		Now:         func() time.Time { return time.UnixMilli(1700000000000) },
	}
	if mutate != nil {
		mutate(&opts)
	}

	f.server = httptest.NewServer(api.New(opts).Handler())
	t.Cleanup(f.server.Close)
	return f
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func (f *fixture) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: noRedirect}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) post(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(api.TraceHeader))
}

func TestLogin_RedirectsWithSignedState(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/auth/login", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.asana.com", loc.Host)
	q := loc.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "default", q.Get("scope"))
	assert.Equal(t, "http://localhost:8085/auth/callback", q.Get("redirect_uri"))
	assert.NoError(t, f.signer.Verify(q.Get("state")))
}

func TestLogin_MissingClientID(t *testing.T) {
	f := newFixture(t, func(o *api.Options) { o.Settings.ClientID = "" })

	resp := f.get(t, "/auth/login", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "OAuth client is not configured", decodeError(t, resp).Error)
}

func TestCallback_Success(t *testing.T) {
	f := newFixture(t, nil)
	state, err := f.signer.Issue()
	require.NoError(t, err)

	resp := f.get(t, "/auth/callback?code=abc&state="+url.QueryEscape(state), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	page := buf.String()
	assert.Contains(t, page, `localStorage.setItem("asana_access_token", "tok-123")`)
	code, _ := f.exchanger.received()
	assert.Equal(t, "abc", code)
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name   string
		query  func(f *fixture) string
		setup  func(f *fixture)
		reason string
	}{
		{
			name:   "provider error",
			query:  func(*fixture) string { return "error=access_denied" },
			reason: "access_denied",
		},
		{
			name:   "no code",
			query:  func(*fixture) string { return "state=x" },
			reason: "no_code",
		},
		{
			name:   "bad state",
			query:  func(*fixture) string { return "code=abc&state=forged" },
			reason: "invalid_state",
		},
		{
			name: "exchange failed",
			query: func(f *fixture) string {
				s, _ := f.signer.Issue()
				return "code=abc&state=" + url.QueryEscape(s)
			},
			setup:  func(f *fixture) { f.exchanger.set(nil, &auth.TokenExchangeError{Status: 400}) },
			reason: "exchange_failed",
		},
		{
			name: "no token",
			query: func(f *fixture) string {
				s, _ := f.signer.Issue()
				return "code=abc&state=" + url.QueryEscape(s)
			},
			setup:  func(f *fixture) { f.exchanger.set(&auth.TokenResponse{}, nil) },
			reason: "no_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.setup != nil {
				tt.setup(f)
			}
			resp := f.get(t, "/auth/callback?"+tt.query(f), "")
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/?error="+tt.reason, resp.Header.Get("Location"))
		})
	}
}

func TestExchange_Success(t *testing.T) {
	f := newFixture(t, nil)
	verifier := strings.Repeat("v", 43)

	resp := f.post(t, "/api/auth/asana", "", map[string]string{"code": "abc", "code_verifier": verifier})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body auth.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tok-123", body.AccessToken)
	code, gotVerifier := f.exchanger.received()
	assert.Equal(t, "abc", code)
	assert.Equal(t, verifier, gotVerifier)
}

func TestExchange_Errors(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.post(t, "/api/auth/asana", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("provider rejects", func(t *testing.T) {
		f := newFixture(t, nil)
		f.exchanger.set(nil, &auth.TokenExchangeError{Status: 400, Reason: "invalid_grant"})
		resp := f.post(t, "/api/auth/asana", "", map[string]string{"code": "abc"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Failed to exchange code for token", decodeError(t, resp).Error)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.exchanger.set(nil, &auth.TokenExchangeError{Err: errors.New("dial tcp: refused")})
		resp := f.post(t, "/api/auth/asana", "", map[string]string{"code": "abc"})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Failed to exchange code for token", decodeError(t, resp).Error)
	})

	t.Run("no client secret", func(t *testing.T) {
		f := newFixture(t, func(o *api.Options) { o.Exchanger = nil })
		resp := f.post(t, "/api/auth/asana", "", map[string]string{"code": "abc"})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, decodeError(t, resp).Error, "secret")
	})
}

func TestProjects(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/api/projects?q=mark", "tok-123")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.ProjectsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Projects, 1)
	assert.Equal(t, "p2", body.Projects[0].ID)
	assert.Equal(t, []string{"tok-123"}, f.seenTokens())
}

func TestProjects_RequiresBearer(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/api/projects", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic abc")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Empty(t, f.seenTokens())
}

func TestProjects_UpstreamErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&service.UpstreamError{Status: 401}, http.StatusUnauthorized},
		{&service.UpstreamError{Status: 500}, http.StatusBadGateway},
		{&service.NetworkError{Err: errors.New("timeout")}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		f := newFixture(t, nil)
		f.svc.ListProjectsErr = tt.err
		resp := f.get(t, "/api/projects", "tok")
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())
	}
}

func TestTasks(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/api/projects/p1/tasks", "tok")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.TasksResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tasks, 2)
	assert.Equal(t, "t1", body.Tasks[0].ID)
	require.Len(t, body.CustomFields, 1)
	assert.Equal(t, "Priority", body.CustomFields[0].Name)

	resp = f.get(t, "/api/projects/nope/tasks", "tok")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.post(t, "/api/export", "tok", api.ExportRequest{
		ProjectID:    "p1",
		TaskIDs:      []string{"t2", "t1", "t2"},
		Fields:       map[string]bool{"notes": false},
		CustomFields: map[string]bool{"Priority": false},
		Introduction: "Weekly report",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="asana-tasks-1700000000000.pdf"`, resp.Header.Get("Content-Disposition"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExport_BadRequests(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		body api.ExportRequest
	}{
		{"no tasks", api.ExportRequest{ProjectID: "p1"}},
		{"no project", api.ExportRequest{TaskIDs: []string{"t1"}}},
		{"unknown task", api.ExportRequest{ProjectID: "p1", TaskIDs: []string{"t9"}}},
		{"unknown field", api.ExportRequest{ProjectID: "p1", TaskIDs: []string{"t1"}, Fields: map[string]bool{"color": false}}},
		{"unknown custom field", api.ExportRequest{ProjectID: "p1", TaskIDs: []string{"t1"}, CustomFields: map[string]bool{"Effort": false}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.post(t, "/api/export", "tok", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestExport_RendererUnavailable(t *testing.T) {
	f := newFixture(t, func(o *api.Options) { o.Backend = failingBackend{} })

	resp := f.post(t, "/api/export", "tok", api.ExportRequest{ProjectID: "p1", TaskIDs: []string{"t1"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Document renderer unavailable", decodeError(t, resp).Error)
}
