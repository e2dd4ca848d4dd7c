package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"authrelay/internal/config"
)

const testSecret = "GOCSPX-super-secret-value"

func testServer(t *testing.T, tokenURL string) *http.Server {
	t.Helper()
	creds := &config.Credentials{
		ClientID:     "proxy-client-id",
		ClientSecret: testSecret,
		TokenURL:     tokenURL,
	}
	conf := &config.ProxyConfig{Server: config.ProxyServerConfig{Addr: ":8888"}}
	api := newAPI(creds, &http.Client{Timeout: 5 * time.Second})
	registry := prometheus.NewRegistry()
	return newServer(conf, api, registry, registry)
}

func postToken(server *http.Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	g := NewWithT(t)

	server := testServer(t, "http://provider.invalid/token")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	g.Expect(rec.Code).To(Equal(http.StatusOK))
	g.Expect(rec.Body.String()).To(MatchJSON(`{"status":"healthy"}`))
}

func TestMetricsEndpoint(t *testing.T) {
	g := NewWithT(t)

	server := testServer(t, "http://provider.invalid/token")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	g.Expect(rec.Code).To(Equal(http.StatusOK))
}

func TestTokenRelay(t *testing.T) {
	t.Run("injects the secret and relays the provider response", func(t *testing.T) {
		g := NewWithT(t)

		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.Expect(r.Method).To(Equal(http.MethodPost))
			g.Expect(r.Header.Get("Content-Type")).To(Equal("application/x-www-form-urlencoded"))
			g.Expect(r.ParseForm()).To(Succeed())
			g.Expect(r.PostForm.Get("grant_type")).To(Equal("authorization_code"))
			g.Expect(r.PostForm.Get("code")).To(Equal("ABC123"))
			g.Expect(r.PostForm.Get("code_verifier")).To(Equal("verifier-V"))
			g.Expect(r.PostForm.Get("client_id")).To(Equal("caller-client-id"))
			g.Expect(r.PostForm.Get("client_secret")).To(Equal(testSecret))
			w.Write([]byte(`{"access_token":"AT1","token_type":"Bearer","expires_in":3600}`))
		}))
		defer provider.Close()

		server := testServer(t, provider.URL)

		rec := postToken(server, `{
			"grant_type": "authorization_code",
			"code": "ABC123",
			"redirect_uri": "http://localhost:8080/callback",
			"client_id": "caller-client-id",
			"code_verifier": "verifier-V"
		}`)

		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"access_token":"AT1","token_type":"Bearer","expires_in":3600}`))
	})

	t.Run("defaults the client_id when the caller omits it", func(t *testing.T) {
		g := NewWithT(t)

		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.Expect(r.ParseForm()).To(Succeed())
			g.Expect(r.PostForm.Get("client_id")).To(Equal("proxy-client-id"))
			w.Write([]byte(`{}`))
		}))
		defer provider.Close()

		server := testServer(t, provider.URL)

		rec := postToken(server, `{"grant_type": "refresh_token", "refresh_token": "RT1"}`)
		g.Expect(rec.Code).To(Equal(http.StatusOK))
	})

	t.Run("relays provider errors verbatim", func(t *testing.T) {
		g := NewWithT(t)

		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Code was already redeemed."}`))
		}))
		defer provider.Close()

		server := testServer(t, provider.URL)

		rec := postToken(server, `{"grant_type": "authorization_code", "code": "USED"}`)

		g.Expect(rec.Code).To(Equal(http.StatusBadRequest))
		g.Expect(rec.Body.String()).To(MatchJSON(`{"error":"invalid_grant","error_description":"Code was already redeemed."}`))
	})

	t.Run("malformed body yields a synthesized 500-class error", func(t *testing.T) {
		g := NewWithT(t)

		server := testServer(t, "http://provider.invalid/token")

		rec := postToken(server, "this is not json")

		g.Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		var body map[string]string
		g.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		g.Expect(body["error"]).To(Equal("proxy_error"))
		g.Expect(body["error_description"]).NotTo(ContainSubstring(testSecret))
	})

	t.Run("missing grant_type is rejected locally", func(t *testing.T) {
		g := NewWithT(t)

		server := testServer(t, "http://provider.invalid/token")

		rec := postToken(server, `{"code": "ABC123"}`)

		g.Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		g.Expect(rec.Body.String()).To(ContainSubstring("grant_type must be set"))
	})

	t.Run("upstream network fault yields 502 without the secret", func(t *testing.T) {
		g := NewWithT(t)

		provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		provider.Close()

		server := testServer(t, provider.URL)

		rec := postToken(server, `{"grant_type": "authorization_code", "code": "ABC123"}`)

		g.Expect(rec.Code).To(Equal(http.StatusBadGateway))
		g.Expect(rec.Body.String()).To(ContainSubstring("proxy_error"))
		g.Expect(rec.Body.String()).NotTo(ContainSubstring(testSecret))
	})

	t.Run("rejects non-POST methods", func(t *testing.T) {
		g := NewWithT(t)

		server := testServer(t, "http://provider.invalid/token")

		req := httptest.NewRequest(http.MethodGet, "/token", nil)
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	t.Run("unknown paths return 404", func(t *testing.T) {
		g := NewWithT(t)

		server := testServer(t, "http://provider.invalid/token")

		req := httptest.NewRequest(http.MethodGet, "/secrets", nil)
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
}

func TestSecretNeverLeaks(t *testing.T) {
	g := NewWithT(t)

	hook := logrustest.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.DebugLevel)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer provider.Close()

	server := testServer(t, provider.URL)

	responses := []*httptest.ResponseRecorder{
		postToken(server, `{"grant_type": "authorization_code", "code": "ABC123"}`),
		postToken(server, "garbage"),
	}
	for _, rec := range responses {
		g.Expect(rec.Body.String()).NotTo(ContainSubstring(testSecret))
	}

	for _, entry := range hook.AllEntries() {
		line, err := entry.String()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(line).NotTo(ContainSubstring(testSecret), fmt.Sprintf("log entry leaked the secret: %s", entry.Message))
	}
}
