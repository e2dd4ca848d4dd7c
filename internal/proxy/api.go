package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"authrelay/internal/config"
	"authrelay/internal/logging"
)

const (
	pathHealth  = "/health"
	pathMetrics = "/metrics"
	pathToken   = "/token"
)

func newAPI(creds *config.Credentials, upstream *http.Client) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(pathToken, func(w http.ResponseWriter, r *http.Request) {
		l := logging.FromRequest(r)

		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			l.WithError(err).Error("failed to parse relay request body as JSON")
			respondProxyError(w, http.StatusInternalServerError, "request body is not a JSON object")
			return
		}
		grantType := params["grant_type"]
		if grantType == "" {
			l.Error("relay request is missing grant_type")
			respondProxyError(w, http.StatusInternalServerError, "grant_type must be set")
			return
		}

		// The only mutation the proxy performs: merge in the secret it
		// alone holds. The secret never travels back to the caller.
		params["client_secret"] = creds.ClientSecret
		if params["client_id"] == "" {
			params["client_id"] = creds.ClientID
		}

		form := url.Values{}
		for k, v := range params {
			form.Set(k, v)
		}

		l = l.WithField("grantType", grantType)
		l.Info("relaying token request to the provider")

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			creds.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			l.WithError(err).Error("failed to build upstream token request")
			respondProxyError(w, http.StatusInternalServerError, "failed to build upstream request")
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := upstream.Do(req)
		if err != nil {
			// The transport error may mention the upstream URL but never
			// the secret; still, callers get a generic description and the
			// detail stays in the proxy's own log.
			l.WithError(err).Error("upstream token request failed")
			respondProxyError(w, http.StatusBadGateway, "upstream token request failed")
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			l.WithError(err).Error("failed to read upstream token response")
			respondProxyError(w, http.StatusBadGateway, "failed to read upstream response")
			return
		}

		// Relay the provider's response verbatim, success or error: the
		// caller must see the real cause, not a rewritten one.
		if resp.StatusCode != http.StatusOK {
			l.WithField("status", resp.StatusCode).Info("provider returned an error")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(body); err != nil {
			l.WithError(err).Error("failed to write relay response")
		}
	})

	return mux
}

func respondProxyError(w http.ResponseWriter, status int, description string) {
	respondJSON(w, status, map[string]string{
		"error":             "proxy_error",
		"error_description": description,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("failed to write response")
	}
}
