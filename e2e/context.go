package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"
)

// TestContext carries the HTTP client and the last response across the
// steps of one scenario.
type TestContext struct {
	BaseURL       string
	AdminUsername string
	AdminPassword string
	CronSecret    string

	client     *http.Client
	lastStatus int
	lastBody   []byte
	lastHeader http.Header
	vars       map[string]string
}

// NewTestContext reads the target server and credentials from the environment.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:       envOr("E2E_BASE_URL", "http://localhost:8080"),
		AdminUsername: envOr("E2E_ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("E2E_ADMIN_PASSWORD"),
		CronSecret:    os.Getenv("E2E_CRON_SECRET"),
	}
}

// Reset gives the scenario a fresh cookie jar and variable set.
func (tc *TestContext) Reset() {
	jar, _ := cookiejar.New(nil)
	tc.client = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeader = nil
	tc.vars = map[string]string{}
}

func (tc *TestContext) Request(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Request(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) POST(path string, body interface{}, headers map[string]string) error {
	return tc.Request(http.MethodPost, path, body, headers)
}

func (tc *TestContext) LastStatus() int         { return tc.lastStatus }
func (tc *TestContext) LastBody() []byte        { return tc.lastBody }
func (tc *TestContext) LastHeader() http.Header { return tc.lastHeader }

// GetResponseField reads a top-level field of a JSON object response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w (%s)", err, tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

// Save stores a value that later paths can reference as {name}.
func (tc *TestContext) Save(name, value string) { tc.vars[name] = value }

// Expand replaces {name} placeholders with saved values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func (tc *TestContext) Admin() (string, string) { return tc.AdminUsername, tc.AdminPassword }
func (tc *TestContext) Cron() string            { return tc.CronSecret }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
