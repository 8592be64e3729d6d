package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body interface{}, headers map[string]string) error
	POST(path string, body interface{}, headers map[string]string) error
	LastStatus() int
	LastBody() []byte
	LastHeader() http.Header
	Admin() (string, string)
}

const sessionCookie = "admin_session"

// RegisterSteps registers admin login, logout and lockout steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I am logged in as the admin$`, steps.loggedInAsAdmin)
	ctx.Step(`^I log in with username "([^"]*)" and password "([^"]*)"$`, steps.loginWith)
	ctx.Step(`^I log in with the wrong password from IP "([^"]*)"$`, steps.wrongPasswordFromIP)
	ctx.Step(`^I fail to log in (\d+) times from IP "([^"]*)"$`, steps.failLoginTimes)
	ctx.Step(`^I log out$`, steps.logout)

	ctx.Step(`^the response should set the session cookie$`, steps.sessionCookieSet)
	ctx.Step(`^the response should clear the session cookie$`, steps.sessionCookieCleared)
	ctx.Step(`^the response should include a Retry-After header$`, steps.retryAfterPresent)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) login(username, password string, headers map[string]string) error {
	body := map[string]string{"username": username, "password": password}
	return s.tc.POST("/api/admin/auth", body, headers)
}

func (s *authSteps) loggedInAsAdmin(ctx context.Context) error {
	username, password := s.tc.Admin()
	if password == "" {
		return godog.ErrPending
	}
	if err := s.login(username, password, nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return fmt.Errorf("admin login returned %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *authSteps) loginWith(ctx context.Context, username, password string) error {
	return s.login(username, password, nil)
}

func (s *authSteps) wrongPasswordFromIP(ctx context.Context, ip string) error {
	username, _ := s.tc.Admin()
	return s.login(username, "definitely-not-the-password", map[string]string{"X-Forwarded-For": ip})
}

func (s *authSteps) failLoginTimes(ctx context.Context, n int, ip string) error {
	for i := 0; i < n; i++ {
		if err := s.wrongPasswordFromIP(ctx, ip); err != nil {
			return err
		}
		if s.tc.LastStatus() != http.StatusUnauthorized {
			return fmt.Errorf("attempt %d returned %d, expected 401", i+1, s.tc.LastStatus())
		}
	}
	return nil
}

func (s *authSteps) logout(ctx context.Context) error {
	return s.tc.Request(http.MethodDelete, "/api/admin/auth", nil, nil)
}

func (s *authSteps) setCookie() (string, bool) {
	for _, line := range s.tc.LastHeader().Values("Set-Cookie") {
		if strings.HasPrefix(line, sessionCookie+"=") {
			return line, true
		}
	}
	return "", false
}

func (s *authSteps) sessionCookieSet(ctx context.Context) error {
	line, ok := s.setCookie()
	if !ok {
		return fmt.Errorf("no %s cookie set", sessionCookie)
	}
	if !strings.Contains(line, "HttpOnly") {
		return fmt.Errorf("session cookie is not HttpOnly: %s", line)
	}
	return nil
}

func (s *authSteps) sessionCookieCleared(ctx context.Context) error {
	line, ok := s.setCookie()
	if !ok {
		return fmt.Errorf("no %s cookie set", sessionCookie)
	}
	if !strings.Contains(line, "Max-Age=0") {
		return fmt.Errorf("session cookie not expired: %s", line)
	}
	return nil
}

func (s *authSteps) retryAfterPresent(ctx context.Context) error {
	if s.tc.LastHeader().Get("Retry-After") == "" {
		return fmt.Errorf("missing Retry-After header")
	}
	return nil
}
