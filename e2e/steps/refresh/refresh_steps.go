package refresh

import (
	"context"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body interface{}, headers map[string]string) error
	POST(path string, body interface{}, headers map[string]string) error
	Cron() string
}

// RegisterSteps registers preview token and cron sweep steps. Steps that
// reach the upstream source are left to environments with a stubbed model.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &refreshSteps{tc: tc}

	ctx.Step(`^I apply the preview token "([^"]*)"$`, steps.applyToken)
	ctx.Step(`^I inspect the preview token "([^"]*)"$`, steps.inspectToken)
	ctx.Step(`^I call the "([^"]*)" sweep without a bearer token$`, steps.sweepAnonymous)
	ctx.Step(`^I call the "([^"]*)" sweep with bearer "([^"]*)"$`, steps.sweepWithBearer)
}

type refreshSteps struct {
	tc TestContext
}

func (s *refreshSteps) applyToken(ctx context.Context, token string) error {
	return s.tc.POST("/api/admin/apply-refresh", map[string]string{"previewToken": token}, nil)
}

func (s *refreshSteps) inspectToken(ctx context.Context, token string) error {
	return s.tc.POST("/api/admin/preview-refresh/inspect", map[string]string{"previewToken": token}, nil)
}

func (s *refreshSteps) sweepAnonymous(ctx context.Context, kind string) error {
	return s.tc.Request(http.MethodGet, "/api/cron/"+kind, nil, nil)
}

func (s *refreshSteps) sweepWithBearer(ctx context.Context, kind, secret string) error {
	return s.tc.Request(http.MethodGet, "/api/cron/"+kind, nil, map[string]string{
		"Authorization": "Bearer " + secret,
	})
}
