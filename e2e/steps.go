package e2e

import (
	"github.com/cucumber/godog"

	"facecards/e2e/steps/auth"
	"facecards/e2e/steps/common"
	"facecards/e2e/steps/refresh"
	"facecards/e2e/steps/roster"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	roster.RegisterSteps(ctx, tc)
	refresh.RegisterSteps(ctx, tc)
}
