package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Request(method, path string, body interface{}, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	LastStatus() int
	LastBody() []byte
	Save(name, value string)
}

// RegisterSteps registers leader CRUD steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rosterSteps{tc: tc}

	ctx.Step(`^I create the leader "([^"]*)" titled "([^"]*)" in category "([^"]*)"$`, steps.createLeader)
	ctx.Step(`^the public roster should include "([^"]*)"$`, steps.publicIncludes)
	ctx.Step(`^the public roster should not include "([^"]*)"$`, steps.publicExcludes)
}

type rosterSteps struct {
	tc TestContext
}

type leader struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *rosterSteps) createLeader(ctx context.Context, name, title, category string) error {
	body := map[string]interface{}{
		"name":         name,
		"title":        title,
		"photoUrl":     "https://example.mil/photos/e2e.jpg",
		"category":     category,
		"organization": "Department of Defense",
	}
	if err := s.tc.Request(http.MethodPost, "/api/admin/leaders", body, nil); err != nil {
		return err
	}
	if s.tc.LastStatus() != http.StatusCreated {
		return fmt.Errorf("create returned %d: %s", s.tc.LastStatus(), s.tc.LastBody())
	}
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Save("leaderId", fmt.Sprint(id))
	return nil
}

func (s *rosterSteps) publicNames() (map[string]bool, error) {
	if err := s.tc.GET("/api/leaders", nil); err != nil {
		return nil, err
	}
	if s.tc.LastStatus() != http.StatusOK {
		return nil, fmt.Errorf("public roster returned %d", s.tc.LastStatus())
	}
	var leaders []leader
	if err := json.Unmarshal(s.tc.LastBody(), &leaders); err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(leaders))
	for _, l := range leaders {
		names[l.Name] = true
	}
	return names, nil
}

func (s *rosterSteps) publicIncludes(ctx context.Context, name string) error {
	names, err := s.publicNames()
	if err != nil {
		return err
	}
	if !names[name] {
		return fmt.Errorf("%q missing from public roster", name)
	}
	return nil
}

func (s *rosterSteps) publicExcludes(ctx context.Context, name string) error {
	names, err := s.publicNames()
	if err != nil {
		return err
	}
	if names[name] {
		return fmt.Errorf("%q still on public roster", name)
	}
	return nil
}
