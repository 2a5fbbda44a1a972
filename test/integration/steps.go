package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/identity-in-go/pkg/identity/policy/bearer"
	"github.com/doodlesbykumbi/identity-in-go/pkg/model"
	"github.com/doodlesbykumbi/identity-in-go/pkg/pool"
	"github.com/doodlesbykumbi/identity-in-go/pkg/server/middleware"
	gormstore "github.com/doodlesbykumbi/identity-in-go/pkg/server/store/gorm"
)

// StepsContext holds the per-scenario state of the feature steps
type StepsContext struct {
	tc *TestContext

	token        string
	lastResponse *http.Response
	lastBody     []byte

	// held is a checkout kept open to exhaust the pool
	held    pool.Resource
	restore func()
}

// NewStepsContext creates the step state for one scenario
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{tc: tc}
}

// RegisterSteps registers all step definitions with the scenario context
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s.token = ""
		s.lastResponse = nil
		s.lastBody = nil
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		s.releasePool()
		return ctx, nil
	})

	sc.Step(`^the identity server is running$`, s.theIdentityServerIsRunning)
	sc.Step(`^a user "([^"]*)" exists in account "([^"]*)"$`, s.aUserExists)
	sc.Step(`^I am identified as "([^"]*)"$`, s.iAmIdentifiedAs)
	sc.Step(`^I have no identity$`, s.iHaveNoIdentity)
	sc.Step(`^I present the token "([^"]*)"$`, s.iPresentTheToken)
	sc.Step(`^I send a GET request to "([^"]*)"$`, s.iSendAGETRequestTo)
	sc.Step(`^I send a DELETE request to "([^"]*)"$`, s.iSendADELETERequestTo)
	sc.Step(`^I send a PATCH request to "([^"]*)" with body:$`, s.iSendAPATCHRequestWithBody)
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, s.theJSONFieldShouldBe)
	sc.Step(`^the response should carry a new token for "([^"]*)"$`, s.theResponseShouldCarryANewTokenFor)
	sc.Step(`^the response should not carry a token$`, s.theResponseShouldNotCarryAToken)
	sc.Step(`^the response should mark the token revoked$`, s.theResponseShouldMarkTheTokenRevoked)
	sc.Step(`^the response should not report a commit error$`, s.theResponseShouldNotReportACommitError)
	sc.Step(`^the connection pool is exhausted$`, s.theConnectionPoolIsExhausted)
}

func (s *StepsContext) theIdentityServerIsRunning() error {
	resp, err := s.tc.HTTPClient.Get(s.tc.ServerURL + "/status")
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200 from /status, got %d", resp.StatusCode)
	}
	return nil
}

func (s *StepsContext) aUserExists(login, account string) error {
	users := gormstore.NewUsersStore(s.tc.DB)
	ctx := context.Background()

	if _, err := users.FetchUser(ctx, model.RoleID(account, login)); err == nil {
		return nil
	}
	return users.CreateUser(ctx, &model.User{
		Account:     account,
		Login:       login,
		DisplayName: login,
	})
}

func (s *StepsContext) iAmIdentifiedAs(roleID string) error {
	token, err := s.tc.Tokens.Issue(context.Background(), roleID)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	s.token = token
	return nil
}

func (s *StepsContext) iHaveNoIdentity() error {
	s.token = ""
	return nil
}

func (s *StepsContext) iPresentTheToken(token string) error {
	s.token = token
	return nil
}

func (s *StepsContext) iSendAGETRequestTo(path string) error {
	return s.doRequest(http.MethodGet, path, "")
}

func (s *StepsContext) iSendADELETERequestTo(path string) error {
	return s.doRequest(http.MethodDelete, path, "")
}

func (s *StepsContext) iSendAPATCHRequestWithBody(path string, body *godog.DocString) error {
	return s.doRequest(http.MethodPatch, path, body.Content)
}

func (s *StepsContext) doRequest(method, path, body string) error {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.tc.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	s.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	s.lastResponse = resp
	return nil
}

func (s *StepsContext) theResponseStatusShouldBe(expected int) error {
	if s.lastResponse == nil {
		return fmt.Errorf("no response received")
	}
	if s.lastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.lastResponse.StatusCode, string(s.lastBody))
	}
	return nil
}

func (s *StepsContext) theJSONFieldShouldBe(field, expected string) error {
	var body map[string]interface{}
	if err := json.Unmarshal(s.lastBody, &body); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, ok := body[field]
	if !ok {
		return fmt.Errorf("field %q not found in %s", field, string(s.lastBody))
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected %q to be %q, got %q", field, expected, fmt.Sprint(value))
	}
	return nil
}

func (s *StepsContext) theResponseShouldCarryANewTokenFor(roleID string) error {
	token := s.lastResponse.Header.Get(bearer.TokenHeader)
	if token == "" {
		return fmt.Errorf("expected %s header to be set", bearer.TokenHeader)
	}

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	subject, ok, err := s.tc.Tokens.Resolve(req)
	if err != nil || !ok {
		return fmt.Errorf("issued token does not verify: %v", err)
	}
	if subject != roleID {
		return fmt.Errorf("expected token for %q, got %q", roleID, subject)
	}
	return nil
}

func (s *StepsContext) theResponseShouldNotCarryAToken() error {
	if token := s.lastResponse.Header.Get(bearer.TokenHeader); token != "" {
		return fmt.Errorf("expected no %s header, got %q", bearer.TokenHeader, token)
	}
	return nil
}

func (s *StepsContext) theResponseShouldMarkTheTokenRevoked() error {
	if got := s.lastResponse.Header.Get(bearer.RevokedHeader); got != "true" {
		return fmt.Errorf("expected %s to be \"true\", got %q", bearer.RevokedHeader, got)
	}
	return nil
}

func (s *StepsContext) theResponseShouldNotReportACommitError() error {
	if got := s.lastResponse.Header.Get(middleware.CommitErrorHeader); got != "" {
		return fmt.Errorf("unexpected commit error header: %q", got)
	}
	return nil
}

// theConnectionPoolIsExhausted shrinks the server pool to a single
// connection and holds it, so the next identity request times out on checkout.
func (s *StepsContext) theConnectionPoolIsExhausted() error {
	if s.tc.InlineServer == nil {
		return godog.ErrPending
	}

	p := s.tc.InlineServer.Pool
	original := pool.OptionsFromConfig(s.tc.InlineServer.Config)
	p.Apply(pool.Options{
		MaxOpen:         1,
		MaxIdle:         1,
		ConnMaxLifetime: original.ConnMaxLifetime,
		CheckoutTimeout: 200 * time.Millisecond,
	})

	held, err := p.Checkout(context.Background())
	if err != nil {
		p.Apply(original)
		return fmt.Errorf("failed to hold a connection: %w", err)
	}
	s.held = held
	s.restore = func() { p.Apply(original) }
	return nil
}

func (s *StepsContext) releasePool() {
	if s.held != nil {
		_ = s.held.Release()
		s.held = nil
	}
	if s.restore != nil {
		s.restore()
		s.restore = nil
	}
}
