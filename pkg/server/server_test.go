package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/motorbench/BenchWorker/pkg/api"
	"github.com/motorbench/BenchWorker/pkg/service"
)

type fakeUI struct{}

func (fakeUI) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	return nil, nil
}

// fakeAPI records every request handed to it.
// When requestErr is set, every request returns that error instead.
type fakeAPI struct {
	mutex      sync.Mutex
	requestErr error
	powers     []api.PowerState
	outputs    []api.Output
	motors     []api.Motor
	discovered []string
	status     service.Status
}

var _ API = (*fakeAPI)(nil)

func (a *fakeAPI) SetPowerRequest(ctx context.Context, msg *api.PowerState) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.requestErr != nil {
		return a.requestErr
	}
	a.powers = append(a.powers, *msg)
	return nil
}

func (a *fakeAPI) SetOutputRequest(ctx context.Context, msg *api.Output) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.requestErr != nil {
		return a.requestErr
	}
	a.outputs = append(a.outputs, *msg)
	return nil
}

func (a *fakeAPI) SetMotorRequest(ctx context.Context, msg *api.Motor) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.requestErr != nil {
		return a.requestErr
	}
	a.motors = append(a.motors, *msg)
	return nil
}

func (a *fakeAPI) DiscoverHardware(ctx context.Context) []string {
	return a.discovered
}

func (a *fakeAPI) GetStatus() service.Status {
	return a.status
}

func newTestServer(t *testing.T, fake *fakeAPI) *Server {
	t.Helper()
	srv, err := New(Config{}, zerolog.Nop(), fakeUI{}, fake)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv
}

// invoke calls the given handler with a request carrying the given
// JSON body (when non-empty).
func invoke(t *testing.T, handler echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, handler(c)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})
	rec, err := invoke(t, srv.handleHealth, http.MethodGet, "/health", "")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK\n" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}
}

func TestHandleSetOutput(t *testing.T) {
	fake := &fakeAPI{}
	srv := newTestServer(t, fake)
	rec, err := invoke(t, srv.handleSetOutput, http.MethodPost, "/api/v1/output",
		`{"address":"mod/led","request":{"value":1}}`)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if len(fake.outputs) != 1 {
		t.Fatalf("Expected 1 output request, got %d", len(fake.outputs))
	}
	msg := fake.outputs[0]
	if msg.Address != api.ObjectAddress("mod/led") || msg.GetRequest().GetValue() != 1 {
		t.Errorf("Unexpected output request %v", msg)
	}
}

func TestHandleSetMotor(t *testing.T) {
	fake := &fakeAPI{}
	srv := newTestServer(t, fake)
	rec, err := invoke(t, srv.handleSetMotor, http.MethodPost, "/api/v1/motor",
		`{"address":"mod/fan","request":{"duty":200}}`)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if len(fake.motors) != 1 {
		t.Fatalf("Expected 1 motor request, got %d", len(fake.motors))
	}
	if fake.motors[0].GetRequest().GetDuty() != 200 {
		t.Errorf("Unexpected motor request %v", fake.motors[0])
	}
}

func TestHandleSetPower(t *testing.T) {
	fake := &fakeAPI{}
	srv := newTestServer(t, fake)
	rec, err := invoke(t, srv.handleSetPower, http.MethodPost, "/api/v1/power",
		`{"enabled":true}`)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if len(fake.powers) != 1 || !fake.powers[0].Enabled {
		t.Errorf("Unexpected power requests %v", fake.powers)
	}
}

func TestHandleSetOutputInvalidArgument(t *testing.T) {
	fake := &fakeAPI{requestErr: api.InvalidArgument("no such object")}
	srv := newTestServer(t, fake)
	_, err := invoke(t, srv.handleSetOutput, http.MethodPost, "/api/v1/output",
		`{"address":"mod/nope","request":{"value":1}}`)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("Expected an HTTP error, got %v", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", he.Code)
	}
}

func TestHandleSetOutputUnavailable(t *testing.T) {
	fake := &fakeAPI{requestErr: context.DeadlineExceeded}
	srv := newTestServer(t, fake)
	_, err := invoke(t, srv.handleSetOutput, http.MethodPost, "/api/v1/output",
		`{"address":"mod/led","request":{"value":1}}`)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("Expected an HTTP error, got %v", err)
	}
	if he.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", he.Code)
	}
}

func TestHandleSetOutputBadBody(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})
	_, err := invoke(t, srv.handleSetOutput, http.MethodPost, "/api/v1/output", `not json`)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("Expected an HTTP error, got %v", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", he.Code)
	}
}

func TestHandleGetStatus(t *testing.T) {
	fake := &fakeAPI{status: service.Status{
		ModuleID:       "bench1",
		ProgramVersion: "test",
		StartedAt:      time.Now(),
	}}
	srv := newTestServer(t, fake)
	rec, err := invoke(t, srv.handleGetStatus, http.MethodGet, "/api/v1/status", "")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	var status service.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.ModuleID != "bench1" || status.ProgramVersion != "test" {
		t.Errorf("Unexpected status %v", status)
	}
}

func TestHandleDiscover(t *testing.T) {
	fake := &fakeAPI{discovered: []string{"0x20", "0x40"}}
	srv := newTestServer(t, fake)
	rec, err := invoke(t, srv.handleDiscover, http.MethodGet, "/api/v1/discover", "")
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	var result map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if addrs := result["addresses"]; len(addrs) != 2 || addrs[0] != "0x20" {
		t.Errorf("Unexpected addresses %v", addrs)
	}
}
