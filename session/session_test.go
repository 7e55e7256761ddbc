package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jpitassi/silverpop/internal/observability"
	"github.com/jpitassi/silverpop/internal/testutil/testlog"
	"github.com/jpitassi/silverpop/markup"
	"github.com/jpitassi/silverpop/transport"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	okLogin = `<Envelope><Body><RESULT><SUCCESS>true</SUCCESS>` +
		`<SESSIONID>DC2A1B3C</SESSIONID><ORGANIZATION_ID>3f2a</ORGANIZATION_ID>` +
		`<SESSION_ENCODING>;jsessionid=DC2A1B3C</SESSION_ENCODING></RESULT></Body></Envelope>`
	badLogin = `<Envelope><Body><RESULT><SUCCESS>false</SUCCESS></RESULT><Fault><Request/>` +
		`<FaultCode/><FaultString>Invalid user name or password. Please try again.</FaultString>` +
		`<detail><error><errorid>140</errorid><module/><class>SP.API</class><method/></error></detail>` +
		`</Fault></Body></Envelope>`
	callFault = `<Envelope><Body><RESULT><SUCCESS>false</SUCCESS></RESULT><Fault>` +
		`<FaultString>List ID is invalid.</FaultString><detail><error><errorid>121</errorid></error></detail>` +
		`</Fault></Body></Envelope>`
)

type recorded struct {
	path string
	body string
}

// fakeAPI answers Login with loginDoc and every other request with callDoc,
// or a bare success envelope when callDoc is empty.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	loginDoc string
	callDoc  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	switch {
	case strings.Contains(string(body), "<Login>"):
		_, _ = io.WriteString(w, f.loginDoc)
	case f.callDoc != "":
		_, _ = io.WriteString(w, f.callDoc)
	default:
		_, _ = io.WriteString(w, "<Envelope><Body><RESULT><SUCCESS>true</SUCCESS></RESULT></Body></Envelope>")
	}
}

func (f *fakeAPI) snapshot() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newFakeServer(t *testing.T, api *fakeAPI) string {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv.URL + "/XMLAPI"
}

func TestNewStoresTokenAndPropagatesIt(t *testing.T) {
	testlog.Start(t)

	api := &fakeAPI{loginDoc: okLogin}
	endpoint := newFakeServer(t, api)

	s, err := New(context.Background(), Config{Endpoint: endpoint, Username: "u@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if s.Token() != "DC2A1B3C" {
		t.Fatalf("unexpected token: %q", s.Token())
	}
	if _, err := s.SendRaw(context.Background(), "<Envelope><Body><GetLists/></Body></Envelope>"); err != nil {
		t.Fatalf("send: %v", err)
	}

	reqs := api.snapshot()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].path != "/XMLAPI" {
		t.Fatalf("login must not carry a token: %q", reqs[0].path)
	}
	wantLogin := "<Envelope><Body><Login><USERNAME>u@example.com</USERNAME><PASSWORD>pw</PASSWORD></Login></Body></Envelope>"
	if reqs[0].body != wantLogin {
		t.Fatalf("unexpected login body: %s", reqs[0].body)
	}
	if reqs[1].path != "/XMLAPI;jsessionid=DC2A1B3C" {
		t.Fatalf("token not propagated: %q", reqs[1].path)
	}
}

func TestLoginFailures(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name       string
		poster     transport.PosterFunc
		wantReason error
		wantFault  *markup.Fault
	}{
		{
			name: "transport failure",
			poster: func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
				return nil, transport.ErrUnreachable
			},
			wantReason: ErrUnreachable,
		},
		{
			name: "fault marker",
			poster: func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
				return []byte(badLogin), nil
			},
			wantReason: ErrRejected,
			wantFault:  &markup.Fault{Code: "140", Message: "Invalid user name or password. Please try again."},
		},
		{
			name: "no token and no fault",
			poster: func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
				return []byte("<html><body>wrong endpoint</body></html>"), nil
			},
			wantReason: ErrUnexpectedResponse,
		},
		{
			name: "empty body",
			poster: func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
				return []byte{}, nil
			},
			wantReason: ErrUnexpectedResponse,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), Config{
				Endpoint:  "https://api.example.test/XMLAPI",
				Username:  "u",
				Password:  "p",
				Transport: tc.poster,
			})
			var connErr *ConnectionError
			if !errors.As(err, &connErr) {
				t.Fatalf("expected *ConnectionError, got %T %v", err, err)
			}
			if !errors.Is(err, tc.wantReason) {
				t.Fatalf("expected %v, got %v", tc.wantReason, err)
			}
			if diff := cmp.Diff(tc.wantFault, connErr.Fault); diff != "" {
				t.Fatalf("fault mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// loginCount reads silverpop_api_requests_total{operation="login",outcome=...}
// from the default registry.
func loginCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "silverpop_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == opLogin && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestLoginWithoutTokenIsNotCountedOK(t *testing.T) {
	testlog.Start(t)

	observability.RegisterMetrics()
	okBefore := loginCount(t, observability.OutcomeOK)
	unexpectedBefore := loginCount(t, observability.OutcomeUnexpected)

	_, err := New(context.Background(), Config{
		Endpoint: "https://api.example.test/XMLAPI",
		Username: "u",
		Transport: transport.PosterFunc(func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
			return []byte("<Envelope><Body><RESULT><SUCCESS>true</SUCCESS></RESULT></Body></Envelope>"), nil
		}),
	})
	if !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected unexpected response, got %v", err)
	}
	if got := loginCount(t, observability.OutcomeUnexpected); got != unexpectedBefore+1 {
		t.Fatalf("expected unexpected count %v, got %v", unexpectedBefore+1, got)
	}
	if got := loginCount(t, observability.OutcomeOK); got != okBefore {
		t.Fatalf("ok count moved from %v to %v", okBefore, got)
	}
}

func TestConnectionErrorWithoutReason(t *testing.T) {
	err := &ConnectionError{Op: "x"}
	if got := err.Error(); got != "session: connection failed during x" {
		t.Fatalf("unexpected message %q", got)
	}
	wrapped := &ConnectionError{Err: transport.ErrTooLarge}
	if !errors.Is(wrapped, transport.ErrTooLarge) {
		t.Fatalf("transport error must stay reachable")
	}
}

func TestLoginTransportErrorIsWrapped(t *testing.T) {
	_, err := New(context.Background(), Config{
		Endpoint: "https://api.example.test/XMLAPI",
		Username: "u",
		Transport: transport.PosterFunc(func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
			return nil, transport.ErrUnreachable
		}),
	})
	if !errors.Is(err, transport.ErrUnreachable) || !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected both session and transport reasons, got %v", err)
	}
	if !strings.Contains(err.Error(), "during login") {
		t.Fatalf("error should name the operation: %v", err)
	}
}

func TestSendRawLogging(t *testing.T) {
	testlog.Start(t)

	api := &fakeAPI{loginDoc: okLogin, callDoc: callFault}
	endpoint := newFakeServer(t, api)
	s, err := New(context.Background(), Config{Endpoint: endpoint, Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	resp, err := s.SendRaw(context.Background(), "<Envelope><Body><GetLists/></Body></Envelope>")
	if err != nil {
		t.Fatalf("fault responses are not errors: %v", err)
	}
	if resp != callFault {
		t.Fatalf("unexpected response: %s", resp)
	}
	if len(s.TransactionLog()) != 0 || len(s.FaultLog()) != 0 {
		t.Fatalf("logging must be off by default")
	}

	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}
	s.EnableLogging()
	if _, err := s.SendRaw(context.Background(), "<Envelope><Body><GetLists/></Body></Envelope>"); err != nil {
		t.Fatalf("send: %v", err)
	}

	entries := s.TransactionLog()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].DurationSeconds() != 0.25 {
		t.Fatalf("unexpected duration: %v", entries[0].Duration)
	}
	if entries[0].Request != "<Envelope><Body><GetLists/></Body></Envelope>" || entries[0].Response != callFault {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if diff := cmp.Diff([]string{"List ID is invalid."}, s.FaultLog()); diff != "" {
		t.Fatalf("fault log mismatch (-want +got):\n%s", diff)
	}

	snapshot := s.FaultLog()
	snapshot[0] = "mutated"
	if s.FaultLog()[0] != "List ID is invalid." {
		t.Fatalf("fault log must be returned as a copy")
	}

	s.SetTransactionLogging(false)
	s.SetFaultLogging(false)
	if _, err := s.SendRaw(context.Background(), "<Envelope><Body/></Envelope>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(s.TransactionLog()) != 1 || len(s.FaultLog()) != 1 {
		t.Fatalf("disabled logs must not grow")
	}
}

func TestSendRawTransportFailure(t *testing.T) {
	testlog.Start(t)

	calls := 0
	s, err := New(context.Background(), Config{
		Endpoint: "https://api.example.test/XMLAPI",
		Username: "u",
		Transport: transport.PosterFunc(func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
			calls++
			if calls == 1 {
				return []byte(okLogin), nil
			}
			return nil, errors.New("connection reset")
		}),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	_, err = s.SendRaw(context.Background(), "<Envelope><Body/></Envelope>")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestLogoutIsBestEffort(t *testing.T) {
	testlog.Start(t)

	var urls, bodies []string
	s, err := New(context.Background(), Config{
		Endpoint: "https://api.example.test/XMLAPI?client=go",
		Username: "u",
		Transport: transport.PosterFunc(func(ctx context.Context, url, body string, header http.Header) ([]byte, error) {
			urls = append(urls, url)
			bodies = append(bodies, body)
			if strings.Contains(body, "<Login>") {
				return []byte(okLogin), nil
			}
			return []byte("not even markup"), nil
		}),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("logout must ignore the response: %v", err)
	}
	if s.Token() != "" {
		t.Fatalf("token should be cleared after logout")
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("second logout must not send, got %d requests", len(urls))
	}
	if urls[1] != "https://api.example.test/XMLAPI;jsessionid=DC2A1B3C?client=go" {
		t.Fatalf("matrix parameter must precede the query: %q", urls[1])
	}
	if bodies[1] != markup.LogoutRequest() {
		t.Fatalf("unexpected logout body: %s", bodies[1])
	}
}

func TestCustomTokenParam(t *testing.T) {
	s, err := newSession(Config{Endpoint: "https://api.example.test/XMLAPI", Username: "u", TokenParam: "token"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.token = "a b"
	if got := s.target(); got != "https://api.example.test/XMLAPI;token=a%20b" {
		t.Fatalf("unexpected target: %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "ok", cfg: Config{Endpoint: "https://api.example.test/XMLAPI", Username: "u"}},
		{name: "missing endpoint", cfg: Config{Username: "u"}, wantErr: ErrEndpointRequired},
		{name: "bad scheme", cfg: Config{Endpoint: "ftp://api.example.test", Username: "u"}, wantErr: ErrInvalidEndpoint},
		{name: "missing host", cfg: Config{Endpoint: "https:///XMLAPI", Username: "u"}, wantErr: ErrInvalidEndpoint},
		{name: "missing username", cfg: Config{Endpoint: "https://api.example.test"}, wantErr: ErrUsernameRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}
