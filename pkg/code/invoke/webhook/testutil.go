package webhook

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/netutil"
	"github.com/code-payments/code-timelock-server/pkg/testutil"
)

// TestEndpoint is a program endpoint for testing webhook invocations. It
// verifies every token it receives.
type TestEndpoint struct {
	mu          sync.Mutex
	port        int32
	issuer      ed25519.PublicKey
	requests    []*Request
	rejected    int
	shouldError bool
}

// NewTestEndpoint returns a new server that accepts tokens from issuer
func NewTestEndpoint(t *testing.T, issuer ed25519.PublicKey) *TestEndpoint {
	availablePort, err := netutil.GetAvailablePortForAddress("localhost")
	require.NoError(t, err)

	server := &TestEndpoint{
		port:   availablePort,
		issuer: issuer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/invoke", server.handler)
	go func() {
		require.NoError(t, http.ListenAndServe(fmt.Sprintf(":%d", availablePort), mux))
	}()

	require.NoError(t, testutil.WaitFor(time.Second, 10*time.Millisecond, func() bool {
		conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", availablePort))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}))

	return server
}

func (s *TestEndpoint) URL() string {
	return fmt.Sprintf("http://localhost:%d/invoke", s.port)
}

func (s *TestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.Header.Get(contentTypeHeaderName) != contentTypeHeaderValue {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	request, err := Verify(string(body), s.issuer)
	if err != nil {
		s.rejected++
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if s.shouldError {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.requests = append(s.requests, request)
}

// GetReceivedRequests returns the verified requests that were accepted
func (s *TestEndpoint) GetReceivedRequests() []*Request {
	s.mu.Lock()
	copied := make([]*Request, len(s.requests))
	copy(copied, s.requests)
	s.mu.Unlock()
	return copied
}

func (s *TestEndpoint) GetRejectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

func (s *TestEndpoint) SimulateErrors() {
	s.mu.Lock()
	s.shouldError = true
	s.mu.Unlock()
}

func (s *TestEndpoint) Reset() {
	s.mu.Lock()
	s.shouldError = false
	s.requests = nil
	s.rejected = 0
	s.mu.Unlock()
}
