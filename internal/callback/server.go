// Package callback runs the local HTTP server that receives OAuth
// authentication redirects on desktop hosts and hands them to the session
// subsystem.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Server handles the local HTTP server for OAuth callbacks.
// It listens for the authorization redirect from the OAuth provider and
// dispatches the full redirect URI to every subscribed handler, leaving the
// interpretation of its query parameters to the subscriber.
type Server struct {
	// server is the underlying HTTP server instance
	server *http.Server
	// port is the port number on which the server listens
	port int
	// mu is a mutex for protecting server state and subscriptions
	mu sync.Mutex
	// running indicates whether the server is currently running
	running bool
	// handlers holds the active redirect subscriptions
	handlers map[int]func(*url.URL)
	// nextID is the identifier for the next subscription
	nextID int
}

// NewServer creates a new OAuth callback server listening on the given port.
//
// Parameters:
//   - port: The port number on which the server should listen
//
// Returns:
//   - *Server: A new Server instance
func NewServer(port int) *Server {
	return &Server{
		port:     port,
		handlers: make(map[int]func(*url.URL)),
	}
}

// URI returns the local redirect URI the server answers on.
func (s *Server) URI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", s.port)
}

// Subscribe registers a handler for incoming redirect URIs. The returned
// function cancels the subscription. Handlers run on the HTTP handler
// goroutine and must not block.
func (s *Server) Subscribe(handler func(*url.URL)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// Start starts the OAuth callback server.
// It verifies the port is free, installs the callback handler, and begins
// listening in the background.
//
// Returns:
//   - error: An error if the server fails to start
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if !s.isPortAvailable() {
		return fmt.Errorf("port %d is already in use", s.port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("callback server failed: %v", err)
		}
	}()

	// Give the listener a moment to come up before the browser is pointed
	// at it.
	time.Sleep(100 * time.Millisecond)

	log.Debugf("callback server listening on %s", s.URI())
	return nil
}

// Stop gracefully stops the OAuth callback server.
//
// Parameters:
//   - ctx: The context for controlling the shutdown process
//
// Returns:
//   - error: An error if the server fails to stop gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// handleCallback handles the OAuth callback endpoint.
// It dispatches the redirect URI to the subscribers and serves a result page
// telling the user whether to return to the terminal or retry.
//
// Parameters:
//   - w: The HTTP response writer
//   - r: The HTTP request
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received OAuth callback")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Copy the URL before handing it out; the request object is reused.
	redirect := *r.URL
	s.dispatch(&redirect)

	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case query.Get("error") != "":
		log.Errorf("OAuth error received: %s", query.Get("error"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(loginFailureHTML))
	case query.Get("code") == "":
		log.Error("No authorization code received")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(loginFailureHTML))
	default:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(loginSuccessHTML))
	}
}

// dispatch fans the redirect URI out to the current subscribers.
func (s *Server) dispatch(uri *url.URL) {
	s.mu.Lock()
	handlers := make([]func(*url.URL), 0, len(s.handlers))
	for _, handler := range s.handlers {
		handlers = append(handlers, handler)
	}
	s.mu.Unlock()

	if len(handlers) == 0 {
		log.Warn("received an OAuth redirect with no login in progress")
		return
	}
	for _, handler := range handlers {
		handler(uri)
	}
}

// isPortAvailable checks if the configured port is available.
//
// Returns:
//   - bool: True if the port is available, false otherwise
func (s *Server) isPortAvailable() bool {
	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	defer func() {
		_ = listener.Close()
	}()
	return true
}
