// Package relay is a rendezvous transport for wallets that cannot be opened
// as a popup of the caller. Open hands the wallet a URL carrying a signed,
// short-lived session token; the wallet page dials back over a WebSocket and
// from then on behaves like a popup: its frames arrive tagged with the origin
// the token was issued for.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/mark3labs/walletbridge-go/transport"
)

const (
	// DefaultConnectTimeout bounds how long Open waits for the wallet to dial in.
	DefaultConnectTimeout = 2 * time.Minute

	// DefaultTokenTTL is the lifetime of a session token.
	DefaultTokenTTL = 5 * time.Minute

	// QueryParam is the wallet URL parameter that carries the session URL.
	QueryParam = "relay"

	// MinSecretLength is the shortest accepted HS256 secret.
	MinSecretLength = 32

	readLimit = 1 << 20
)

var (
	ErrMissingBaseURL = errors.New("relay: base URL is required")
	ErrShortSecret    = fmt.Errorf("relay: secret must be at least %d bytes", MinSecretLength)
	ErrNotConnected   = errors.New("relay: wallet has not connected")
)

// Launcher presents a wallet URL to the user, for example by printing it or
// opening a browser tab.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, url string) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, url string) error {
	return f(ctx, url)
}

type options struct {
	baseURL        string
	launcher       Launcher
	connectTimeout time.Duration
	tokenTTL       time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a Server.
type Option func(*options) error

// WithBaseURL sets the externally reachable URL the handler is mounted at.
func WithBaseURL(u string) Option {
	return func(o *options) error {
		if u == "" {
			return ErrMissingBaseURL
		}
		if _, err := transport.ResolveOrigin(u); err != nil {
			return fmt.Errorf("relay: base URL: %w", err)
		}
		o.baseURL = strings.TrimRight(u, "/")
		return nil
	}
}

// WithLauncher sets how wallet URLs reach the user. The default logs them.
func WithLauncher(l Launcher) Option {
	return func(o *options) error {
		o.launcher = l
		return nil
	}
}

// WithConnectTimeout bounds the wait for the wallet to dial in.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("relay: connect timeout must be positive")
		}
		o.connectTimeout = d
		return nil
	}
}

// WithTokenTTL sets the session token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("relay: token TTL must be positive")
		}
		o.tokenTTL = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l != nil {
			o.logger = l
		}
		return nil
	}
}

// Server issues relay sessions and accepts the wallets dialing back.
type Server struct {
	secret []byte
	signer jose.Signer
	opts   options
	router chi.Router

	mu       sync.Mutex
	sessions map[string]*Handle
}

var _ transport.Opener = (*Server)(nil)

// New creates a Server that signs session tokens with secret.
func New(secret []byte, opts ...Option) (*Server, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	o := options{
		connectTimeout: DefaultConnectTimeout,
		tokenTTL:       DefaultTokenTTL,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if o.launcher == nil {
		log := o.logger
		o.launcher = LauncherFunc(func(_ context.Context, u string) error {
			log.Info("open this URL in your wallet", "url", u)
			return nil
		})
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: create signer: %w", err)
	}

	s := &Server{
		secret:   append([]byte(nil), secret...),
		signer:   signer,
		opts:     o,
		sessions: make(map[string]*Handle),
	}

	r := chi.NewRouter()
	r.Get("/session/{token}", func(w http.ResponseWriter, r *http.Request) {
		s.ServeSession(w, r, chi.URLParam(r, "token"))
	})
	s.router = r
	return s, nil
}

// Handler serves GET /session/{token}. Mount it at the base URL.
func (s *Server) Handler() http.Handler { return s.router }

// Open issues a session for the wallet at walletURL and launches it with the
// session URL attached. The returned handle closes itself if the wallet does
// not dial in within the connect timeout.
func (s *Server) Open(ctx context.Context, walletURL string) (transport.Handle, error) {
	origin, err := transport.ResolveOrigin(walletURL)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(walletURL)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}

	id := uuid.NewString()
	token, err := s.issue(id, origin)
	if err != nil {
		return nil, err
	}

	h := newHandle(s, id, origin)
	h.timer = time.AfterFunc(s.opts.connectTimeout, func() {
		if !h.claimed() {
			s.opts.logger.Info("wallet did not connect", "session", id, "origin", origin)
			_ = h.Close()
		}
	})
	s.mu.Lock()
	s.sessions[id] = h
	s.mu.Unlock()

	q := u.Query()
	q.Set(QueryParam, s.opts.baseURL+"/session/"+token)
	u.RawQuery = q.Encode()

	if err := s.opts.launcher.Launch(ctx, u.String()); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("relay: launch wallet: %w", err)
	}
	return h, nil
}

func (s *Server) issue(id, origin string) (string, error) {
	now := s.opts.now()
	claims := jwt.Claims{
		ID:       id,
		Audience: jwt.Audience{origin},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(s.opts.tokenTTL)),
	}
	token, err := jwt.Signed(s.signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("relay: sign token: %w", err)
	}
	return token, nil
}

func (s *Server) verify(token string) (*jwt.Claims, error) {
	tok, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, err
	}
	var claims jwt.Claims
	if err := tok.Claims(s.secret, &claims); err != nil {
		return nil, err
	}
	if err := claims.Validate(jwt.Expected{Time: s.opts.now()}); err != nil {
		return nil, err
	}
	if claims.ID == "" || len(claims.Audience) != 1 {
		return nil, errors.New("token is missing its session or audience")
	}
	return &claims, nil
}

// claim hands the pending session id to exactly one connecting wallet.
func (s *Server) claim(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok || !h.claim() {
		return nil, false
	}
	return h, true
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ServeSession runs the handshake for token and, once accepted, pumps the
// wallet's frames until either side closes. Framework adapters call it with
// the token taken from their own route parameters.
func (s *Server) ServeSession(w http.ResponseWriter, r *http.Request, token string) {
	log := s.opts.logger.With("remote", r.RemoteAddr)

	claims, err := s.verify(token)
	if err != nil {
		log.Warn("rejected relay token", "error", err)
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}
	origin := r.Header.Get("Origin")
	if origin != claims.Audience[0] {
		log.Warn("relay origin mismatch", "session", claims.ID, "origin", origin, "want", claims.Audience[0])
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	h, ok := s.claim(claims.ID)
	if !ok {
		log.Warn("relay session unavailable", "session", claims.ID)
		http.Error(w, "session is not pending", http.StatusConflict)
		return
	}

	if err := h.accept(w, r); err != nil {
		log.Warn("websocket accept failed", "session", claims.ID, "error", err)
		_ = h.Close()
		return
	}
	log.Info("wallet connected", "session", claims.ID, "origin", origin)
	err = h.serve(r.Context())
	log.Info("wallet disconnected", "session", claims.ID, "error", err)
}
