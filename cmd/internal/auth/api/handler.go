package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"traq/cmd/identity"
	"traq/cmd/security/token"
)

// Handler wires HTTP auth endpoints to the identity store and token manager.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	store  identity.Store
	tokens *token.Manager

	// now is the clock; tests replace it to control token lifetimes.
	now func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the handler clock.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, store identity.Store, tokens *token.Manager, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("authapi: nil identity store")
	}
	if tokens == nil {
		return nil, errors.New("authapi: nil token manager")
	}

	h := &Handler{
		log:    log,
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify", h.handleVerify)
	if h.cfg.OpenRegistration {
		mux.HandleFunc("/auth/register", h.handleRegister)
	}
	mux.Handle("/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
	mux.Handle("/auth/users", h.RequireAuth(http.HandlerFunc(h.handleUsers), identity.RoleAdmin))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		loginOutcome("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		loginOutcome("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	u, err := h.store.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if identity.IsInvalidCredentials(err) {
			loginOutcome("invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		loginOutcome("error")
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	signed, ttl, err := h.tokens.Issue(u.Username, string(u.Role), h.now())
	if err != nil {
		loginOutcome("error")
		h.log.Error("auth.login.issue_token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	loginOutcome("ok")
	h.log.Info("auth.login.ok", "user_id", u.ID, "role", u.Role)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Role:        string(u.Role),
		Name:        u.DisplayName,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		registerOutcome("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	// Self-service signup never grants elevation: role is fixed to "user".
	u, err := h.store.Create(r.Context(), identity.CreateUserInput{
		Username:    req.Email,
		DisplayName: req.FullName,
		Password:    req.Password,
		Role:        identity.RoleUser,
		Now:         h.now(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			registerOutcome("conflict")
			writeError(w, http.StatusConflict, "already_exists", "email already registered")
		case identity.IsInvalidInput(err):
			registerOutcome("bad_request")
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid email or password")
		default:
			registerOutcome("error")
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	// The fresh account is signed in immediately: same envelope as login.
	signed, ttl, err := h.tokens.Issue(u.Username, string(u.Role), h.now())
	if err != nil {
		registerOutcome("error")
		h.log.Error("auth.register.issue_token.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	registerOutcome("ok")
	h.log.Info("auth.register.ok", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Role:        string(u.Role),
		Name:        u.DisplayName,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing principal")
		return
	}

	u, err := h.store.GetByUsername(r.Context(), p.Username)
	if err != nil {
		if identity.IsNotFound(err) {
			// Token outlived the account.
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown principal")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toUserInfo(u))
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	all, err := h.store.ListAll(r.Context())
	if err != nil {
		h.log.Error("auth.users.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := usersResponse{Users: make([]userInfo, 0, len(all))}
	for _, u := range all {
		out.Users = append(out.Users, toUserInfo(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleVerify lets sibling services introspect a token without sharing the
// signing secret. A missing token is a caller bug (400); a present but
// unusable token is 401 with valid=false.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		verifyOutcome("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Token == "" {
		verifyOutcome("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	claims, err := h.tokens.Verify(req.Token, h.now())
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTokenExpired):
			verifyOutcome("expired")
		default:
			verifyOutcome("invalid")
		}
		writeJSON(w, http.StatusUnauthorized, verifyResponse{Valid: false})
		return
	}

	verifyOutcome("ok")
	writeJSON(w, http.StatusOK, verifyResponse{
		Valid: true,
		Payload: &verifyPayload{
			Subject:   claims.Subject,
			Role:      claims.Role,
			IssuedAt:  claims.IssuedAt.Unix(),
			ExpiresAt: claims.ExpiresAt.Unix(),
		},
	})
}
