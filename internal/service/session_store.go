package service

import (
	"context"
	"log/slog"
	"sync"

	"gemchat/internal/auth"
	app_errors "gemchat/internal/errors"
	"gemchat/internal/metrics"
	"gemchat/internal/model"
	"gemchat/internal/observable"
)

// SessionStore owns the authentication status and publishes it as a
// SessionState. Login, Register and SendPasswordReset run one at a time;
// Logout is always accepted and supersedes whatever is pending.
type SessionStore struct {
	auth    auth.Provider
	metrics *metrics.Metrics
	state   *observable.Value[model.SessionState]

	mu        sync.Mutex
	seq       uint64 // bumped by every command that may outdate a pending one
	pending   bool
	signingIn int // logins whose provider call or undo has not returned

	// loginMu orders provider logins. A superseded login undoes its provider
	// session before the next login reaches the provider.
	loginMu sync.Mutex
}

func NewSessionStore(provider auth.Provider, m *metrics.Metrics) *SessionStore {
	return &SessionStore{
		auth:    provider,
		metrics: m,
		state:   observable.NewValue(model.SessionState{Status: model.SessionSignedOut}),
	}
}

func (s *SessionStore) State() model.SessionState {
	return s.state.Get()
}

func (s *SessionStore) Watch(ctx context.Context) <-chan model.SessionState {
	return s.state.Watch(ctx)
}

// Identity returns the signed-in identity, or nil.
func (s *SessionStore) Identity() *model.Identity {
	st := s.state.Get()
	if st.Status != model.SessionSignedIn || st.Identity == nil {
		return nil
	}
	cp := *st.Identity
	return &cp
}

// begin moves the store to pending and returns the ticket the command must
// present when it finishes.
func (s *SessionStore) begin(command string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		s.metrics.RecordSessionCommand(command, "busy")
		return 0, app_errors.ErrBusy
	}
	s.pending = true
	s.seq++
	s.state.Set(model.SessionState{Status: model.SessionPending})
	return s.seq, nil
}

// finish publishes st unless a later command has superseded the ticket.
func (s *SessionStore) finish(ticket uint64, st model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.seq {
		return false
	}
	s.pending = false
	s.state.Set(st)
	return true
}

func (s *SessionStore) fail(ticket uint64, command, email string, err error) {
	reason := MapAuthError(err)
	if !s.finish(ticket, model.SessionState{Status: model.SessionFailed, Reason: reason}) {
		s.metrics.RecordSessionCommand(command, "superseded")
		return
	}
	slog.Warn("Auth command failed", "command", command, "email", auth.MaskEmail(email), "error", err)
	s.metrics.RecordSessionCommand(command, "failure")
}

// Login signs the user in. Provider failures are published as a failed state;
// the returned error only reports a command that was not accepted.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	ticket, err := s.begin("login")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.signingIn++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.signingIn--
		s.mu.Unlock()
	}()

	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	identity, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.fail(ticket, "login", email, err)
		return nil
	}

	ok := s.finish(ticket, model.SessionState{
		Status:       model.SessionSignedIn,
		Identity:     identity,
		DisplayLabel: email,
	})
	if !ok {
		// A logout arrived while the provider was answering. Later logins wait
		// on loginMu, so this only undoes our own provider session.
		slog.Info("Discarding login superseded by logout", "email", auth.MaskEmail(email))
		if err := s.auth.SignOut(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Sign-out after superseded login failed", "error", err)
		}
		s.metrics.RecordSessionCommand("login", "superseded")
		return nil
	}

	slog.Info("User signed in", "uid", identity.UID, "email", auth.MaskEmail(email))
	s.metrics.RecordSessionCommand("login", "success")
	return nil
}

// Register creates an account. It does not sign the user in.
func (s *SessionStore) Register(ctx context.Context, email, password string) error {
	ticket, err := s.begin("register")
	if err != nil {
		return err
	}

	if err := s.auth.Register(ctx, email, password); err != nil {
		s.fail(ticket, "register", email, err)
		return nil
	}

	if s.finish(ticket, model.SessionState{Status: model.SessionRegistered}) {
		slog.Info("Account registered", "email", auth.MaskEmail(email))
		s.metrics.RecordSessionCommand("register", "success")
	}
	return nil
}

func (s *SessionStore) SendPasswordReset(ctx context.Context, email string) error {
	ticket, err := s.begin("password_reset")
	if err != nil {
		return err
	}

	if err := s.auth.SendPasswordReset(ctx, email); err != nil {
		s.fail(ticket, "password_reset", email, err)
		return nil
	}

	if s.finish(ticket, model.SessionState{Status: model.SessionPasswordResetSent, ResetTarget: email}) {
		s.metrics.RecordSessionCommand("password_reset", "success")
	}
	return nil
}

// Logout signs out and always ends signed out, even when the provider fails.
// It supersedes a pending command without waiting for it. The provider
// sign-out runs under the state lock so no later command can start before it.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = false

	if err := s.auth.SignOut(ctx); err != nil {
		slog.Warn("Provider sign-out failed, signing out locally", "error", err)
	}
	s.state.Set(model.SessionState{Status: model.SessionSignedOut})
	s.metrics.RecordSessionCommand("logout", "success")
}

// CheckCurrentIdentity publishes signed_in or signed_out from the provider's
// current identity. It does nothing while a command is pending or a
// superseded login has not yet undone its provider session.
func (s *SessionStore) CheckCurrentIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending || s.signingIn > 0 {
		return
	}

	identity := s.auth.CurrentIdentity()
	if identity == nil {
		s.state.Set(model.SessionState{Status: model.SessionSignedOut})
		return
	}
	s.state.Set(model.SessionState{
		Status:       model.SessionSignedIn,
		Identity:     identity,
		DisplayLabel: identity.Email,
	})
}

// Acknowledge returns the informational states (registered, password reset
// sent, failed) to signed_out. It reports whether the state changed.
func (s *SessionStore) Acknowledge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.Get().Status {
	case model.SessionRegistered, model.SessionPasswordResetSent, model.SessionFailed:
		s.state.Set(model.SessionState{Status: model.SessionSignedOut})
		return true
	default:
		return false
	}
}
