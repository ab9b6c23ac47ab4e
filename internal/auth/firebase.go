package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gemchat/internal/model"
)

// DefaultFirebaseAuthURL is the Identity Toolkit endpoint.
const DefaultFirebaseAuthURL = "https://identitytoolkit.googleapis.com"

// FirebaseProvider signs users in through the Identity Toolkit REST API.
type FirebaseProvider struct {
	client *http.Client
	url    string
	apiKey string

	mu      sync.RWMutex
	current *model.Identity
}

func NewFirebaseProvider(url, apiKey string, timeout time.Duration) *FirebaseProvider {
	if url == "" {
		url = DefaultFirebaseAuthURL
	}
	return &FirebaseProvider{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email"`
}

type accountResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	var resp accountResponse
	err := p.post(ctx, "accounts:signInWithPassword", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	identity := &model.Identity{UID: resp.LocalID, Email: resp.Email, Token: resp.IDToken}
	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()

	cp := *identity
	return &cp, nil
}

func (p *FirebaseProvider) Register(ctx context.Context, email, password string) error {
	var resp accountResponse
	return p.post(ctx, "accounts:signUp", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	}, &resp)
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	var resp struct {
		Email string `json:"email"`
	}
	return p.post(ctx, "accounts:sendOobCode", oobRequest{RequestType: "PASSWORD_RESET", Email: email}, &resp)
}

// SignOut forgets the local identity. The REST API keeps no client session.
func (p *FirebaseProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

func (p *FirebaseProvider) CurrentIdentity() *model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}

func (p *FirebaseProvider) post(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", p.url, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// Transport failures surface the way the SDKs report them.
		slog.Warn("Identity Toolkit request failed", "method", method, "error", err)
		return newError(CodeNetwork)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(CodeNetwork)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeFirebaseError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

// decodeFirebaseError turns an error body such as
// {"error":{"code":400,"message":"WEAK_PASSWORD : Password should be at least 6 characters"}}
// into an *Error.
func decodeFirebaseError(status int, data []byte) error {
	var body firebaseErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Message == "" {
		return &Error{Code: fmt.Sprintf("HTTP_%d", status), Message: strings.TrimSpace(string(data))}
	}

	code, detail, _ := strings.Cut(body.Error.Message, " : ")
	code = strings.TrimSpace(code)
	if _, known := codeMessages[code]; known {
		return newError(code)
	}
	if detail != "" {
		return &Error{Code: code, Message: detail}
	}
	return &Error{Code: code, Message: code}
}
