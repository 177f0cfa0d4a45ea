package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"concord/pkg/domain"
)

// RESTProvider adapts a hosted identity API (Identity-Toolkit style JSON
// endpoints) to the Provider port. Change events are emitted for operations
// performed through this client; the hosted API has no push channel.
type RESTProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu      sync.RWMutex
	current *Principal
	subs    map[int]func(p *Principal)
	nextID  int
}

func NewRESTProvider(baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		subs:    make(map[int]func(*Principal)),
	}
}

type restAuthResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type restErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *RESTProvider) SignIn(ctx context.Context, email, password string) (Principal, error) {
	resp, err := p.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return Principal{}, err
	}
	principal := p.principalFrom(resp)
	p.setCurrent(&principal)
	p.emit(&principal)
	return principal, nil
}

func (p *RESTProvider) SignUp(ctx context.Context, email, password string) (Principal, error) {
	resp, err := p.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return Principal{}, err
	}
	principal := p.principalFrom(resp)
	p.setCurrent(&principal)
	p.emit(&principal)
	return principal, nil
}

func (p *RESTProvider) SignOut(ctx context.Context) error {
	// Hosted providers sign out client-side: drop the local principal.
	p.setCurrent(nil)
	p.emit(nil)
	return nil
}

func (p *RESTProvider) UpdateDisplayName(ctx context.Context, subjectID domain.SubjectID, name string) error {
	_, err := p.post(ctx, "accounts:update", map[string]any{
		"localId":     subjectID.String(),
		"displayName": name,
	})
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.current != nil && p.current.SubjectID == subjectID {
		p.current.DisplayName = name
	}
	p.mu.Unlock()
	return nil
}

func (p *RESTProvider) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, nil
	}
	principal := *p.current
	return &principal, nil
}

func (p *RESTProvider) OnChange(fn func(p *Principal)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *RESTProvider) post(ctx context.Context, method string, payload map[string]any) (*restAuthResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/%s?key=%s", p.baseURL, method, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var wire restErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil || wire.Error.Message == "" {
			return nil, &ProviderError{WireCode: WireUnavailable}
		}
		return nil, &ProviderError{WireCode: wire.Error.Message}
	}

	var out restAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("identity api response: %w", err)
	}
	return &out, nil
}

// principalFrom prefers the ID token's claims over the response envelope;
// phone numbers in particular only travel in the token. The token is parsed
// unverified: signature verification is the API's job, the client only reads
// its own token back.
func (p *RESTProvider) principalFrom(resp *restAuthResponse) Principal {
	principal := Principal{
		SubjectID:   domain.SubjectID(resp.LocalID),
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}
	if resp.IDToken == "" {
		return principal
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.IDToken, claims); err != nil {
		return principal
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		principal.SubjectID = domain.SubjectID(sub)
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		principal.Email = email
	}
	if name, ok := claims["name"].(string); ok && name != "" {
		principal.DisplayName = name
	}
	if phone, ok := claims["phone_number"].(string); ok {
		principal.Phone = phone
	}
	return principal
}

func (p *RESTProvider) setCurrent(principal *Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = principal
}

func (p *RESTProvider) emit(principal *Principal) {
	p.mu.RLock()
	subs := make([]func(*Principal), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.RUnlock()
	for _, fn := range subs {
		if principal == nil {
			fn(nil)
			continue
		}
		copied := *principal
		fn(&copied)
	}
}
