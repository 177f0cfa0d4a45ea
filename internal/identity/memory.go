package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"concord/pkg/domain"
)

const (
	minPasswordLength = 6
	maxFailedSignIns  = 5
	memoryBcryptCost  = bcrypt.MinCost // accounts here are ephemeral dev data
)

// MemoryProvider is an in-process identity provider for development and
// tests. It keeps the real provider's observable contract: bcrypt-checked
// credentials, wire-coded rejections, lockout after repeated failures, and
// change fan-out on sign-in/sign-out.
type MemoryProvider struct {
	mu      sync.RWMutex
	users   map[string]*memoryUser // keyed by lowercased email
	current *Principal
	subs    map[int]func(p *Principal)
	nextID  int
	failed  map[string]int
}

type memoryUser struct {
	principal Principal
	hash      []byte
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		users:  make(map[string]*memoryUser),
		subs:   make(map[int]func(*Principal)),
		failed: make(map[string]int),
	}
}

// Seed registers an account without emitting a change event. Test and demo
// wiring only.
func (p *MemoryProvider) Seed(email, password, displayName, phone string) Principal {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), memoryBcryptCost)
	if err != nil {
		panic("identity: seed password hash: " + err.Error())
	}
	principal := Principal{
		SubjectID:   domain.SubjectID(uuid.NewString()),
		Email:       email,
		DisplayName: displayName,
		Phone:       phone,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[strings.ToLower(email)] = &memoryUser{principal: principal, hash: hash}
	return principal
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (Principal, error) {
	key := strings.ToLower(email)

	p.mu.Lock()
	user, ok := p.users[key]
	if !ok {
		p.mu.Unlock()
		return Principal{}, &ProviderError{WireCode: WireEmailNotFound}
	}
	if p.failed[key] >= maxFailedSignIns {
		p.mu.Unlock()
		return Principal{}, &ProviderError{WireCode: WireTooManyAttempts}
	}
	hash := user.hash
	p.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		p.mu.Lock()
		p.failed[key]++
		p.mu.Unlock()
		return Principal{}, &ProviderError{WireCode: WireInvalidPassword}
	}

	p.mu.Lock()
	delete(p.failed, key)
	principal := user.principal
	p.current = &principal
	p.mu.Unlock()

	p.emit(&principal)
	return principal, nil
}

func (p *MemoryProvider) SignUp(ctx context.Context, email, password string) (Principal, error) {
	if len(password) < minPasswordLength {
		return Principal{}, &ProviderError{WireCode: WireWeakPassword}
	}
	key := strings.ToLower(email)

	p.mu.Lock()
	if _, exists := p.users[key]; exists {
		p.mu.Unlock()
		return Principal{}, &ProviderError{WireCode: WireEmailExists}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), memoryBcryptCost)
	if err != nil {
		p.mu.Unlock()
		return Principal{}, err
	}
	principal := Principal{
		SubjectID: domain.SubjectID(uuid.NewString()),
		Email:     email,
	}
	p.users[key] = &memoryUser{principal: principal, hash: hash}
	p.current = &principal
	p.mu.Unlock()

	p.emit(&principal)
	return principal, nil
}

func (p *MemoryProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.emit(nil)
	return nil
}

func (p *MemoryProvider) UpdateDisplayName(ctx context.Context, subjectID domain.SubjectID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, user := range p.users {
		if user.principal.SubjectID == subjectID {
			user.principal.DisplayName = name
			if p.current != nil && p.current.SubjectID == subjectID {
				p.current.DisplayName = name
			}
			return nil
		}
	}
	return &ProviderError{WireCode: WireEmailNotFound}
}

func (p *MemoryProvider) CurrentPrincipal(ctx context.Context) (*Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, nil
	}
	principal := *p.current
	return &principal, nil
}

// OnChange registers fn for sign-in/sign-out events. The current state is
// not replayed on subscription.
func (p *MemoryProvider) OnChange(fn func(p *Principal)) func() {
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

func (p *MemoryProvider) emit(principal *Principal) {
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
