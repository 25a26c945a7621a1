package auth

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProviderName identifies the in-memory identity provider in errors.
const MemoryProviderName = "memory-identity"

// minPasswordLength matches the hosted provider's policy.
const minPasswordLength = 6

type memoryAccount struct {
	userID        string
	email         string
	displayName   string
	passwordHash  []byte
	emailVerified bool
	disabled      bool
}

// InMemoryIdentityProvider is an IdentityProvider for local development and
// tests. Passwords are bcrypt-hashed; verification emails are recorded
// instead of sent.
type InMemoryIdentityProvider struct {
	mu           sync.Mutex
	byEmail      map[string]*memoryAccount
	byID         map[string]*memoryAccount
	googleTokens map[string]googleAccount
	sent         map[string]int
	cost         int
}

type googleAccount struct {
	email       string
	displayName string
}

// NewInMemoryIdentityProvider creates an empty provider.
func NewInMemoryIdentityProvider() *InMemoryIdentityProvider {
	return &InMemoryIdentityProvider{
		byEmail:      make(map[string]*memoryAccount),
		byID:         make(map[string]*memoryAccount),
		googleTokens: make(map[string]googleAccount),
		sent:         make(map[string]int),
		cost:         bcrypt.DefaultCost,
	}
}

// WithBcryptCost sets the hashing cost; tests use bcrypt.MinCost.
func (p *InMemoryIdentityProvider) WithBcryptCost(cost int) *InMemoryIdentityProvider {
	p.cost = cost
	return p
}

// SignUp implements IdentityProvider.
func (p *InMemoryIdentityProvider) SignUp(_ context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, NewAuthError(MemoryProviderName, CodeInvalidEmail)
	}
	if len(password) < minPasswordLength {
		return nil, NewAuthError(MemoryProviderName, CodeWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, NewAuthError(MemoryProviderName, CodeWeakPassword)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[email]; exists {
		return nil, NewAuthError(MemoryProviderName, CodeEmailAlreadyInUse)
	}
	acct := &memoryAccount{userID: uuid.NewString(), email: email, passwordHash: hash}
	p.byEmail[email] = acct
	p.byID[acct.userID] = acct
	return acct.identity(), nil
}

// SetDisplayName implements IdentityProvider.
func (p *InMemoryIdentityProvider) SetDisplayName(_ context.Context, id *Identity, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id.UserID]
	if !ok {
		return NewAuthError(MemoryProviderName, CodeUserNotFound)
	}
	acct.displayName = displayName
	return nil
}

// SendVerificationEmail implements IdentityProvider.
func (p *InMemoryIdentityProvider) SendVerificationEmail(_ context.Context, id *Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id.UserID]
	if !ok {
		return NewAuthError(MemoryProviderName, CodeUserNotFound)
	}
	p.sent[acct.email]++
	return nil
}

// SignIn implements IdentityProvider.
func (p *InMemoryIdentityProvider) SignIn(_ context.Context, email, password string) (*Identity, error) {
	p.mu.Lock()
	acct, ok := p.byEmail[normalizeEmail(email)]
	var (
		hash     []byte
		disabled bool
	)
	if ok {
		hash, disabled = acct.passwordHash, acct.disabled
	}
	p.mu.Unlock()

	if !ok {
		return nil, NewAuthError(MemoryProviderName, CodeUserNotFound)
	}
	if disabled {
		return nil, NewAuthError(MemoryProviderName, CodeUserDisabled)
	}
	if hash == nil || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, NewAuthError(MemoryProviderName, CodeWrongPassword)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return acct.identity(), nil
}

// SignInWithGoogle implements IdentityProvider. Only tokens registered with
// RegisterGoogleToken are accepted.
func (p *InMemoryIdentityProvider) SignInWithGoogle(_ context.Context, googleIDToken string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.googleTokens[googleIDToken]
	if !ok {
		return nil, NewAuthError(MemoryProviderName, CodeInvalidCredential)
	}
	acct, ok := p.byEmail[g.email]
	if !ok {
		acct = &memoryAccount{userID: uuid.NewString(), email: g.email, displayName: g.displayName}
		p.byEmail[g.email] = acct
		p.byID[acct.userID] = acct
	}
	// Google has verified the address.
	acct.emailVerified = true
	return acct.identity(), nil
}

// Lookup implements IdentityProvider.
func (p *InMemoryIdentityProvider) Lookup(_ context.Context, id *Identity) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byID[id.UserID]
	if !ok {
		return nil, NewAuthError(MemoryProviderName, CodeUserNotFound)
	}
	return acct.identity(), nil
}

// RegisterGoogleToken makes token acceptable to SignInWithGoogle.
func (p *InMemoryIdentityProvider) RegisterGoogleToken(token, email, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.googleTokens[token] = googleAccount{email: normalizeEmail(email), displayName: displayName}
}

// MarkVerified simulates the user following the verification link.
func (p *InMemoryIdentityProvider) MarkVerified(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byEmail[normalizeEmail(email)]
	if ok {
		acct.emailVerified = true
	}
	return ok
}

// Disable blocks further sign-ins of the account.
func (p *InMemoryIdentityProvider) Disable(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if acct, ok := p.byEmail[normalizeEmail(email)]; ok {
		acct.disabled = true
	}
}

// VerificationEmailsSent returns how many verification emails went to email.
func (p *InMemoryIdentityProvider) VerificationEmailsSent(email string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[normalizeEmail(email)]
}

func (a *memoryAccount) identity() *Identity {
	return &Identity{
		UserID:        a.userID,
		Email:         a.email,
		DisplayName:   a.displayName,
		EmailVerified: a.emailVerified,
		RefreshToken:  "memory:" + a.userID,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
