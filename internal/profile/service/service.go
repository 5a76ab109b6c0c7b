// Package service exposes person contact details and the contact-point
// verification flow. Code delivery (SMS/email sending) is a separate system;
// this service only issues and checks codes.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"profil/internal/profile/models"
	"profil/pkg/platform/sentinel"
	"profil/pkg/verification"
)

// Channels a verification code can be issued for.
const (
	ChannelMobile = "mobile"
	ChannelEmail  = "email"
)

// ErrCodeExpired marks a verification attempt past the code's lifetime.
var ErrCodeExpired = errors.New("verification code expired")

// Store is the read side of the person contact store.
type Store interface {
	Get(ctx context.Context, nin string) (*models.PersonContactRecord, error)
}

type pendingCode struct {
	hash      string
	expiresAt time.Time
}

// Service reads contact details and runs the verification handshake.
type Service struct {
	store  Store
	hasher verification.Hasher
	log    *slog.Logger
	clock  func() time.Time
	ttl    time.Duration

	mu      sync.Mutex
	pending map[string]pendingCode
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides time in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithCodeTTL sets the verification code lifetime. Defaults to 10 minutes.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// New builds the profile service.
func New(store Store, hasher verification.Hasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("profile service: store is required")
	}
	if hasher == nil {
		return nil, errors.New("profile service: hasher is required")
	}
	s := &Service{
		store:   store,
		hasher:  hasher,
		log:     slog.Default(),
		clock:   time.Now,
		ttl:     10 * time.Minute,
		pending: make(map[string]pendingCode),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetContactDetails returns the synced register view for one person.
func (s *Service) GetContactDetails(ctx context.Context, nin string) (*models.PersonContactRecord, error) {
	rec, err := s.store.Get(ctx, nin)
	if err != nil {
		return nil, fmt.Errorf("get contact details: %w", err)
	}
	return rec, nil
}

// StartVerification issues a fresh code for the person's channel and returns
// it for delivery. Only the hash is retained; issuing again replaces any
// earlier pending code.
func (s *Service) StartVerification(ctx context.Context, nin, channel string) (string, error) {
	if channel != ChannelMobile && channel != ChannelEmail {
		return "", fmt.Errorf("verification channel %q: %w", channel, sentinel.ErrInvalidState)
	}
	// The person must exist locally before a contact point can be verified.
	if _, err := s.store.Get(ctx, nin); err != nil {
		return "", fmt.Errorf("start verification: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("hash verification code: %w", err)
	}

	s.mu.Lock()
	s.pending[nin+"/"+channel] = pendingCode{hash: hash, expiresAt: s.clock().Add(s.ttl)}
	s.mu.Unlock()

	s.log.Info("verification started", "channel", channel)
	return code, nil
}

// CheckVerification checks a pending code. A correct code is consumed and
// cannot be replayed; an expired one is dropped.
func (s *Service) CheckVerification(_ context.Context, nin, channel, code string) error {
	key := nin + "/" + channel

	s.mu.Lock()
	p, ok := s.pending[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending verification for channel %s: %w", channel, sentinel.ErrNotFound)
	}
	if s.clock().After(p.expiresAt) {
		s.expire(key)
		return ErrCodeExpired
	}
	if err := s.hasher.Compare(p.hash, code); err != nil {
		return fmt.Errorf("check verification: %w", err)
	}

	s.expire(key)
	return nil
}

func (s *Service) expire(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

// generateCode draws a uniform 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
