// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/helios/internal/platform/apperr"
	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/compliance"
	"github.com/taibuivan/helios/internal/platform/metrics"
	"github.com/taibuivan/helios/internal/platform/sec"
)

const (
	testPassword = "Str0ngP@ss!"
	testCode     = "424242"
)

// # Collaborator fakes

type fakePhones struct {
	mu       sync.Mutex
	verified map[string]bool
	pending  map[string]string
	sent     []string
	sendErr  error
}

func newFakePhones() *fakePhones {
	return &fakePhones{verified: map[string]bool{}, pending: map[string]string{}}
}

func (phones *fakePhones) IsPhoneVerified(_ context.Context, number string) (bool, error) {
	phones.mu.Lock()
	defer phones.mu.Unlock()
	return phones.verified[number], nil
}

func (phones *fakePhones) SendOTP(_ context.Context, number string) error {
	phones.mu.Lock()
	defer phones.mu.Unlock()
	if phones.sendErr != nil {
		return phones.sendErr
	}
	phones.pending[number] = testCode
	phones.sent = append(phones.sent, number)
	return nil
}

func (phones *fakePhones) VerifyOTP(_ context.Context, number, code string) (bool, error) {
	phones.mu.Lock()
	defer phones.mu.Unlock()
	if phones.pending[number] == "" || phones.pending[number] != code {
		return false, nil
	}
	delete(phones.pending, number)
	return true, nil
}

type recordedEvent struct {
	Type     string
	Severity compliance.Severity
	UserID   string
	Data     map[string]any
}

type recordingAudit struct {
	mu       sync.Mutex
	auth     []recordedEvent
	security []recordedEvent
}

func (audit *recordingAudit) LogAuthEvent(_ context.Context, eventType, userID string, data map[string]any) {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	audit.auth = append(audit.auth, recordedEvent{Type: eventType, UserID: userID, Data: data})
}

func (audit *recordingAudit) LogSecurityEvent(_ context.Context, eventType string, severity compliance.Severity, data map[string]any) {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	audit.security = append(audit.security, recordedEvent{Type: eventType, Severity: severity, Data: data})
}

func (audit *recordingAudit) authTypes() []string {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	types := make([]string, 0, len(audit.auth))
	for _, event := range audit.auth {
		types = append(types, event.Type)
	}
	return types
}

func (audit *recordingAudit) securityEvents(eventType string) []recordedEvent {
	audit.mu.Lock()
	defer audit.mu.Unlock()
	var events []recordedEvent
	for _, event := range audit.security {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []ResetMessage
	err      error
}

func (notifier *recordingNotifier) SendPasswordReset(_ context.Context, message ResetMessage) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.messages = append(notifier.messages, message)
	return notifier.err
}

func (notifier *recordingNotifier) last(t *testing.T) ResetMessage {
	t.Helper()
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotEmpty(t, notifier.messages)
	return notifier.messages[len(notifier.messages)-1]
}

// testClock is a settable clock shared by the service and its lockout guard.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *testClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *testClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

// # Fixture

type fixture struct {
	service  *Service
	store    *memStore
	tokens   *sec.TokenService
	phones   *fakePhones
	audit    *recordingAudit
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	redis    *miniredis.Miniredis
	clock    *testClock
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func defaultPolicy() Policy {
	return Policy{
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  30 * 24 * time.Hour,
		ResetTokenTTL:    time.Hour,
	}
}

func newFixture(t *testing.T, configure ...func(*Policy)) *fixture {
	t.Helper()

	policy := defaultPolicy()
	for _, apply := range configure {
		apply(&policy)
	}

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		store:    newMemStore(),
		tokens:   sec.NewTokenServiceFromKey(signingKey(t), "test-issuer", "test-audience"),
		phones:   newFakePhones(),
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
		redis:    server,
		clock:    &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	f.service = NewService(Dependencies{
		Store:    f.store,
		Tokens:   f.tokens,
		Hasher:   sec.PasswordHasher{Cost: bcrypt.MinCost},
		Cache:    cache.NewRedis(client, slog.New(slog.NewTextHandler(io.Discard, nil))),
		Phones:   f.phones,
		Audit:    f.audit,
		Notifier: f.notifier,
		Metrics:  f.metrics,
	}, policy)
	f.service.now = f.clock.Now
	f.service.lockout.now = f.clock.Now

	return f
}

func withOTP(policy *Policy) { policy.LoginOTPRequired = true }

func (f *fixture) register(t *testing.T, email, phone string) *Registration {
	t.Helper()
	result, err := f.service.Register(context.Background(), RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  testPassword,
		Phone:     phone,
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) login(login, password string) (*TokenPair, error) {
	return f.service.Login(context.Background(), LoginInput{Login: login, Password: password})
}

// # Assertions

func requireAppError(t *testing.T, err error, code string) *apperr.AppError {
	t.Helper()
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
