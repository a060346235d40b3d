// Package session drives the connect flow that binds the gateway to one
// user's Adafruit IO account.
//
// A connect runs through fixed phases: authenticate the user, tear down
// the previous device set, rediscover and resubscribe under the new
// credentials. Each phase leaves an activity log entry. Only one connect
// runs at a time; the device registry rejects overlap.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yolohome/gateway/internal/audit"
	"github.com/yolohome/gateway/internal/device"
	"github.com/yolohome/gateway/internal/feed"
	"github.com/yolohome/gateway/internal/infrastructure/logging"
	"github.com/yolohome/gateway/internal/user"
)

// Activity names recorded per connect phase.
const (
	ActivityAuthenticate = "adafruit_connect:authenticate"
	ActivityRebuild      = "adafruit_connect:rebuild"
)

// Rebuilder is the slice of the device registry the session needs.
type Rebuilder interface {
	Rebuild(ctx context.Context, account feed.Account) (*device.RebuildResult, error)
}

// Result summarizes a successful connect: which account is bound and the
// feed IDs the caller can now address commands to.
type Result struct {
	UserNo    int
	LEDIDs    []string
	FanIDs    []string
	SensorIDs []string
	// KindErrors carries per-kind discovery failures that did not abort
	// the connect.
	KindErrors map[device.Kind]error
}

// Manager owns the connect flow and remembers which account the gateway
// is currently serving.
type Manager struct {
	users    user.Repository
	audits   audit.Repository
	registry Rebuilder
	verifier Verifier
	logger   *logging.Logger

	mu      sync.RWMutex
	current int
}

// NewManager creates a session manager. A nil verifier defaults to the
// plaintext comparison the account store uses.
func NewManager(users user.Repository, audits audit.Repository, registry Rebuilder, verifier Verifier, logger *logging.Logger) *Manager {
	if verifier == nil {
		verifier = PlaintextVerifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		users:    users,
		audits:   audits,
		registry: registry,
		verifier: verifier,
		logger:   logger.With("component", "session"),
	}
}

// Connect authenticates the user and rebuilds the device registry on
// their Adafruit account.
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
// An account without broker credentials returns
// ErrMissingBrokerCredentials. A connect racing another one surfaces
// device.ErrRebuildInProgress.
func (m *Manager) Connect(ctx context.Context, email, password string) (*Result, error) {
	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			m.record(ctx, audit.UnknownUser, ActivityAuthenticate, audit.StatusFailed)
			return nil, ErrInvalidCredentials
		}
		m.record(ctx, audit.UnknownUser, ActivityAuthenticate, audit.StatusError)
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if !m.verifier.Verify(password, u.Password) {
		m.record(ctx, audit.UnknownUser, ActivityAuthenticate, audit.StatusFailed)
		return nil, ErrInvalidCredentials
	}
	m.record(ctx, u.No, ActivityAuthenticate, audit.StatusSuccess)

	if !u.HasBrokerCredentials() {
		m.record(ctx, u.No, ActivityRebuild, audit.StatusFailed)
		return nil, ErrMissingBrokerCredentials
	}

	m.record(ctx, u.No, ActivityRebuild, audit.StatusStarted)

	account := feed.Account{Username: u.AdafruitUsername, Key: u.AdafruitKey}
	rebuilt, err := m.registry.Rebuild(ctx, account)
	if err != nil {
		if errors.Is(err, device.ErrRebuildInProgress) {
			m.record(ctx, u.No, ActivityRebuild, audit.StatusFailed)
			return nil, err
		}
		m.record(ctx, u.No, ActivityRebuild, audit.StatusError)
		return nil, fmt.Errorf("rebuilding devices: %w", err)
	}

	m.record(ctx, u.No, ActivityRebuild, audit.StatusSuccess)

	m.mu.Lock()
	m.current = u.No
	m.mu.Unlock()

	m.logger.Info("session established",
		"user_no", u.No,
		"leds", len(rebuilt.LEDIDs),
		"fans", len(rebuilt.FanIDs),
		"sensors", len(rebuilt.SensorIDs))

	return &Result{
		UserNo:     u.No,
		LEDIDs:     rebuilt.LEDIDs,
		FanIDs:     rebuilt.FanIDs,
		SensorIDs:  rebuilt.SensorIDs,
		KindErrors: rebuilt.KindErrors,
	}, nil
}

// CurrentUserNo returns the account number of the connected user, or
// audit.UnknownUser when no session has been established.
func (m *Manager) CurrentUserNo() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == 0 {
		return audit.UnknownUser
	}
	return m.current
}

// RecordActivity writes a device activity entry for the current user.
// Logging failures are swallowed; activity history must not break the
// operation it describes.
func (m *Manager) RecordActivity(ctx context.Context, activity, status, deviceName string) {
	entry := audit.NewEntry(m.CurrentUserNo(), activity, status, deviceName)
	if err := m.audits.Record(ctx, entry); err != nil {
		m.logger.Warn("activity record failed", "activity", activity, "error", err)
	}
}

func (m *Manager) record(ctx context.Context, userNo int, activity, status string) {
	if err := m.audits.Record(ctx, audit.NewEntry(userNo, activity, status, "")); err != nil {
		m.logger.Warn("activity record failed", "activity", activity, "error", err)
	}
}
