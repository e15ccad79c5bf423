package broker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kubedeck/kubedeck/pkg/metrics"
)

// Status is the answer to "who is logged in", shaped for the UI.
type Status struct {
	LoggedIn bool   `json:"isLoggedIn"`
	Username string `json:"username,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// SessionInfo carries the display claims of a fresh login.
type SessionInfo struct {
	Username string
	TenantID string
}

type Options struct {
	Store   *RecordStore
	Factory CredentialFactory
	// StatusScopes are used by CheckLoginStatus; they default to
	// ManagementScopes when unset.
	StatusScopes     []string
	ManagementScopes []string
	Log              *zap.Logger
}

// Broker is the operation surface the rest of the application consumes. All
// operations funnel through one serializer, so the holder and the record
// store are never touched concurrently.
type Broker struct {
	queue            Serializer
	holder           *CredentialHolder
	store            *RecordStore
	statusScopes     []string
	managementScopes []string
	log              *zap.Logger
}

func New(opts Options) (*Broker, error) {
	if opts.Store == nil {
		return nil, errors.New("record store is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("credential factory is required")
	}
	if len(opts.ManagementScopes) == 0 {
		return nil, errors.New("management scopes are required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	statusScopes := opts.StatusScopes
	if len(statusScopes) == 0 {
		statusScopes = opts.ManagementScopes
	}
	return &Broker{
		holder:           NewCredentialHolder(opts.Store, opts.Factory, log),
		store:            opts.Store,
		statusScopes:     statusScopes,
		managementScopes: opts.ManagementScopes,
		log:              log,
	}, nil
}

func (b *Broker) enqueue(op func()) {
	metrics.QueuePending.Inc()
	defer metrics.QueuePending.Dec()
	b.queue.Do(op)
}

// AcquireToken attempts a silent token fetch for scopes. When that yields
// nothing and silent is false, it runs an interactive authentication and
// retries the silent fetch once. A nil result with a nil error means no
// session exists; callers distinguish that from an AcquisitionError, which
// means the mechanism itself failed.
func (b *Broker) AcquireToken(ctx context.Context, scopes []string, silent bool) (*TokenResult, error) {
	var result *TokenResult
	var err error
	b.enqueue(func() { result, err = b.acquire(ctx, scopes, silent) })
	return result, err
}

func (b *Broker) acquire(ctx context.Context, scopes []string, silent bool) (*TokenResult, error) {
	mode := "interactive"
	if silent {
		mode = "silent"
	}
	cred, err := b.holder.GetOrCreate()
	if err != nil {
		metrics.TokenRequests.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	token, err := cred.SilentAcquire(ctx, scopes)
	if err != nil {
		if silent {
			// Silent callers only learn whether a session exists; a broken
			// mechanism reads the same as no session. The error is kept out
			// of the result on purpose: status checks must never throw.
			b.log.Warn("silent acquisition failed", zap.Error(err))
			metrics.TokenRequests.WithLabelValues(mode, "error").Inc()
			return nil, nil
		}
		b.log.Warn("silent acquisition failed, escalating to interactive", zap.Error(err))
	}
	if token != nil {
		metrics.TokenRequests.WithLabelValues(mode, "token").Inc()
		return token, nil
	}
	if silent {
		metrics.TokenRequests.WithLabelValues(mode, "no_session").Inc()
		return nil, nil
	}

	if b.holder.HadRecord() {
		// A persisted record promised a resumable session and silent
		// acquisition still came up empty; the prompt is a re-consent, not a
		// first login.
		b.log.Info("persisted session could not be resumed silently, prompting",
			zap.Strings("scopes", scopes))
		metrics.SessionResumptionFailures.Inc()
	}
	outcome, err := cred.InteractiveAuthenticate(ctx, scopes)
	if err != nil {
		metrics.InteractiveLogins.WithLabelValues("error").Inc()
		metrics.TokenRequests.WithLabelValues(mode, "error").Inc()
		return nil, &AcquisitionError{Op: "interactive", Err: err}
	}
	metrics.InteractiveLogins.WithLabelValues("success").Inc()
	cred, err = b.adoptOutcome(outcome)
	if err != nil {
		metrics.TokenRequests.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	token, err = cred.SilentAcquire(ctx, scopes)
	if err != nil {
		metrics.TokenRequests.WithLabelValues(mode, "error").Inc()
		return nil, &AcquisitionError{Op: "silent retry", Err: err}
	}
	if token == nil {
		metrics.TokenRequests.WithLabelValues(mode, "no_session").Inc()
		return nil, nil
	}
	metrics.TokenRequests.WithLabelValues(mode, "token").Inc()
	return token, nil
}

// adoptOutcome persists the fresh record and rebuilds the credential from
// it, because the one we authenticated with was created from a stale or
// missing record.
func (b *Broker) adoptOutcome(outcome *LoginOutcome) (Credential, error) {
	if err := b.store.Save(outcome.Record); err != nil {
		metrics.RecordStoreFailures.WithLabelValues("save").Inc()
		return nil, err
	}
	b.holder.Invalidate()
	return b.holder.GetOrCreate()
}

// CheckLoginStatus performs a silent acquisition against the status scope
// and decodes display claims from the resulting token. It never prompts and
// never returns an error: an absent session is a normal outcome.
func (b *Broker) CheckLoginStatus(ctx context.Context) Status {
	token, err := b.AcquireToken(ctx, b.statusScopes, true)
	if err != nil || token == nil {
		return Status{}
	}
	claims := ExtractClaims(token.Token)
	return Status{LoggedIn: true, Username: claims.Username, TenantID: claims.TenantID}
}

// Login forces an interactive authentication against the management scope,
// persists the new record, and invalidates the holder so later requests use
// the fresh record.
func (b *Broker) Login(ctx context.Context) (*SessionInfo, error) {
	var info *SessionInfo
	var err error
	b.enqueue(func() { info, err = b.login(ctx) })
	return info, err
}

func (b *Broker) login(ctx context.Context) (*SessionInfo, error) {
	cred, err := b.holder.GetOrCreate()
	if err != nil {
		return nil, err
	}
	outcome, err := cred.InteractiveAuthenticate(ctx, b.managementScopes)
	if err != nil {
		metrics.InteractiveLogins.WithLabelValues("error").Inc()
		return nil, &AcquisitionError{Op: "login", Err: err}
	}
	metrics.InteractiveLogins.WithLabelValues("success").Inc()
	if _, err := b.adoptOutcome(outcome); err != nil {
		return nil, err
	}
	claims := ExtractClaims(outcome.IDToken)
	if claims.Empty() && outcome.Token != nil {
		claims = ExtractClaims(outcome.Token.Token)
	}
	if claims.Username == "" {
		claims.Username = outcome.Record.Username
	}
	if claims.TenantID == "" {
		claims.TenantID = outcome.Record.TenantID
	}
	b.log.Info("interactive login succeeded", zap.String("username", claims.Username))
	return &SessionInfo{Username: claims.Username, TenantID: claims.TenantID}, nil
}

// Logout tears down the credential and clears the persisted record. Logging
// out while logged out is fine; only a failing clear surfaces an error.
func (b *Broker) Logout(_ context.Context) error {
	var err error
	b.enqueue(func() {
		b.holder.Invalidate()
		if clearErr := b.store.Clear(); clearErr != nil {
			metrics.RecordStoreFailures.WithLabelValues("clear").Inc()
			err = clearErr
			return
		}
		b.log.Info("logged out, auth record cleared")
	})
	return err
}
