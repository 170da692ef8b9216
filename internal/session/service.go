// Package session orchestrates the custody handshake that issues a wallet
// session for an enroll or login intent.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/custody_auth/internal/apperr"
	"github.com/congo-pay/custody_auth/internal/audit"
	"github.com/congo-pay/custody_auth/internal/custody"
	"github.com/congo-pay/custody_auth/internal/lease"
	"github.com/congo-pay/custody_auth/internal/metrics"
)

const (
	opStart = "start_session"

	defaultAccountType = "SCA"
	defaultLeaseTTL    = 30 * time.Second
	releaseTimeout     = 2 * time.Second
)

var defaultBlockchains = []string{"ETH-SEPOLIA"}

// Options is the fixed account policy and call budget of the orchestrator.
type Options struct {
	AccountType string
	Blockchains []string
	CallTimeout time.Duration
	LeaseTTL    time.Duration
}

// Deps aggregates the collaborators of the orchestrator. Locker, Recorder
// and Metrics may be nil.
type Deps struct {
	Backend  custody.Backend
	Keys     *custody.Keys
	Locker   lease.Locker
	Recorder *audit.Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Service runs the enrollment/login state machine.
type Service struct {
	backend  custody.Backend
	keys     *custody.Keys
	locker   lease.Locker
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
}

// NewService builds the orchestrator.
func NewService(d Deps, opts Options) *Service {
	if opts.AccountType == "" {
		opts.AccountType = defaultAccountType
	}
	if len(opts.Blockchains) == 0 {
		opts.Blockchains = defaultBlockchains
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}
	keys := d.Keys
	if keys == nil {
		keys = custody.NewKeys(custody.NewMemoryEpochStore())
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:  d.Backend,
		keys:     keys,
		locker:   d.Locker,
		recorder: d.Recorder,
		metrics:  d.Metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Start validates req and runs the handshake: ensure user, acquire the
// session token, and on enroll initialize the account and dispatch the
// email OTP. Either a complete Result or an error is returned.
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	v, err := req.validate()
	if err != nil {
		s.metrics.Orchestration("invalid", string(apperr.KindValidation))
		return Result{}, err
	}

	release, err := s.acquire(ctx, v)
	if err != nil {
		s.metrics.Orchestration(string(v.intent), string(apperr.KindOf(err)))
		return Result{}, err
	}
	defer release()

	started := time.Now()
	res, err := s.run(ctx, v)
	s.record(v, res, err)

	attrs := []any{
		slog.String("identity", v.identity),
		slog.String("intent", string(v.intent)),
		slog.Duration("duration", time.Since(started)),
	}
	if v.requestID != "" {
		attrs = append(attrs, slog.String("request_id", v.requestID))
	}
	if err != nil {
		s.metrics.Orchestration(string(v.intent), string(apperr.KindOf(err)))
		s.logger.Error("session.start failed", append(attrs, slog.String("kind", string(apperr.KindOf(err))), slog.Any("error", err))...)
		return Result{}, err
	}
	s.metrics.Orchestration(string(v.intent), "ok")
	s.logger.Info("session.start completed", append(attrs, slog.Bool("challenge", res.ChallengeID != nil))...)
	return res, nil
}

func (s *Service) run(ctx context.Context, v validRequest) (Result, error) {
	s.ensureUser(ctx, v)

	bundle, err := s.issueToken(ctx, v)
	if err != nil {
		return Result{}, err
	}

	var challengeID *string
	if v.intent == IntentEnroll {
		if challengeID, err = s.initialize(ctx, v, bundle); err != nil {
			return Result{}, err
		}
		if err := s.dispatchOTP(ctx, v); err != nil {
			return Result{}, err
		}
	}

	return Result{Bundle: bundle, ChallengeID: challengeID, Identity: v.identity}, nil
}

// ensureUser never fails the orchestration; the token exchange reveals
// whether the user is usable.
func (s *Service) ensureUser(ctx context.Context, v validRequest) {
	cctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.backend.CreateUser(cctx, v.identity)
	if err != nil {
		s.metrics.CustodyCall(custody.OpEnsureUser, "transport_error")
		s.logger.Warn("ensure user failed, continuing",
			slog.String("identity", v.identity), slog.Any("error", err))
		return
	}
	outcome := custody.Classify(custody.OpEnsureUser, resp)
	s.metrics.CustodyCall(custody.OpEnsureUser, outcome.String())
	if outcome != custody.OutcomeSuccess {
		s.logger.Warn("ensure user returned non-success status, continuing",
			slog.String("identity", v.identity),
			slog.Int("status", resp.Status),
			slog.Int("code", resp.Code))
		return
	}
	s.logger.Debug("custody user ensured", slog.String("identity", v.identity), slog.Int("status", resp.Status))
}

func (s *Service) issueToken(ctx context.Context, v validRequest) (Bundle, error) {
	cctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.backend.IssueUserToken(cctx, v.identity)
	if err != nil {
		s.metrics.CustodyCall(custody.OpIssueToken, "transport_error")
		return Bundle{}, custody.TransportError(custody.OpIssueToken, err)
	}
	outcome := custody.Classify(custody.OpIssueToken, resp.Response)
	s.metrics.CustodyCall(custody.OpIssueToken, outcome.String())
	if outcome != custody.OutcomeSuccess {
		return Bundle{}, custody.OutcomeError(custody.OpIssueToken, outcome, resp.Response)
	}
	if resp.UserToken == "" || resp.EncryptionKey == "" {
		return Bundle{}, apperr.New(apperr.KindIncompleteSessionBundle, custody.OpIssueToken,
			"session token response is missing userToken or encryptionKey")
	}
	return Bundle{UserToken: resp.UserToken, EncryptionKey: resp.EncryptionKey}, nil
}

func (s *Service) initialize(ctx context.Context, v validRequest, bundle Bundle) (*string, error) {
	key := s.key(ctx, v, custody.OpInitialize)

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.backend.InitializeUser(cctx, custody.InitializeRequest{
		UserToken:      bundle.UserToken,
		IdempotencyKey: key,
		AccountType:    s.opts.AccountType,
		Blockchains:    s.opts.Blockchains,
	})
	if err != nil {
		s.metrics.CustodyCall(custody.OpInitialize, "transport_error")
		return nil, custody.TransportError(custody.OpInitialize, err)
	}
	outcome := custody.Classify(custody.OpInitialize, resp.Response)
	s.metrics.CustodyCall(custody.OpInitialize, outcome.String())
	s.settle(ctx, v, custody.OpInitialize, outcome)
	if outcome != custody.OutcomeSuccess {
		return nil, custody.OutcomeError(custody.OpInitialize, outcome, resp.Response)
	}

	if resp.Code == custody.CodeAlreadyInitialized {
		s.logger.Info("custody account already initialized", slog.String("identity", v.identity))
		return nil, nil
	}
	if resp.ChallengeID == "" {
		return nil, nil
	}
	id := resp.ChallengeID
	return &id, nil
}

func (s *Service) dispatchOTP(ctx context.Context, v validRequest) error {
	key := s.key(ctx, v, custody.OpDispatchOTP)

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	resp, err := s.backend.DispatchEmailOTP(cctx, custody.OTPRequest{
		Email:          v.identity,
		DeviceID:       v.deviceID,
		IdempotencyKey: key,
	})
	if err != nil {
		s.metrics.CustodyCall(custody.OpDispatchOTP, "transport_error")
		return custody.TransportError(custody.OpDispatchOTP, err)
	}
	outcome := custody.Classify(custody.OpDispatchOTP, resp)
	s.metrics.CustodyCall(custody.OpDispatchOTP, outcome.String())
	s.settle(ctx, v, custody.OpDispatchOTP, outcome)
	if outcome != custody.OutcomeSuccess {
		return custody.OutcomeError(custody.OpDispatchOTP, outcome, resp)
	}
	return nil
}

// key returns the idempotency key for op. When the epoch store is down the
// key is scoped to this request.
func (s *Service) key(ctx context.Context, v validRequest, op string) string {
	key, err := s.keys.Key(ctx, v.identity, op, v.clientKey)
	if err == nil {
		return key
	}
	attempt := v.requestID
	if attempt == "" {
		attempt = uuid.NewString()
	}
	s.logger.Warn("idempotency epoch unavailable, using a per-request key",
		slog.String("identity", v.identity), slog.String("op", op), slog.Any("error", err))
	return custody.DeriveKey(v.identity, op, "fallback:"+attempt)
}

func (s *Service) settle(ctx context.Context, v validRequest, op string, outcome custody.Outcome) {
	if err := s.keys.Settle(ctx, v.identity, op, v.clientKey, outcome); err != nil {
		s.logger.Warn("idempotency epoch not advanced",
			slog.String("identity", v.identity), slog.String("op", op), slog.Any("error", err))
	}
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// acquire takes the per-identity lease. Lease store failures fail open.
func (s *Service) acquire(ctx context.Context, v validRequest) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Acquire(ctx, v.identity, s.opts.LeaseTTL)
	if errors.Is(err, lease.ErrHeld) {
		return nil, apperr.New(apperr.KindSessionInProgress, opStart, "a session request for this identity is already in progress")
	}
	if err != nil {
		s.logger.Warn("session lease unavailable, continuing without it",
			slog.String("identity", v.identity), slog.Any("error", err))
		return noop, nil
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := release(rctx); err != nil {
			s.logger.Warn("session lease release failed", slog.String("identity", v.identity), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) record(v validRequest, res Result, err error) {
	rec := audit.Record{
		Identity:    v.identity,
		Intent:      string(v.intent),
		DeviceID:    v.deviceID,
		ChallengeID: res.ChallengeID,
		RequestID:   v.requestID,
		Outcome:     audit.OutcomeIssued,
	}
	if err != nil {
		rec.Outcome = audit.OutcomeFailed
		rec.ErrorKind = string(apperr.KindOf(err))
	}
	s.recorder.Record(rec)
}
