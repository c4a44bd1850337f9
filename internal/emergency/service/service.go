// Package service implements the emergency report pipeline: precondition
// checks, local persistence, ledger submission, and best-effort mirroring
// into the activity ledger.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trailguard/internal/activity"
	"trailguard/internal/chain"
	"trailguard/internal/emergency/metrics"
	"trailguard/internal/emergency/models"
	"trailguard/internal/emergency/ports"
	"trailguard/internal/emergency/remark"
	"trailguard/internal/emergency/store"
	"trailguard/internal/gps"
	"trailguard/pkg/apperrors"
	"trailguard/pkg/domain"
)

// CreateInput carries the caller-supplied fields of a new report. Identity,
// status, and timestamps are assigned by the pipeline.
type CreateInput struct {
	Type               models.Type
	Severity           models.Severity
	Description        string
	Location           models.GPSPoint
	RelatedLogID       *domain.LogID
	RelatedMilestoneID *domain.MilestoneID
	Contacts           []string
	Metadata           map[string]string
}

// Service coordinates the report pipeline. Persist-before-network is the core
// invariant: once the preconditions pass, a record exists locally no matter
// what the ledger does afterwards.
type Service struct {
	store    store.Store
	wallet   ports.Wallet
	gateway  ports.ChainGateway
	activity ports.ActivityPublisher
	tracker  *gps.Tracker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	mu    sync.RWMutex
	cache map[domain.EmergencyID]*models.Emergency
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithActivityPublisher(p ports.ActivityPublisher) Option {
	return func(s *Service) { s.activity = p }
}

// WithTracker enables advisory GPS plausibility scoring on report locations.
func WithTracker(t *gps.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(st store.Store, wallet ports.Wallet, gateway ports.ChainGateway, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "store is required")
	}
	if wallet == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "wallet is required")
	}
	if gateway == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "chain gateway is required")
	}
	s := &Service{
		store:   st,
		wallet:  wallet,
		gateway: gateway,
		logger:  slog.Default(),
		tracer:  otel.Tracer("trailguard/emergency"),
		now:     time.Now,
		cache:   make(map[domain.EmergencyID]*models.Emergency),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateAndSubmit runs the full pipeline for one report. Precondition
// failures return before anything is persisted; after the local save, a
// failed ledger submission still returns the persisted record alongside a
// submission error, and the record stays pending. The pipeline never retries
// on its own: a retry is a fresh call producing a fresh record.
func (s *Service) CreateAndSubmit(ctx context.Context, input CreateInput) (*models.Emergency, error) {
	ctx, span := s.tracer.Start(ctx, "emergency.CreateAndSubmit")
	defer span.End()

	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	account, err := s.checkPreconditions()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("emergency.type", string(input.Type)),
		attribute.String("emergency.severity", string(input.Severity)),
	)

	location := s.scoreLocation(input)

	now := s.now().UTC()
	em := &models.Emergency{
		ID:                 domain.NewEmergencyID(),
		Type:               input.Type,
		Severity:           input.Severity,
		Description:        input.Description,
		Location:           location,
		Reporter:           account,
		Status:             models.StatusPending,
		RelatedLogID:       input.RelatedLogID,
		RelatedMilestoneID: input.RelatedMilestoneID,
		Contacts:           append([]string(nil), input.Contacts...),
		CreatedAt:          now,
	}
	if len(input.Metadata) > 0 {
		em.Metadata = make(map[string]string, len(input.Metadata))
		for k, v := range input.Metadata {
			em.Metadata[k] = v
		}
	}
	span.SetAttributes(attribute.String("emergency.id", em.ID.String()))

	// Local record first; only after it is durable do we touch the network.
	if err := s.persist(ctx, em); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "saving emergency before submission")
	}
	if s.metrics != nil {
		s.metrics.ReportsCreated.Inc()
	}
	s.emitActivity(ctx, activity.KindReportCreated, em, nil)

	payload, err := remark.Encode(em)
	if err != nil {
		return s.recordSubmitFailure(ctx, em, err)
	}

	start := s.now()
	res, err := s.gateway.Submit(ctx, string(account), payload)
	if s.metrics != nil {
		s.metrics.SubmitDuration.Observe(s.now().Sub(start).Seconds())
	}
	if err != nil {
		return s.recordSubmitFailure(ctx, em, err)
	}
	if !res.Success {
		return s.recordSubmitFailure(ctx, em,
			apperrors.New(apperrors.CodeSubmission, orUnknown(res.Error)))
	}

	submittedAt := s.now().UTC()
	em.Status = models.StatusSubmitted
	em.TxHash = res.TxHash
	em.BlockNumber = res.BlockNumber
	em.SubmittedAt = &submittedAt
	if err := s.persist(ctx, em); err != nil {
		// The ledger accepted the report; losing the status update is bad but
		// the pending record from the first save still exists.
		s.logger.Error("saving submitted emergency", "emergency_id", em.ID, "error", err)
		return em.Clone(), apperrors.Wrap(err, apperrors.CodePersistence, "saving submission outcome")
	}
	if s.metrics != nil {
		s.metrics.ReportsSubmitted.Inc()
	}
	s.emitActivity(ctx, activity.KindReportSubmitted, em, map[string]string{
		"tx_hash": res.TxHash,
	})
	s.logger.Info("emergency submitted",
		"emergency_id", em.ID, "tx_hash", res.TxHash, "block", res.BlockNumber)
	return em.Clone(), nil
}

// GetByID returns one record, preferring the in-memory copy which may carry a
// fresher status than a slow store.
func (s *Service) GetByID(ctx context.Context, id domain.EmergencyID) (*models.Emergency, error) {
	s.mu.RLock()
	cached := s.cache[id]
	s.mu.RUnlock()
	if cached != nil {
		return cached.Clone(), nil
	}

	all, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "loading emergencies")
	}
	for _, em := range all {
		if em.ID == id {
			return em.Clone(), nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeNotFound, "emergency %s not found", id)
}

// GetByLogID lists the reports attached to one expedition log, store order
// first, with in-memory records layered on top (the cache wins on conflict).
func (s *Service) GetByLogID(ctx context.Context, logID domain.LogID) ([]*models.Emergency, error) {
	stored, err := s.store.GetByLogID(ctx, logID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "loading emergencies by log")
	}

	out := make([]*models.Emergency, 0, len(stored))
	index := make(map[domain.EmergencyID]int, len(stored))
	for _, em := range stored {
		index[em.ID] = len(out)
		out = append(out, em.Clone())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, em := range s.cache {
		if em.RelatedLogID == nil || *em.RelatedLogID != logID {
			continue
		}
		if i, ok := index[id]; ok {
			out[i] = em.Clone()
		} else {
			out = append(out, em.Clone())
		}
	}
	return out, nil
}

// GetActive returns the earliest-created record still in an active status, or
// a not-found error when every report is resolved.
func (s *Service) GetActive(ctx context.Context) (*models.Emergency, error) {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "loading emergencies")
	}
	for _, em := range all {
		if em.Status.IsActive() {
			return em.Clone(), nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "no active emergency")
}

// GetActiveByLog narrows GetActive to one expedition log.
func (s *Service) GetActiveByLog(ctx context.Context, logID domain.LogID) (*models.Emergency, error) {
	list, err := s.GetByLogID(ctx, logID)
	if err != nil {
		return nil, err
	}
	for _, em := range list {
		if em.Status.IsActive() {
			return em, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeNotFound, "no active emergency for log %s", logID)
}

func (s *Service) validateInput(input CreateInput) error {
	if !input.Type.IsValid() {
		return apperrors.Newf(apperrors.CodeInvalidInput, "unknown emergency type %q", input.Type)
	}
	if !input.Severity.IsValid() {
		return apperrors.Newf(apperrors.CodeInvalidInput, "unknown severity %q", input.Severity)
	}
	if !input.Location.InRange() {
		return apperrors.New(apperrors.CodeInvalidInput, "location coordinates out of range")
	}
	return nil
}

func (s *Service) checkPreconditions() (domain.AccountID, error) {
	if !s.wallet.Unlocked() {
		return "", apperrors.New(apperrors.CodeWalletLocked, "wallet is locked")
	}
	account, ok := s.wallet.ActiveAccount()
	if !ok || account.IsZero() {
		return "", apperrors.New(apperrors.CodeNoAccount, "no active account selected")
	}
	switch s.gateway.State() {
	case chain.StateConnected:
	case chain.StateConnecting:
		return "", apperrors.New(apperrors.CodeConnecting, "chain connection still in progress")
	default:
		return "", apperrors.New(apperrors.CodeNotConnected, "not connected to the chain")
	}
	return account, nil
}

// scoreLocation annotates the location with an advisory plausibility score.
// Validation never blocks a report: an implausible fix still goes out.
func (s *Service) scoreLocation(input CreateInput) models.GPSPoint {
	if s.tracker != nil && input.RelatedLogID != nil {
		point, _ := s.tracker.Observe(*input.RelatedLogID, input.Location)
		return point
	}
	point := input.Location
	gps.Annotate(&point, gps.ValidatePoint(point, nil))
	return point
}

func (s *Service) persist(ctx context.Context, em *models.Emergency) error {
	if err := s.store.Save(ctx, em); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[em.ID] = em.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Service) recordSubmitFailure(ctx context.Context, em *models.Emergency, cause error) (*models.Emergency, error) {
	if em.Metadata == nil {
		em.Metadata = make(map[string]string, 1)
	}
	em.Metadata["submission_error"] = cause.Error()
	if err := s.persist(ctx, em); err != nil {
		s.logger.Error("saving failed submission", "emergency_id", em.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.SubmitFailures.Inc()
	}
	s.emitActivity(ctx, activity.KindReportSubmitFailed, em, map[string]string{
		"error": cause.Error(),
	})
	s.logger.Warn("emergency submission failed", "emergency_id", em.ID, "error", cause)
	return em.Clone(), apperrors.Wrap(cause, apperrors.CodeSubmission, "submitting emergency remark")
}

func (s *Service) emitActivity(ctx context.Context, kind activity.Kind, em *models.Emergency, extra map[string]string) {
	if s.activity == nil {
		return
	}
	details := map[string]string{
		"type":     string(em.Type),
		"severity": string(em.Severity),
	}
	for k, v := range extra {
		details[k] = v
	}
	if err := s.activity.Emit(ctx, activity.Event{
		Kind:      kind,
		RefID:     em.ID.String(),
		Account:   em.Reporter,
		Timestamp: s.now().UTC(),
		Details:   details,
	}); err != nil {
		s.logger.Debug("activity emit failed", "kind", kind, "error", err)
	}
}

func orUnknown(msg string) string {
	if msg == "" {
		return "submission rejected"
	}
	return msg
}
