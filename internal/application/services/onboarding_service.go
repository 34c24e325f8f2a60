package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/localstore"
)

// WizardStatus is the caller-facing view of a wizard session.
type WizardStatus struct {
	Step      onboarding.Step            `json:"step"`
	StepName  string                     `json:"stepName"`
	Selection onboarding.WizardSelection `json:"selection"`
	Completed bool                       `json:"completed"`
}

// OnboardingService owns the per-user wizard sessions and the completion
// lifecycle. Starting the wizard for a user who already completed onboarding
// short-circuits without touching the catalog.
type OnboardingService struct {
	options *OptionService
	store   *localstore.Store
	logger  *logging.ChanneledLogger

	mu      sync.Mutex
	wizards map[string]*onboarding.Wizard
}

// NewOnboardingService creates a new onboarding orchestration service
func NewOnboardingService(options *OptionService, store *localstore.Store, logger *logging.ChanneledLogger) *OnboardingService {
	return &OnboardingService{
		options: options,
		store:   store,
		logger:  logger,
		wizards: make(map[string]*onboarding.Wizard),
	}
}

// Start begins (or resumes) the wizard for a user. Returns the current status;
// Completed=true means the flow is done and the status carries the persisted
// final selection instead of a live wizard session. A brand-new run starts
// clean: leftovers of an abandoned earlier run are purged before the first
// step renders.
func (s *OnboardingService) Start(ctx context.Context, userID string) (*WizardStatus, error) {
	completed, err := s.IsComplete(ctx, userID)
	if err != nil {
		return nil, err
	}
	if completed {
		s.logger.Onboarding().Debug("Onboarding already completed, skipping wizard", "userId", userID)
		return s.completedStatus(ctx, userID), nil
	}

	s.mu.Lock()
	w, ok := s.wizards[userID]
	if !ok {
		w = onboarding.NewWizard()
		s.wizards[userID] = w
	}
	status := s.statusLocked(w)
	s.mu.Unlock()

	if !ok {
		s.purgeStaleRun(ctx, userID)
	}

	s.logger.Onboarding().Info("Wizard session started", "userId", userID, "step", status.StepName)
	return status, nil
}

// Status reports the current wizard state for a user.
func (s *OnboardingService) Status(ctx context.Context, userID string) (*WizardStatus, error) {
	completed, err := s.IsComplete(ctx, userID)
	if err != nil {
		return nil, err
	}
	if completed {
		return s.completedStatus(ctx, userID), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wizards[userID]
	if !ok {
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	return s.statusLocked(w), nil
}

// OptionsForStep loads the option list the current step displays. The
// confirmation step has no options.
func (s *OnboardingService) OptionsForStep(ctx context.Context, userID string) ([]onboarding.Option, error) {
	s.mu.Lock()
	w, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	step := w.Step()
	selection := w.Selection()
	s.mu.Unlock()

	switch step {
	case onboarding.StepMainCategory:
		return s.options.MainCategories(ctx, userID)
	case onboarding.StepSubCategory:
		return s.options.SubCategories(ctx, userID, selection.MainCategory.ID)
	case onboarding.StepFilters:
		return s.options.Tags(ctx, userID)
	default:
		return nil, nil
	}
}

// Select applies an option choice to the user's wizard. The chosen option
// must be one the current step actually offers.
func (s *OnboardingService) Select(ctx context.Context, userID string, optionID int64) (*WizardStatus, error) {
	options, err := s.OptionsForStep(ctx, userID)
	if err != nil {
		return nil, err
	}

	var chosen *onboarding.Option
	for i := range options {
		if options[i].ID == optionID {
			chosen = &options[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("option %d is not offered on the current step", optionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wizards[userID]
	if !ok {
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	w.SelectOption(*chosen)
	return s.statusLocked(w), nil
}

// Advance moves from the tag step to confirmation.
func (s *OnboardingService) Advance(userID string) (*WizardStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wizards[userID]
	if !ok {
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	if !w.Advance() {
		return nil, fmt.Errorf("cannot advance from %s without a tag selection", w.Step())
	}
	return s.statusLocked(w), nil
}

// Back steps the wizard backwards.
func (s *OnboardingService) Back(userID string) (*WizardStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wizards[userID]
	if !ok {
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	w.GoBack()
	return s.statusLocked(w), nil
}

// Submit freezes the selection, persists it both as the durable final
// selection and as the pending setup payload, marks onboarding complete and
// purges the user's option caches. The pending payload is consumed later by
// session reconciliation; the final selection outlives it. Submitting again
// after completion writes nothing and returns the frozen selection.
func (s *OnboardingService) Submit(ctx context.Context, userID string) (*WizardStatus, error) {
	s.mu.Lock()
	w, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		completed, err := s.IsComplete(ctx, userID)
		if err != nil {
			return nil, err
		}
		if completed {
			s.logger.Onboarding().Debug("Duplicate submit short-circuited", "userId", userID)
			return s.completedStatus(ctx, userID), nil
		}
		return nil, fmt.Errorf("no wizard session for user %s", userID)
	}
	selection, err := w.Submit()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	start := time.Now()

	if err := s.store.SetEntry(ctx, localstore.FinalSelectionKey(userID), "", selection); err != nil {
		return nil, fmt.Errorf("failed to persist final selection: %w", err)
	}

	if err := s.store.SetEntry(ctx, localstore.PendingSelectionKey(userID), "", selection); err != nil {
		return nil, fmt.Errorf("failed to persist pending selection: %w", err)
	}

	if err := s.CompleteOnboarding(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.options.PurgeOptionCaches(ctx, userID); err != nil {
		// Stale caches self-invalidate on the next version bump; log and move on.
		s.logger.Onboarding().Warn("Option cache purge failed after submit", "userId", userID, "error", err.Error())
	}

	s.mu.Lock()
	delete(s.wizards, userID)
	s.mu.Unlock()

	s.logger.Onboarding().Info("Wizard submitted", "userId", userID,
		"interests", len(selection.InterestIDs()), "duration", time.Since(start))
	return &WizardStatus{Completed: true, Selection: selection}, nil
}

// CompleteOnboarding sets the durable completion flag. Idempotent; safe to
// call from submit and from reconciliation alike.
func (s *OnboardingService) CompleteOnboarding(ctx context.Context, userID string) error {
	return s.store.SetEntry(ctx, localstore.CompletedKey(userID), "", true)
}

// IsComplete reports whether the user has finished onboarding.
func (s *OnboardingService) IsComplete(ctx context.Context, userID string) (bool, error) {
	var completed bool
	ok, err := s.store.GetEntry(ctx, localstore.CompletedKey(userID), "", &completed)
	if err != nil {
		return false, err
	}
	return ok && completed, nil
}

// Restart clears the completion flag so a user can retake the wizard from
// profile settings. The interest replace on the next submit converges on the
// new selection.
func (s *OnboardingService) Restart(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, localstore.CompletedKey(userID)); err != nil {
		return err
	}

	s.mu.Lock()
	s.wizards[userID] = onboarding.NewWizard()
	s.mu.Unlock()

	s.purgeStaleRun(ctx, userID)

	s.logger.Onboarding().Info("Wizard restarted", "userId", userID)
	return nil
}

// FinalSelection returns the frozen selection of a completed run, if any.
func (s *OnboardingService) FinalSelection(ctx context.Context, userID string) (*onboarding.WizardSelection, error) {
	var selection onboarding.WizardSelection
	ok, err := s.store.GetEntry(ctx, localstore.FinalSelectionKey(userID), "", &selection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &selection, nil
}

// PendingSelection returns the submitted-but-unconsumed selection, if any.
func (s *OnboardingService) PendingSelection(ctx context.Context, userID string) (*onboarding.WizardSelection, error) {
	var selection onboarding.WizardSelection
	ok, err := s.store.GetEntry(ctx, localstore.PendingSelectionKey(userID), "", &selection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &selection, nil
}

// ConsumePendingSelection removes the pending payload once reconciliation has
// durably persisted it.
func (s *OnboardingService) ConsumePendingSelection(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, localstore.PendingSelectionKey(userID))
}

// purgeStaleRun clears every artifact of a previous run when a new one
// starts, so a partially completed earlier run never leaks cached options or
// an unconsumed payload into it. Purge failures degrade to stale-but-versioned
// cache entries, not to a broken run.
func (s *OnboardingService) purgeStaleRun(ctx context.Context, userID string) {
	if err := s.options.PurgeOptionCaches(ctx, userID); err != nil {
		s.logger.Onboarding().Warn("Option cache purge failed at wizard start", "userId", userID, "error", err.Error())
	}
	if err := s.store.Delete(ctx, localstore.PendingSelectionKey(userID)); err != nil {
		s.logger.Onboarding().Warn("Stale pending selection purge failed", "userId", userID, "error", err.Error())
	}
	if err := s.store.Delete(ctx, localstore.FinalSelectionKey(userID)); err != nil {
		s.logger.Onboarding().Warn("Stale final selection purge failed", "userId", userID, "error", err.Error())
	}
}

// completedStatus builds the status served once onboarding has finished,
// carrying the persisted final selection when it is still readable.
func (s *OnboardingService) completedStatus(ctx context.Context, userID string) *WizardStatus {
	status := &WizardStatus{Completed: true}
	final, err := s.FinalSelection(ctx, userID)
	if err != nil {
		s.logger.Onboarding().Warn("Final selection read failed", "userId", userID, "error", err.Error())
		return status
	}
	if final != nil {
		status.Selection = *final
	}
	return status
}

func (s *OnboardingService) statusLocked(w *onboarding.Wizard) *WizardStatus {
	return &WizardStatus{
		Step:      w.Step(),
		StepName:  w.Step().String(),
		Selection: w.Selection(),
	}
}
