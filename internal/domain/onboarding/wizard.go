package onboarding

import "fmt"

// Step identifies a wizard step. The flow is strictly linear:
// main category -> sub category -> tags -> confirmation.
type Step int

const (
	StepMainCategory Step = iota + 1
	StepSubCategory
	StepFilters
	StepConfirm
)

// String returns the wire name of the step.
func (s Step) String() string {
	switch s {
	case StepMainCategory:
		return "main_category"
	case StepSubCategory:
		return "sub_category"
	case StepFilters:
		return "filters"
	case StepConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Wizard drives the 4-step onboarding flow. Transitions are synchronous and
// driven by direct user input, so the type carries no locking of its own;
// callers that share an instance across goroutines must serialize access.
type Wizard struct {
	step      Step
	selection WizardSelection
}

// NewWizard creates a wizard positioned at the first step with no selections.
func NewWizard() *Wizard {
	return &Wizard{step: StepMainCategory}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Selection returns a snapshot of the current selections.
func (w *Wizard) Selection() WizardSelection {
	return w.selection.Clone()
}

// SelectOption applies an option choice to the current step.
//
// Step 1 sets the main category, clears everything dependent on it and moves
// to step 2. Step 2 sets the sub category, clears the filters and moves to
// step 3. Step 3 toggles the tag's membership and stays put. Selections are
// ignored on the confirmation step.
func (w *Wizard) SelectOption(o Option) {
	switch w.step {
	case StepMainCategory:
		mc := o
		w.selection = WizardSelection{MainCategory: &mc}
		w.step = StepSubCategory
	case StepSubCategory:
		sc := o
		w.selection.SubCategory = &sc
		w.selection.Filters = nil
		w.step = StepFilters
	case StepFilters:
		w.toggleFilter(o)
	}
}

func (w *Wizard) toggleFilter(o Option) {
	if w.selection.HasFilter(o.ID) {
		kept := w.selection.Filters[:0]
		for _, f := range w.selection.Filters {
			if f.ID != o.ID {
				kept = append(kept, f)
			}
		}
		w.selection.Filters = kept
		return
	}
	w.selection.Filters = append(w.selection.Filters, o)
}

// Advance moves from the tag step to confirmation. It is a no-op with empty
// filters and on every other step; it reports whether the step changed.
func (w *Wizard) Advance() bool {
	if w.step != StepFilters || len(w.selection.Filters) == 0 {
		return false
	}
	w.step = StepConfirm
	return true
}

// GoBack steps backwards, clearing the selection the abandoned step owned.
// It is a no-op on the first step and on the confirmation step.
func (w *Wizard) GoBack() {
	switch w.step {
	case StepSubCategory:
		w.selection.SubCategory = nil
		w.step = StepMainCategory
	case StepFilters:
		w.selection.Filters = nil
		w.step = StepSubCategory
	}
}

// Submit freezes the current selection as the flow's output. It is only
// legal on the confirmation step.
func (w *Wizard) Submit() (WizardSelection, error) {
	if w.step != StepConfirm {
		return WizardSelection{}, fmt.Errorf("submit is only valid on %s, current step is %s", StepConfirm, w.step)
	}
	if err := w.selection.Validate(); err != nil {
		return WizardSelection{}, err
	}
	return w.selection.Clone(), nil
}

// Reset returns the wizard to a pristine first step.
func (w *Wizard) Reset() {
	w.step = StepMainCategory
	w.selection = WizardSelection{}
}
