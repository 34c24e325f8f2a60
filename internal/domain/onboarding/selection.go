package onboarding

import "fmt"

// WizardSelection holds the in-progress or final set of onboarding choices.
// SubCategory is only meaningful once MainCategory is set, and Filters only
// once SubCategory is set; clearing an earlier selection clears everything
// that depends on it.
type WizardSelection struct {
	MainCategory *Option  `json:"mainCategory"`
	SubCategory  *Option  `json:"subCategory"`
	Filters      []Option `json:"filters"`
}

// Clone returns an independent copy so frozen outputs cannot be mutated
// through shared slices.
func (s WizardSelection) Clone() WizardSelection {
	out := WizardSelection{}
	if s.MainCategory != nil {
		mc := *s.MainCategory
		out.MainCategory = &mc
	}
	if s.SubCategory != nil {
		sc := *s.SubCategory
		out.SubCategory = &sc
	}
	if len(s.Filters) > 0 {
		out.Filters = make([]Option, len(s.Filters))
		copy(out.Filters, s.Filters)
	}
	return out
}

// HasFilter reports whether a tag with the given id is already selected.
func (s WizardSelection) HasFilter(id int64) bool {
	for _, f := range s.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Validate enforces the dependency invariant between the three levels.
func (s WizardSelection) Validate() error {
	if s.SubCategory != nil && s.MainCategory == nil {
		return fmt.Errorf("sub category set without a main category")
	}
	if len(s.Filters) > 0 && s.SubCategory == nil {
		return fmt.Errorf("filters set without a sub category")
	}
	return nil
}

// InterestIDs returns the de-duplicated union of the main category, sub
// category and filter ids, in insertion order. This is the exact set
// persisted as the user's interests during first-time setup.
func (s WizardSelection) InterestIDs() []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0, len(s.Filters)+2)

	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if s.MainCategory != nil {
		add(s.MainCategory.ID)
	}
	if s.SubCategory != nil {
		add(s.SubCategory.ID)
	}
	for _, f := range s.Filters {
		add(f.ID)
	}
	return ids
}
