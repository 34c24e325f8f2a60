package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterestIDsUnionAndDedup(t *testing.T) {
	main := opt(5, "Digital Goods")
	sub := opt(7, "Templates")
	sel := WizardSelection{
		MainCategory: &main,
		SubCategory:  &sub,
		Filters:      []Option{opt(9, "open-source"), opt(7, "Templates"), opt(3, "commercial")},
	}

	assert.Equal(t, []int64{5, 7, 9, 3}, sel.InterestIDs())
}

func TestInterestIDsSkipsInvalidIDs(t *testing.T) {
	main := opt(0, "broken")
	sel := WizardSelection{
		MainCategory: &main,
		Filters:      []Option{opt(-1, "negative"), opt(4, "ok")},
	}

	assert.Equal(t, []int64{4}, sel.InterestIDs())
}

func TestInterestIDsEmptySelection(t *testing.T) {
	assert.Empty(t, WizardSelection{}.InterestIDs())
}

func TestValidateDependencyChain(t *testing.T) {
	sub := opt(7, "Templates")
	assert.Error(t, WizardSelection{SubCategory: &sub}.Validate())

	main := opt(5, "Digital Goods")
	assert.Error(t, WizardSelection{MainCategory: &main, Filters: []Option{opt(9, "x")}}.Validate())

	assert.NoError(t, WizardSelection{MainCategory: &main, SubCategory: &sub}.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	main := opt(5, "Digital Goods")
	sel := WizardSelection{MainCategory: &main, Filters: []Option{opt(9, "x")}}

	clone := sel.Clone()
	clone.MainCategory.ID = 50
	clone.Filters[0].ID = 90

	assert.Equal(t, int64(5), sel.MainCategory.ID)
	assert.Equal(t, int64(9), sel.Filters[0].ID)
}

func TestOptionValidate(t *testing.T) {
	assert.NoError(t, opt(1, "ok").Validate())
	assert.Error(t, opt(0, "no id").Validate())
	assert.Error(t, Option{ID: 2}.Validate())
}
