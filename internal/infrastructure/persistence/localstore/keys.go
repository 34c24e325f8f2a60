package localstore

import "fmt"

// Key builders for the onboarding and session namespaces. Option caches are
// versioned per user so a cache-version bump or a submit-time purge clears
// them together via the shared prefix.

const onboardingPrefix = "onboarding:"

// OptionsPrefix is the prefix shared by every cached option list for a user.
func OptionsPrefix(userID string) string {
	return onboardingPrefix + "options:" + userID + ":"
}

// MainCategoriesKey caches the top-level category list.
func MainCategoriesKey(userID string) string {
	return OptionsPrefix(userID) + "main"
}

// SubCategoriesKey caches the children of one main category.
func SubCategoriesKey(userID string, parentID int64) string {
	return fmt.Sprintf("%ssub:%d", OptionsPrefix(userID), parentID)
}

// TagsKey caches the flat tag list.
func TagsKey(userID string) string {
	return OptionsPrefix(userID) + "tags"
}

// PendingSelectionKey holds the submitted wizard selection until the
// reconciler consumes it during first-time setup.
func PendingSelectionKey(userID string) string {
	return onboardingPrefix + "pending:" + userID
}

// FinalSelectionKey holds the frozen selection of a completed run. Unlike the
// pending payload it survives reconciliation, so duplicate submits and
// re-entry after completion can serve the persisted choices.
func FinalSelectionKey(userID string) string {
	return onboardingPrefix + "final:" + userID
}

// CompletedKey is the per-user onboarding completion flag.
func CompletedKey(userID string) string {
	return onboardingPrefix + "completed:" + userID
}

// LastActivityKey records the most recent observed user activity, shared by
// every session of the user for cross-tab idle resync.
func LastActivityKey(userID string) string {
	return "session:last_activity:" + userID
}
