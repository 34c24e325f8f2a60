// Package templates provides email content builders
package templates

import "fmt"

// WelcomeEmailProps carries the values rendered into the welcome email sent
// after first-time setup completes.
type WelcomeEmailProps struct {
	Name           string
	MarketplaceURL string
}

// GetWelcomeEmailContent composes the body of the welcome email.
func GetWelcomeEmailContent(props WelcomeEmailProps) string {
	name := props.Name
	if name == "" {
		name = "there"
	}

	marketplaceURL := props.MarketplaceURL
	if marketplaceURL == "" {
		marketplaceURL = "https://aimarket.dev"
	}

	content := GetParagraph(fmt.Sprintf("Hi %s,", name))
	content += GetParagraph("Your account is ready. We used the interests you picked during setup to tailor your feed, so the listings you see first should already feel relevant.")
	content += GetButton(ButtonProps{
		Text: "Browse the marketplace",
		URL:  marketplaceURL,
	})
	content += GetParagraph("You can change your interests at any time from your profile settings.")

	return content
}
