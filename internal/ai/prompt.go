package ai

import (
	"fmt"
	"strings"
)

const screeningPrompt = `You review listings on a university student marketplace before they go live.

Rate how likely the listing is genuine, from 0 (almost certainly fake, spam, prohibited or misleading) to 100 (clearly legitimate).

Consider:

* Does the title match the description and the category?
* Is the price plausible for a used item of this kind?
* Does the text contain contact details, links, payment requests outside the platform, or prohibited goods?

Answer on one line in exactly this form: $<score>$ <one sentence rationale>
Do not add anything else.`

// Listing is the text the screener sees.
type Listing struct {
	Title       string
	Description string
	Category    string
	Price       string
	ImageCount  int
}

func BuildScreeningPrompt(l Listing) string {
	details := fmt.Sprintf("Title: %s\nCategory: %s\nPrice: %s\nImages: %d\nDescription: %s",
		strings.TrimSpace(l.Title), l.Category, l.Price, l.ImageCount, strings.TrimSpace(l.Description))
	return screeningPrompt + "\n\n" + details
}
