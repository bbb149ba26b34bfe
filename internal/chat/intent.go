package chat

import "strings"

// Intent is the classified category of a user message.
type Intent int

const (
	IntentDefault Intent = iota
	IntentShowImage
	IntentSpecs
	IntentPrice
	IntentColors
	IntentMaintenance
)

// String returns the intent name for logging.
func (i Intent) String() string {
	switch i {
	case IntentShowImage:
		return "show_image"
	case IntentSpecs:
		return "specs"
	case IntentPrice:
		return "price"
	case IntentColors:
		return "colors"
	case IntentMaintenance:
		return "maintenance"
	default:
		return "default"
	}
}

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentShowImage, []string{"show car", "see car", "car image", "picture", "photo", "what does it look like"}},
	{IntentSpecs, []string{"specs", "specifications", "features"}},
	{IntentPrice, []string{"price", "cost", "how much"}},
	{IntentColors, []string{"color", "colors", "available in"}},
	{IntentMaintenance, []string{"maintenance", "service"}},
}

// ClassifyIntent buckets free text into an intent by case-insensitive
// substring match. Categories are checked in fixed precedence order and
// the first match wins.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, group := range intentKeywords {
		if containsAny(lower, group.keywords) {
			return group.intent
		}
	}
	return IntentDefault
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
