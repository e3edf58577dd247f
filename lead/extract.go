// Package lead detects contact details (phone numbers, email addresses) in
// free-form chat messages so they can be captured as leads.
package lead

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	// Loose candidate matcher; candidates are then validated with
	// libphonenumber before falling back to a digit count check.
	phoneCandidateRe = regexp.MustCompile(`\+?[\d\-\s()]{7,}\d`)
	digitsRe         = regexp.MustCompile(`\D`)
)

type Contact struct {
	Phone string
	Email string
}

func (c Contact) Empty() bool {
	return c.Phone == "" && c.Email == ""
}

// Extract finds the first phone number and email address in the message.
// Valid phone numbers are normalized to E.164; otherwise a bare digit string
// of plausible length (7-15 digits) is accepted as-is.
func Extract(message string) Contact {
	message = strings.TrimSpace(message)
	if message == "" {
		return Contact{}
	}
	return Contact{
		Phone: extractPhone(message),
		Email: extractEmail(message),
	}
}

func extractEmail(message string) string {
	if match := emailRe.FindString(message); match != "" {
		return strings.ToLower(match)
	}
	return ""
}

func extractPhone(message string) string {
	for _, candidate := range phoneCandidateRe.FindAllString(message, -1) {
		num, err := phonenumbers.Parse(candidate, "ZZ")
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(num) {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	// Fallback for numbers written without a country code.
	if candidate := phoneCandidateRe.FindString(message); candidate != "" {
		digits := digitsRe.ReplaceAllString(candidate, "")
		if len(digits) >= 7 && len(digits) <= 15 {
			return digits
		}
	}
	return ""
}

// LooksLikeContact is the cheap pre-check used by the chat flow: an email-ish
// token or at least six digits anywhere in the message.
func LooksLikeContact(message string) bool {
	cleaned := strings.NewReplacer(",", " ", ";", " ").Replace(message)
	for _, part := range strings.Fields(cleaned) {
		if strings.Contains(part, "@") && strings.Contains(part, ".") {
			return true
		}
	}
	digits := 0
	for _, r := range message {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 6
}
