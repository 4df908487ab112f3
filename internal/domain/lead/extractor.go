// Package lead captures visitor contact information from chat messages.
// Capture is best-effort and strictly decoupled from the chat turn: it never
// fails the response, and it writes at most one lead per conversation.
package lead

import "regexp"

// emailPattern matches local-part @ domain . TLD of 2+ letters.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// phonePattern matches an optional country code, a 3-digit area code
// (optionally parenthesized), exchange and line number, tolerating spaces,
// dots and dashes as separators. Covers "555-123-4567", "(555) 123 4567",
// "+1 555.123.4567".
var phonePattern = regexp.MustCompile(`(\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)

// ContactInfo holds whatever contact signals a message carried.
type ContactInfo struct {
	Email string
	Phone string
}

// Empty reports whether neither pattern matched.
func (c ContactInfo) Empty() bool {
	return c.Email == "" && c.Phone == ""
}

// ExtractContact runs the two pattern matches independently against the raw
// message and returns the first match of each. No validation beyond the
// patterns: a plausible-looking string is enough of a lead signal.
func ExtractContact(message string) ContactInfo {
	return ContactInfo{
		Email: emailPattern.FindString(message),
		Phone: phonePattern.FindString(message),
	}
}
