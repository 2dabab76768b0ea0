package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxSubjectLength is the longest subject, in runes, stored on a ticket.
const MaxSubjectLength = 500

// EmptySubject replaces blank subjects on imported tickets.
const EmptySubject = "(no subject)"

var whitespaceRe = regexp.MustCompile(`\s+`)

// lowerCase maps to lower case without full case folding, so "ß" survives
// instead of becoming "ss". cases.Caser keeps state, so each call gets its own.
func lowerCase(s string) string {
	return cases.Lower(language.Und).String(s)
}

// NormalizeEmail trims and lowercases an email so lookups match regardless of
// how the source system capitalised it. Values that are not plausibly an
// address (no local part or domain) normalize to "".
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return ""
	}
	return lowerCase(norm.NFC.String(email))
}

// NormalizeName composes the name to NFC and collapses runs of whitespace.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return whitespaceRe.ReplaceAllString(name, " ")
}

// NormalizeSubject trims the subject, substitutes EmptySubject for blanks and
// truncates to MaxSubjectLength runes.
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(norm.NFC.String(subject))
	if subject == "" {
		return EmptySubject
	}
	if utf8.RuneCountInString(subject) <= MaxSubjectLength {
		return subject
	}
	runes := []rune(subject)
	return strings.TrimSpace(string(runes[:MaxSubjectLength]))
}
