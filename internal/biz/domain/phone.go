package domain

import (
	"regexp"
	"strings"
)

var (
	// plusMarkerRegex captures the digits following an explicit "+" marker
	// that starts a token
	plusMarkerRegex = regexp.MustCompile(`(?:^|[\s(])\+\s*(\d[\d\s\-.()]*)`)

	// doubleZeroRegex captures the digits following a "00" international prefix
	// that starts a token. "1.005" is an amount, not a prefix.
	doubleZeroRegex = regexp.MustCompile(`(?:^|[\s(])00(\d[\d\s\-.()]*)`)

	nonDigitRegex = regexp.MustCompile(`\D`)
)

// PhoneNormalizer canonicalizes phone-like tokens into digit strings
// (country code included, no "+").
type PhoneNormalizer struct {
	defaultCountryCode string
	aliases            map[string]string
}

// NewPhoneNormalizer creates a normalizer. aliases maps a case-insensitive
// name to a canonical digit string.
func NewPhoneNormalizer(defaultCountryCode string, aliases map[string]string) *PhoneNormalizer {
	n := &PhoneNormalizer{
		defaultCountryCode: onlyDigits(defaultCountryCode),
		aliases:            make(map[string]string, len(aliases)),
	}
	for name, number := range aliases {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		n.aliases[name] = onlyDigits(number)
	}
	return n
}

// DefaultCountryCode returns the configured country code used for local numbers
func (n *PhoneNormalizer) DefaultCountryCode() string {
	return n.defaultCountryCode
}

// Normalize canonicalizes rawToken. originalText is the full message the
// token came from and may be empty. Returns false when the token holds no
// digits and is not a known alias.
func (n *PhoneNormalizer) Normalize(rawToken, originalText string) (string, bool) {
	token := strings.TrimSpace(rawToken)

	if number, ok := n.aliases[strings.ToLower(token)]; ok && number != "" {
		return number, true
	}

	digits := onlyDigits(token)
	if strings.HasPrefix(token, "00") {
		digits = strings.TrimPrefix(digits, "00")
	}
	if digits == "" {
		return "", false
	}

	// The marker can sit elsewhere in free text than the digits that follow "to"
	explicit := explicitInternational(token)
	if explicit == "" && originalText != "" {
		explicit = explicitInternational(originalText)
	}

	if explicit != "" {
		if strings.HasSuffix(digits, explicit) {
			// Plain extraction is a superset, the marker lost a leading digit
			return digits, true
		}
		return explicit, true
	}

	if n.defaultCountryCode != "" && len(digits) == 10 {
		return n.defaultCountryCode + digits, true
	}

	return digits, true
}

// explicitInternational returns the digits following a "+" or "00" marker in s
func explicitInternational(s string) string {
	for _, re := range []*regexp.Regexp{plusMarkerRegex, doubleZeroRegex} {
		if match := re.FindStringSubmatch(s); len(match) == 2 {
			if digits := onlyDigits(match[1]); digits != "" {
				return digits
			}
		}
	}
	return ""
}

func onlyDigits(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}
