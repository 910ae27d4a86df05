package logger

import "regexp"

// RedactToken masks a credential for safe logging.
// "EAAGm0PX4ZCpsBA" → "EAAG***"
// Short values (≤8 chars) are fully masked: "abc" → "***"
func RedactToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "***"
	}
	return "***"
}

var queryTokenRegex = regexp.MustCompile(`(?i)(access_token=)[^&\s"]+`)

// RedactQueryTokens masks access_token query parameters embedded in URLs or
// error strings.
func RedactQueryTokens(s string) string {
	return queryTokenRegex.ReplaceAllString(s, "${1}***")
}
