package service

import "strings"

// GenericErrorMessage is shown when a failure carries no text of its own.
const GenericErrorMessage = "An error occurred."

// authErrorMessages maps fragments of provider error text to what users read.
// Matching is case-insensitive and the first hit wins.
var authErrorMessages = []struct {
	fragment string
	message  string
}{
	{"The email address is badly formatted", "Invalid email address."},
	{"There is no user record", "No account is registered with this email."},
	{"The password is invalid", "Wrong password."},
	{"The email address is already in use", "This email address is already in use."},
	{"Password should be at least", "Password must be at least 6 characters."},
	{"A network error", "Network connection error."},
}

// MapAuthError turns a provider failure into a user-facing message. Unknown
// text is passed through unchanged.
func MapAuthError(err error) string {
	if err == nil {
		return GenericErrorMessage
	}
	return MapAuthMessage(err.Error())
}

func MapAuthMessage(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return GenericErrorMessage
	}
	lower := strings.ToLower(raw)
	for _, m := range authErrorMessages {
		if strings.Contains(lower, strings.ToLower(m.fragment)) {
			return m.message
		}
	}
	return raw
}
