package guard

import (
	"net/url"

	"sessionguard/internal/auth"
)

type Kind int

const (
	KindAllow Kind = iota
	KindRedirectToLogin
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindAllow:
		return "allow"
	case KindRedirectToLogin:
		return "redirect"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Decision is computed per request and never cached.
type Decision struct {
	Kind Kind

	// Claim is set for authenticated Allow decisions only.
	Claim *auth.Claim

	// ReturnPath is the original path and query for RedirectToLogin.
	ReturnPath string
	// SessionExpired marks a RedirectToLogin or Unauthorized caused by an expired token.
	SessionExpired bool

	// Public and Static record why an Allow skipped authentication.
	Public bool
	Static bool
}

func Allow(claim *auth.Claim) Decision {
	return Decision{Kind: KindAllow, Claim: claim}
}

func RedirectToLogin(returnPath string, expired bool) Decision {
	return Decision{Kind: KindRedirectToLogin, ReturnPath: returnPath, SessionExpired: expired}
}

func Unauthorized(expired bool) Decision {
	return Decision{Kind: KindUnauthorized, SessionExpired: expired}
}

// UserID is the authenticated user of an Allow decision, or "".
func (d Decision) UserID() string {
	if d.Claim == nil {
		return ""
	}
	return d.Claim.UserID
}

// LoginURL builds the redirect target: loginPath?redirect=<path>[&error=session_expired].
func (d Decision) LoginURL(loginPath string) string {
	u := loginPath + "?redirect=" + url.QueryEscape(d.ReturnPath)
	if d.SessionExpired {
		u += "&error=session_expired"
	}
	return u
}
