package otpAuth

import (
	"net/http"
	"time"
)

// TokenCookie returns the HttpOnly cookie carrying the stateless token.
// Max-Age is the session horizon in seconds.
func (c CookieConfig) TokenCookie(token string, horizon time.Duration) *http.Cookie {
	return c.cookie(c.TokenName, token, int(horizon/time.Second))
}

// SessionCookie returns the HttpOnly cookie carrying the session secret.
func (c CookieConfig) SessionCookie(secret string, horizon time.Duration) *http.Cookie {
	return c.cookie(c.SessionName, secret, int(horizon/time.Second))
}

// ClearCookies returns both cookies with Max-Age=0.
func (c CookieConfig) ClearCookies() []*http.Cookie {
	token := c.cookie(c.TokenName, "", -1)
	sess := c.cookie(c.SessionName, "", -1)
	return []*http.Cookie{token, sess}
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	sameSite := c.SameSite
	if sameSite == http.SameSiteDefaultMode || sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

// SetLoginCookies writes the token and session cookies for res.
func (e *Engine) SetLoginCookies(w http.ResponseWriter, res *LoginResult) {
	if e == nil || res == nil {
		return
	}
	http.SetCookie(w, e.config.Cookie.TokenCookie(res.Token, e.config.Session.Horizon))
	http.SetCookie(w, e.config.Cookie.SessionCookie(res.SessionSecret, e.config.Session.Horizon))
}

// ClearLoginCookies expires both cookies.
func (e *Engine) ClearLoginCookies(w http.ResponseWriter) {
	if e == nil {
		return
	}
	for _, c := range e.config.Cookie.ClearCookies() {
		http.SetCookie(w, c)
	}
}

// CredentialsFromRequest reads the token and session cookies from r. A
// bearer Authorization header takes precedence over the token cookie.
func (e *Engine) CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials
	if e == nil || r == nil {
		return creds
	}

	if h := r.Header.Get("Authorization"); len(h) > 7 && (h[:7] == "Bearer " || h[:7] == "bearer ") {
		creds.Token = h[7:]
	} else if c, err := r.Cookie(e.config.Cookie.TokenName); err == nil {
		creds.Token = c.Value
	}
	if c, err := r.Cookie(e.config.Cookie.SessionName); err == nil {
		creds.SessionSecret = c.Value
	}
	return creds
}
