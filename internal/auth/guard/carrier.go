package guard

import (
	"net/http"
	"strings"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/constants"
)

type CookieConfig struct {
	Secure bool
	Domain string
}

// CookieCarrier reads tokens from the request and writes replacements to the
// response. The access token may also arrive as a Bearer header.
type CookieCarrier struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg CookieConfig
}

func NewCookieCarrier(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *CookieCarrier {
	return &CookieCarrier{w: w, r: r, cfg: cfg}
}

func (c *CookieCarrier) AccessToken() string {
	if cookie, err := c.r.Cookie(constants.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if raw := c.r.Header.Get("Authorization"); strings.HasPrefix(raw, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	}
	return ""
}

func (c *CookieCarrier) RefreshToken() string {
	if cookie, err := c.r.Cookie(constants.RefreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (c *CookieCarrier) SetAccessToken(value string, maxAge time.Duration) {
	c.setCookie(constants.AccessTokenCookie, value, maxAge)
}

func (c *CookieCarrier) SetRefreshToken(value string, maxAge time.Duration) {
	c.setCookie(constants.RefreshTokenCookie, value, maxAge)
}

func (c *CookieCarrier) Clear() {
	for _, name := range []string{constants.AccessTokenCookie, constants.RefreshTokenCookie} {
		http.SetCookie(c.w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.cfg.Domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   c.cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (c *CookieCarrier) setCookie(name, value string, maxAge time.Duration) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// replaceAccess rewrites the in-flight request so handlers downstream see the
// newly issued access token instead of the rejected one.
func replaceAccess(r *http.Request, access string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	found := false
	for _, cookie := range cookies {
		if cookie.Name == constants.AccessTokenCookie {
			cookie.Value = access
			found = true
		}
		r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	if !found {
		r.AddCookie(&http.Cookie{Name: constants.AccessTokenCookie, Value: access})
	}
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		r.Header.Set("Authorization", "Bearer "+access)
	}
}
