package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"authkeeper/internal/domain"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig controla los atributos de las cookies de sesion.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) setTokens(c *gin.Context, pair domain.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, pair.AccessToken, int(cfg.AccessTTL.Seconds()), "/", "", cfg.Secure, true)
	c.SetCookie(refreshTokenCookie, pair.RefreshToken, int(cfg.RefreshTTL.Seconds()), "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", cfg.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", cfg.Secure, true)
}
