package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BradenHooton/taskdesk/internal/config"
	"github.com/BradenHooton/taskdesk/internal/models"
	"github.com/BradenHooton/taskdesk/internal/services"
	pkghttp "github.com/BradenHooton/taskdesk/pkg/http"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateCookie  = "oauthstate"
	oauthStateTTL     = 10 * time.Minute
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// FederatedLoginService signs in an account vouched for by an identity provider
type FederatedLoginService interface {
	FederatedLogin(ctx context.Context, profile models.FederatedProfile) (*services.LoginResult, error)
}

// ProfileExchanger trades an authorization code for the provider's profile.
type ProfileExchanger func(ctx context.Context, code string) (models.FederatedProfile, error)

// OAuthHandler handles the Google authorization-code flow
type OAuthHandler struct {
	service       FederatedLoginService
	oauthConfig   *oauth2.Config
	exchange      ProfileExchanger
	clientURL     string
	secureCookies bool
	logger        *slog.Logger
}

// OAuthOption configures an OAuthHandler
type OAuthOption func(*OAuthHandler)

// WithProfileExchanger replaces the Google code exchange and userinfo call.
func WithProfileExchanger(fn ProfileExchanger) OAuthOption {
	return func(h *OAuthHandler) {
		h.exchange = fn
	}
}

// NewOAuthHandler creates a new OAuthHandler. When Google credentials are not
// configured both endpoints answer 503.
func NewOAuthHandler(service FederatedLoginService, cfg config.OAuthConfig, secureCookies bool, logger *slog.Logger, opts ...OAuthOption) *OAuthHandler {
	h := &OAuthHandler{
		service:       service,
		clientURL:     cfg.ClientURL,
		secureCookies: secureCookies,
		logger:        logger,
	}
	if cfg.GoogleEnabled() {
		h.oauthConfig = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
		h.exchange = h.exchangeGoogle
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *OAuthHandler) enabled() bool {
	return h.oauthConfig != nil && h.exchange != nil
}

// GoogleLogin redirects to Google's consent screen
// @Router /api/auth/google [get]
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		pkghttp.WriteServiceUnavailable(w, "Google sign-in is not configured")
		return
	}

	state, err := newOAuthState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback completes the flow and redirects to the client with a token
// @Router /api/auth/google/callback [get]
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		pkghttp.WriteServiceUnavailable(w, "Google sign-in is not configured")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		h.logger.Warn("oauth state mismatch")
		h.redirectFailure(w, r)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth consent denied", slog.String("reason", errParam))
		h.redirectFailure(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectFailure(w, r)
		return
	}

	profile, err := h.exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth code exchange failed", slog.Any("error", err))
		h.redirectFailure(w, r)
		return
	}

	result, err := h.service.FederatedLogin(r.Context(), profile)
	if err != nil {
		if !errors.Is(err, models.ErrProviderError) && !errors.Is(err, models.ErrAccountDeactivated) {
			h.logger.Error("federated login failed", slog.Any("error", err))
		}
		h.redirectFailure(w, r)
		return
	}

	target := h.clientURL + "/oauth-success?token=" + url.QueryEscape(result.Token)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *OAuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.clientURL+"/login?error=oauth_failed", http.StatusFound)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *OAuthHandler) exchangeGoogle(ctx context.Context, code string) (models.FederatedProfile, error) {
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return models.FederatedProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := h.oauthConfig.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return models.FederatedProfile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FederatedProfile{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.FederatedProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	return models.FederatedProfile{
		Provider:      "google",
		Subject:       info.ID,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail,
		DisplayName:   info.Name,
	}, nil
}

func newOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
