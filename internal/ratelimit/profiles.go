package ratelimit

import (
	"time"

	"github.com/tripvar/search-analytics/internal/logger"
)

// Predefined limiter profiles. Windows and ceilings are part of the API
// contract with downstream clients; change them deliberately.
var (
	ProfileGeneral       = Profile{Window: 15 * time.Minute, Max: 100}
	ProfileAuth          = Profile{Window: 15 * time.Minute, Max: 5}
	ProfilePasswordReset = Profile{Window: time.Hour, Max: 3}
	ProfileRegistration  = Profile{Window: time.Hour, Max: 3}
	ProfileUpload        = Profile{Window: time.Hour, Max: 10}
	ProfileSearch        = Profile{Window: time.Minute, Max: 30}
	// ProfileSearchStrict is what a client is held to after tripping the
	// search limiter, until the violation decays.
	ProfileSearchStrict = Profile{Window: time.Minute, Max: 10}
	ProfileAPIKey        = Profile{Window: time.Minute, Max: 1000}
	ProfileUser          = Profile{Window: 15 * time.Minute, Max: 200}
	ProfileAdmin         = Profile{Window: 5 * time.Minute, Max: 50}
)

// Limiters bundles the named limiter family built over one shared store.
type Limiters struct {
	General       *Limiter
	Auth          *Limiter
	PasswordReset *Limiter
	Registration  *Limiter
	Upload        *Limiter
	Search        *Limiter
	APIKey        *Limiter
	User          *Limiter
	Admin         *Limiter
}

// NewLimiters builds the full limiter family from the predefined profiles.
func NewLimiters(store CounterStore, log logger.Logger) *Limiters {
	return &Limiters{
		General: New(Config{
			Name:    "general",
			Profile: ProfileGeneral,
		}, store, log),
		Auth: New(Config{
			Name:           "auth",
			Profile:        ProfileAuth,
			SkipSuccessful: true,
			Message:        "too many login attempts, please try again later",
		}, store, log),
		PasswordReset: New(Config{
			Name:    "password_reset",
			Profile: ProfilePasswordReset,
			Message: "too many password reset requests, please try again later",
		}, store, log),
		Registration: New(Config{
			Name:    "registration",
			Profile: ProfileRegistration,
			Message: "too many accounts created, please try again later",
		}, store, log),
		Upload: New(Config{
			Name:    "upload",
			Profile: ProfileUpload,
		}, store, log),
		Search: New(Config{
			Name:    "search",
			Profile: ProfileSearch,
			Key:     ByIPEndpoint,
			Message: "too many search requests, please slow down",
		}, store, log),
		APIKey: New(Config{
			Name:    "api_key",
			Profile: ProfileAPIKey,
			Key:     ByAPIKey,
		}, store, log),
		User: New(Config{
			Name:    "user",
			Profile: ProfileUser,
			Key:     ByUser,
		}, store, log),
		Admin: New(Config{
			Name:    "admin",
			Profile: ProfileAdmin,
			Key:     ByUser,
		}, store, log),
	}
}

// SetOnReject installs a rejection hook on every limiter in the family.
func (l *Limiters) SetOnReject(hook func(limiter string)) {
	for _, lim := range []*Limiter{
		l.General, l.Auth, l.PasswordReset, l.Registration,
		l.Upload, l.Search, l.APIKey, l.User, l.Admin,
	} {
		lim.OnReject = hook
	}
}
