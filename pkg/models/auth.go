package models

// UserSettings holds the per-user stream configuration returned by the
// backend alongside the profile.
type UserSettings struct {
	StreamEndpoint string `json:"mqtt"`
}

// UserProfile describes the signed-in user.
type UserProfile struct {
	ID       string       `json:"id"`
	Username string       `json:"username"`
	IsAdmin  bool         `json:"admin"`
	Settings UserSettings `json:"settings"`
}

// Credential is the in-memory session state. AccessToken is empty when
// signed out; the refresh token itself lives in an HTTP-only cookie and
// never passes through this struct.
type Credential struct {
	AccessToken string       `json:"accessToken"`
	User        *UserProfile `json:"user"`
}

// PushSubscription mirrors the browser push subscription payload the
// backend needs to re-target notification delivery after a token refresh.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}
