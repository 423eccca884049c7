package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/config"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/logger"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/registry"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})

	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

// newBackend serves the auth routes of the API with a single valid
// account and returns envelopes the way the production backend does.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var body struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}

			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			if body.Username != "yaniv" || body.Password != "grapes" {
				writeEnvelope(w, nil, "wrong username or password")
				return
			}

			writeEnvelope(w, models.Credential{
				AccessToken: signedToken(t, time.Now().Add(time.Hour)),
				User: &models.UserProfile{
					ID:       "user-1",
					Username: "yaniv",
					IsAdmin:  true,
				},
			}, "")

		case "/logout":
			writeEnvelope(w, struct{}{}, "")

		case "/refresh":
			writeEnvelope(w, nil, "no session")

		default:
			http.NotFound(w, r)
		}
	}))
}

func writeEnvelope(w http.ResponseWriter, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")

	if errMsg != "" {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": errMsg},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// newStream serves a minimal push channel: token frame in, "authorized"
// out, then the given telemetry frames.
func newStream(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, token, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("authorized")))

		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}

		_, _, _ = conn.ReadMessage()
	}))
}

func testConfig(apiURL, streamURL string) *config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = apiURL
	cfg.StreamURL = streamURL
	cfg.ConnectTimeout = config.Duration(2 * time.Second)
	cfg.RequestTimeout = config.Duration(2 * time.Second)
	cfg.ReconnectDelay = config.Duration(20 * time.Millisecond)
	cfg.MaxReconnectTries = 1

	return &cfg
}

func TestSignInStreamsTelemetry(t *testing.T) {
	api := newBackend(t)
	defer api.Close()

	stream := newStream(t, `{"dev-1":{"battery":"Low","location":"Barn 4","start":1717000000000}}`)
	defer stream.Close()

	cfg := testConfig(api.URL, "ws"+strings.TrimPrefix(stream.URL, "http"))

	svc, err := New(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	snapshots := make(chan registry.Snapshot, 16)
	svc.Subscribe(func(snap registry.Snapshot) {
		snapshots <- snap
	})

	require.NoError(t, svc.SignIn(context.Background(), "yaniv", "grapes"))

	user := svc.User()
	require.NotNil(t, user)
	assert.True(t, user.IsAdmin)

	deadline := time.After(3 * time.Second)

	for {
		select {
		case snap := <-snapshots:
			rec, ok := snap["dev-1"]
			if !ok {
				continue
			}

			assert.Equal(t, models.BatteryLow, rec.Status.Battery)
			assert.Equal(t, "Barn 4", rec.Location)
			assert.Equal(t, time.UnixMilli(1717000000000).UTC(), rec.Status.Start)

			return

		case <-deadline:
			t.Fatal("telemetry never reached the registry")
		}
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	api := newBackend(t)
	defer api.Close()

	svc, err := New(testConfig(api.URL, "ws://127.0.0.1:1/stream"), logger.NewTestLogger())
	require.NoError(t, err)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	err = svc.SignIn(context.Background(), "yaniv", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrServer)
	assert.Nil(t, svc.User())
}

func TestSignOutIsIdempotent(t *testing.T) {
	api := newBackend(t)
	defer api.Close()

	stream := newStream(t)
	defer stream.Close()

	cfg := testConfig(api.URL, "ws"+strings.TrimPrefix(stream.URL, "http"))

	svc, err := New(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	require.NoError(t, svc.SignIn(context.Background(), "yaniv", "grapes"))

	svc.SignOut(context.Background())
	assert.Nil(t, svc.User())
	assert.Empty(t, svc.Snapshot())

	// A second sign-out with nothing left to tear down must be a no-op.
	svc.SignOut(context.Background())
	assert.Nil(t, svc.User())
}

func TestChannelDownHookRegisteredAfterStart(t *testing.T) {
	api := newBackend(t)
	defer api.Close()

	// Nothing listens on the stream endpoint, so the bounded reconnect
	// gives up shortly after sign-in.
	svc, err := New(testConfig(api.URL, "ws://127.0.0.1:1/stream"), logger.NewTestLogger())
	require.NoError(t, err)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	err = svc.SignIn(context.Background(), "yaniv", "grapes")
	require.Error(t, err, "initial dial must fail")

	// Register the hook only now, with the reconcile loop already running
	// and the terminal closure on its way, and keep re-registering while
	// it may fire.
	down := make(chan error, 1)

	svc.OnChannelDown(func(err error) {
		select {
		case down <- err:
		default:
		}
	})

	go func() {
		for i := 0; i < 50; i++ {
			svc.OnChannelDown(func(err error) {
				select {
				case down <- err:
				default:
				}
			})
		}
	}()

	select {
	case err := <-down:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("channel-down hook never fired")
	}
}

func TestUpdateSettingsRequiresAdmin(t *testing.T) {
	svc, err := New(testConfig("http://127.0.0.1:1", ""), logger.NewTestLogger())
	require.NoError(t, err)

	settings := models.UserSettings{StreamEndpoint: "mqtts://broker.yieldx.blue/mqtt"}

	// Signed out entirely.
	err = svc.UpdateSettings(context.Background(), settings)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Signed in without the admin flag; the backend is never reached.
	svc.store.Set(models.Credential{
		AccessToken: "tok",
		User:        &models.UserProfile{ID: "user-2", Username: "guest"},
	})

	err = svc.UpdateSettings(context.Background(), settings)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestStreamURLMapping(t *testing.T) {
	svc, err := New(testConfig("http://127.0.0.1:1", ""), logger.NewTestLogger())
	require.NoError(t, err)

	set := func(endpoint string) {
		svc.store.Set(models.Credential{
			AccessToken: "tok",
			User: &models.UserProfile{
				ID:       "user-1",
				Settings: models.UserSettings{StreamEndpoint: endpoint},
			},
		})
	}

	tests := []struct {
		endpoint string
		want     string
	}{
		{"mqtts://broker.yieldx.blue:8884/mqtt", "wss://broker.yieldx.blue:8884/mqtt"},
		{"mqtt://broker.yieldx.blue:8884/mqtt", "ws://broker.yieldx.blue:8884/mqtt"},
		{"wss://broker.yieldx.blue/mqtt", "wss://broker.yieldx.blue/mqtt"},
		{"", ""},
	}

	for _, tt := range tests {
		set(tt.endpoint)
		assert.Equal(t, tt.want, svc.streamURL(), "endpoint %q", tt.endpoint)
	}
}

func TestStreamURLConfigOverrideWins(t *testing.T) {
	svc, err := New(testConfig("http://127.0.0.1:1", "wss://fixed.yieldx.blue/mqtt"), logger.NewTestLogger())
	require.NoError(t, err)

	svc.store.Set(models.Credential{
		AccessToken: "tok",
		User: &models.UserProfile{
			Settings: models.UserSettings{StreamEndpoint: "mqtts://ignored.example.com/mqtt"},
		},
	})

	assert.Equal(t, "wss://fixed.yieldx.blue/mqtt", svc.streamURL())
}
