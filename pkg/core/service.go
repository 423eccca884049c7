// Package core assembles the sync service: credential store, request
// gateway, live channel and device registry behind one object with an
// explicit lifecycle.
package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/auth"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/channel"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/config"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/gateway"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/registry"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/status"
	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/telemetry"
)

// Service is the single owned sync object, constructed once at session
// start and injected into consumers. Consumers read registry snapshots;
// all mutation flows through here.
type Service struct {
	cfg *config.Config

	store     *auth.Store
	refresher *auth.Refresher
	gateway   *gateway.Client
	registry  *registry.Registry
	decoder   *telemetry.Decoder
	channel   *channel.Manager

	logger zerolog.Logger

	mu         sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	onChannelDown func(error)
}

// New wires the service together. Start must be called before any
// sign-in.
func New(cfg *config.Config, log zerolog.Logger) (*Service, error) {
	gw, err := gateway.New(cfg.APIBaseURL, cfg.RequestTimeout.Std(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	store := auth.NewStore()
	refresher := auth.NewRefresher(store, gw.Refresh, log)
	gw.SetTokenSource(refresher)

	reg := registry.New(log)

	svc := &Service{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		gateway:   gw,
		registry:  reg,
		decoder:   telemetry.NewDecoder(log),
		logger:    log.With().Str("component", "core").Logger(),
	}

	svc.channel = channel.NewManager(channel.Config{
		URL:               cfg.StreamURL,
		ConnectTimeout:    cfg.ConnectTimeout.Std(),
		ReconnectDelay:    cfg.ReconnectDelay.Std(),
		MaxReconnectTries: cfg.MaxReconnectTries,
	}, refresher, log)

	refresher.OnSignedOut(func() {
		svc.channel.Close()
		reg.Reset()
	})

	refresher.OnRefreshed(gw.RegisterSubscription)

	return svc, nil
}

// Start launches the reconcile loop. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loopCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done

	go s.runLoop(loopCtx, done)
}

// Stop signs out and stops the reconcile loop.
func (s *Service) Stop(ctx context.Context) {
	s.SignOut(ctx)

	s.mu.Lock()
	cancel := s.loopCancel
	done := s.loopDone
	s.loopCancel = nil
	s.loopDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// OnChannelDown registers a hook invoked when the channel gives up
// reconnecting. A manual reload (LoadSession) is the recovery path. Safe
// to call while the reconcile loop is running.
func (s *Service) OnChannelDown(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onChannelDown = fn
}

func (s *Service) channelDownHook() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.onChannelDown
}

// runLoop is the single reconciliation loop: every channel event funnels
// through here, so registry mutations from telemetry are serialized.
func (s *Service) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-s.channel.Events():
			switch ev := ev.(type) {
			case channel.AuthorizedEvent:
				// New broker epoch: no stale entries may linger.
				s.registry.Reset()

			case channel.TelemetryEvent:
				updates, err := s.decoder.Decode(ev.Payload)
				if err != nil {
					// Already logged by the decoder; other devices'
					// state is unaffected.
					continue
				}

				s.registry.Apply(updates)

			case channel.ClosedEvent:
				if ev.Terminal {
					if hook := s.channelDownHook(); hook != nil {
						hook(ev.Err)
					}
				}

			case channel.ConnectedEvent:
				// Frames are untrusted until the authorization ack.
			}
		}
	}
}

// SignIn authenticates and brings the channel up.
func (s *Service) SignIn(ctx context.Context, username, password string) error {
	cred, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		return err
	}

	s.store.Set(cred)
	s.logger.Info().Str("username", username).Msg("Signed in")

	return s.connectChannel(ctx)
}

// LoadSession resumes a session from the refresh cookie, as on a page
// reload.
func (s *Service) LoadSession(ctx context.Context) error {
	if _, err := s.refresher.Refresh(ctx); err != nil {
		return err
	}

	return s.connectChannel(ctx)
}

// SignOut tears everything down: channel closed with the normal-closure
// code, credential and registry cleared. Idempotent; safe when already
// signed out.
func (s *Service) SignOut(ctx context.Context) {
	signedIn := s.store.SignedIn()

	s.channel.Close()

	if signedIn {
		if err := s.gateway.Logout(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("Logout call failed during sign-out")
		}
	}

	s.store.Clear()
	s.registry.Reset()

	s.logger.Info().Msg("Signed out")
}

// connectChannel resolves the stream endpoint and connects.
func (s *Service) connectChannel(ctx context.Context) error {
	s.channel.SetURL(s.streamURL())

	return s.channel.Connect(ctx)
}

// streamURL prefers the configured endpoint, falling back to the
// per-user stream setting. Broker-style schemes map onto their
// WebSocket equivalents.
func (s *Service) streamURL() string {
	if s.cfg.StreamURL != "" {
		return s.cfg.StreamURL
	}

	endpoint := ""
	if user := s.store.User(); user != nil {
		endpoint = user.Settings.StreamEndpoint
	}

	switch {
	case strings.HasPrefix(endpoint, "mqtts://"):
		return "wss://" + strings.TrimPrefix(endpoint, "mqtts://")
	case strings.HasPrefix(endpoint, "mqtt://"):
		return "ws://" + strings.TrimPrefix(endpoint, "mqtt://")
	default:
		return endpoint
	}
}

// Subscribe registers a snapshot consumer.
func (s *Service) Subscribe(fn func(registry.Snapshot)) {
	s.registry.Subscribe(fn)
}

// Snapshot returns the current device registry snapshot.
func (s *Service) Snapshot() registry.Snapshot {
	return s.registry.Snapshot()
}

// User returns a copy of the signed-in profile, or nil.
func (s *Service) User() *models.UserProfile {
	return s.store.User()
}

// DeriveStatus computes the display status of a record with the
// configured staleness window.
func (s *Service) DeriveStatus(rec models.DeviceRecord, now time.Time) status.Info {
	return status.Derive(rec, now, s.cfg.StalenessWindow.Std())
}

// ChannelState reports the live channel's lifecycle state.
func (s *Service) ChannelState() channel.State {
	return s.channel.State()
}
