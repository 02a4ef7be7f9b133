package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/junsooki/campanel/internal/config"
	"github.com/junsooki/campanel/internal/decoder"
	"github.com/junsooki/campanel/internal/display"
	"github.com/junsooki/campanel/internal/logging"
	"github.com/junsooki/campanel/internal/panel"
	"github.com/junsooki/campanel/internal/peer"
	"github.com/junsooki/campanel/internal/signaling"
	"github.com/junsooki/campanel/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags *config.Flags
	cmd := &cobra.Command{
		Use:          "campanel-viewer",
		Short:        "Show a live camera feed in a paced window",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	flags = config.RegisterViewerFlags(cmd.Flags())
	return cmd
}

func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Configure(logging.Format(cfg.Log.Format), level, os.Stderr)
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	surface := display.NewSurface(cfg.Viewer.Title, log)
	opts := []panel.Option{
		panel.WithRenderer(surface),
		panel.WithSizeHook(surface.SetPreferredSize),
		panel.WithFrequency(cfg.Frequency),
		panel.WithLogger(log),
	}

	var cleanup func()
	switch cfg.Viewer.Source {
	case config.SourcePattern:
		cleanup, err = runPattern(ctx, cfg, log, surface, opts)
	case config.SourceRemote:
		cleanup, err = runRemote(ctx, cfg, log, surface, opts)
	default:
		err = fmt.Errorf("unknown source %q", cfg.Viewer.Source)
	}
	if err != nil {
		return err
	}
	defer cleanup()

	// Ebitengine RunGame must be on the main goroutine (macOS requirement).
	return surface.Run()
}

// closePanel stops p, then releases its source with release.
func closePanel(log *slog.Logger, p *panel.Panel, release func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*panel.ShutdownTimeout)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		log.Warn("panel close", "error", err)
	}
	log.Info("panel stopped", "stats", fmt.Sprintf("%+v", p.Stats()))
	if err := release(ctx); err != nil {
		log.Warn("release source", "error", err)
	}
}

// runPattern shows a local test-pattern camera.
func runPattern(ctx context.Context, cfg *config.Config, log *slog.Logger, surface *display.Surface, opts []panel.Option) (func(), error) {
	cam, err := source.NewPatternCamera(cfg.Camera.Name, source.Size{Width: cfg.Camera.Width, Height: cfg.Camera.Height}, cfg.Camera.FPS)
	if err != nil {
		return nil, err
	}
	p, err := panel.New(ctx, cam, opts...)
	if err != nil {
		return nil, fmt.Errorf("start panel: %w", err)
	}
	surface.SetController(p)
	log.Info("viewer showing pattern camera", "camera", cam.Name(), "frequency", p.Frequency())
	return func() { closePanel(log, p, cam.Close) }, nil
}

// runRemote connects to a camera host through the signaling server and
// shows its feed once the control channel is up.
func runRemote(ctx context.Context, cfg *config.Config, log *slog.Logger, surface *display.Surface, opts []panel.Option) (func(), error) {
	if cfg.Viewer.CameraID == "" {
		return nil, errors.New("remote source needs --camera-id")
	}
	id := cfg.EnsureID("viewer")
	remote := source.NewRemote(cfg.Viewer.CameraID, decoder.NewJPEGDecoder(), log)

	var (
		mu      sync.Mutex
		current *peer.Viewer

		pmu sync.Mutex
		p   *panel.Panel
	)
	detach := func(reason string) {
		log.Info("camera detached", "reason", reason)
		dctx, cancel := context.WithTimeout(context.Background(), 2*panel.ShutdownTimeout)
		defer cancel()
		if err := remote.Detach(dctx); err != nil {
			log.Warn("detach camera", "error", err)
		}
	}
	startPanel := func() {
		pmu.Lock()
		defer pmu.Unlock()
		if p != nil {
			return
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.Viewer.ConnectTimeout)
		defer cancel()
		np, err := panel.New(pctx, remote, opts...)
		if err != nil {
			log.Error("start panel", "error", err)
			return
		}
		p = np
		surface.SetController(np)
	}
	viewerPeer := func() *peer.Viewer {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	var sig *signaling.Client

	// connect offers to the camera unless a peer is already up.
	connect := func() {
		mu.Lock()
		defer mu.Unlock()
		if current != nil {
			return
		}
		var v *peer.Viewer
		v, err := peer.NewViewer(sig, cfg.Viewer.CameraID, peer.Options{
			ICEServers: cfg.Signaling.ICEServers,
			Logger:     log,
			OnStateChange: func(state webrtc.PeerConnectionState) {
				if state != webrtc.PeerConnectionStateFailed && state != webrtc.PeerConnectionStateClosed {
					return
				}
				detach(state.String())
				mu.Lock()
				if current == v {
					current = nil
				}
				mu.Unlock()
			},
		})
		if err != nil {
			log.Error("create viewer peer", "error", err)
			return
		}
		t := v.Transport()
		remote.Attach(ctx, t)
		t.OnControlOpen(func() {
			go startPanel()
		})
		current = v
		if err := v.Connect(); err != nil {
			log.Error("viewer connect", "error", err)
		}
	}
	// dropPeer forgets the current peer so the camera can be dialled again.
	dropPeer := func() {
		mu.Lock()
		v := current
		current = nil
		mu.Unlock()
		if v != nil {
			v.Close()
		}
	}

	sig = signaling.NewClient(cfg.Signaling.URL, id, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			log.Info("registered with signaling server")
			if err := sig.RequestCameraList(); err != nil {
				log.Warn("request camera list", "error", err)
			}
			connect()
		},
		OnCamerasUpdated: func(cameras []signaling.CameraInfo) {
			if cam, ok := signaling.FindCamera(cameras, cfg.Viewer.CameraID); !ok || !cam.Online {
				log.Warn("camera not online, waiting", "camera", cfg.Viewer.CameraID, "known", len(cameras))
				return
			}
			if viewerPeer() == nil {
				log.Info("camera online, connecting", "camera", cfg.Viewer.CameraID)
				connect()
			}
		},
		OnAnswer: func(from string, payload json.RawMessage) {
			if v := viewerPeer(); v != nil {
				if err := v.HandleAnswer(payload); err != nil {
					log.Error("handle answer", "error", err)
				}
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if v := viewerPeer(); v != nil {
				if err := v.HandleICECandidate(payload); err != nil {
					log.Warn("handle ICE candidate", "error", err)
				}
			}
		},
		OnCameraDisconnected: func(cameraID string) {
			if cameraID == cfg.Viewer.CameraID {
				detach("camera disconnected")
				dropPeer()
			}
		},
		OnError: func(msg string) {
			log.Warn("signaling error", "message", msg)
		},
		OnClosed: func() {
			detach("signaling closed")
		},
	})
	sig.SetLogger(log)
	if cfg.Signaling.PingInterval > 0 {
		sig.SetPingInterval(cfg.Signaling.PingInterval)
	}

	log.Info("viewer starting", "id", id, "signaling", cfg.Signaling.URL, "camera", cfg.Viewer.CameraID)
	if err := sig.Connect(); err != nil {
		return nil, err
	}

	return func() {
		mu.Lock()
		v := current
		mu.Unlock()
		pmu.Lock()
		np := p
		pmu.Unlock()
		if np != nil {
			// Leave the camera host's device as it is.
			closePanel(log, np, remote.Detach)
		}
		sig.Close()
		if v != nil {
			v.Close()
		}
	}, nil
}
