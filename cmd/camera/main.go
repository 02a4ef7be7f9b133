package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/campanel/internal/config"
	"github.com/junsooki/campanel/internal/control"
	"github.com/junsooki/campanel/internal/encoder"
	"github.com/junsooki/campanel/internal/logging"
	"github.com/junsooki/campanel/internal/panel"
	"github.com/junsooki/campanel/internal/peer"
	"github.com/junsooki/campanel/internal/signaling"
	"github.com/junsooki/campanel/internal/sink"
	"github.com/junsooki/campanel/internal/source"
	"github.com/junsooki/campanel/internal/transport"
)

const commandTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags *config.Flags
	cmd := &cobra.Command{
		Use:          "campanel-camera",
		Short:        "Serve a paced camera feed to a remote viewer",
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
	flags = config.RegisterCameraFlags(cmd.Flags())
	return cmd
}

func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Configure(logging.Format(cfg.Log.Format), level, os.Stderr)
}

// stateReporter tells the connected viewer whenever the camera opens or
// closes.
type stateReporter struct {
	cam *source.PatternCamera
	log *slog.Logger

	mu  sync.Mutex
	out transport.ControlSender
}

func (r *stateReporter) setOutput(out transport.ControlSender) {
	r.mu.Lock()
	r.out = out
	r.mu.Unlock()
}

func (r *stateReporter) report() {
	r.mu.Lock()
	out := r.out
	r.mu.Unlock()
	if out == nil {
		return
	}
	size := r.cam.ViewSize()
	data, err := control.Encode(control.State(r.cam.IsOpen(), size.Width, size.Height))
	if err != nil {
		r.log.Error("encode state", "error", err)
		return
	}
	if err := out.SendControl(data); err != nil {
		r.log.Debug("send state", "error", err)
	}
}

func (r *stateReporter) SourceOpened(context.Context, source.Event) error {
	r.report()
	return nil
}

func (r *stateReporter) SourceClosed(context.Context, source.Event) error {
	r.report()
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	id := cfg.EnsureID("camera")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cam, err := source.NewPatternCamera(cfg.Camera.Name, source.Size{Width: cfg.Camera.Width, Height: cfg.Camera.Height}, cfg.Camera.FPS)
	if err != nil {
		return err
	}
	reporter := &stateReporter{cam: cam, log: log}
	cam.AddListener(reporter)

	snk := sink.New(encoder.NewJPEGEncoder(cfg.Stream.Quality), cfg.Stream.MaxBitrate, log)
	p, err := panel.New(ctx, cam, panel.WithRenderer(snk), panel.WithFrequency(cfg.Frequency), panel.WithLogger(log))
	if err != nil {
		return fmt.Errorf("start panel: %w", err)
	}
	snk.Bind(p)

	log.Info("camera starting",
		"id", id,
		"signaling", cfg.Signaling.URL,
		"size", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height),
		"fps", cfg.Camera.FPS,
		"frequency", p.Frequency())

	var (
		peerMu  sync.Mutex
		current *peer.Camera
	)
	dropPeer := func() {
		peerMu.Lock()
		c := current
		current = nil
		peerMu.Unlock()
		snk.SetReceiver(nil)
		reporter.setOutput(nil)
		if c != nil {
			c.Close()
		}
	}

	apply := func(msg control.Message) {
		switch msg.Type {
		case control.TypeOpen, control.TypeClose:
			go func() {
				opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
				defer cancel()
				var err error
				if msg.Type == control.TypeOpen {
					err = cam.Open(opCtx)
				} else {
					err = cam.Close(opCtx)
				}
				if err != nil {
					log.Warn("camera command failed", "command", msg.Type, "error", err)
				}
				// Already in the wanted state means no event fired.
				reporter.report()
			}()
		case control.TypePause:
			p.Pause()
		case control.TypeResume:
			p.Resume()
		case control.TypeFrequency:
			p.SetFrequency(msg.Hz)
			log.Info("frequency changed", "hz", p.Frequency())
		default:
			log.Debug("ignoring control message", "type", msg.Type)
		}
	}

	var sig *signaling.Client
	sig = signaling.NewClient(cfg.Signaling.URL, id, signaling.ClientTypeCamera, signaling.Handler{
		OnRegistered: func() {
			log.Info("registered with signaling server")
		},
		OnOffer: func(from string, payload json.RawMessage) {
			log.Info("offer received", "viewer", from)
			dropPeer()

			var c *peer.Camera
			c, err := peer.NewCamera(sig, peer.Options{
				ICEServers: cfg.Signaling.ICEServers,
				Logger:     log,
				OnStateChange: func(state webrtc.PeerConnectionState) {
					if state != webrtc.PeerConnectionStateFailed && state != webrtc.PeerConnectionStateClosed {
						return
					}
					peerMu.Lock()
					stale := current != c
					peerMu.Unlock()
					if !stale {
						dropPeer()
					}
				},
			})
			if err != nil {
				log.Error("create camera peer", "error", err)
				return
			}
			t := c.Transport()
			t.OnControlOpen(reporter.report)
			t.OnControl(func(data []byte) {
				msg, err := control.Decode(data)
				if err != nil {
					log.Warn("dropping control message", "error", err)
					return
				}
				apply(msg)
			})
			snk.SetReceiver(t)
			reporter.setOutput(t)

			peerMu.Lock()
			current = c
			peerMu.Unlock()

			if err := c.HandleOffer(from, payload); err != nil {
				log.Error("handle offer", "viewer", from, "error", err)
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			peerMu.Lock()
			c := current
			peerMu.Unlock()
			if c == nil {
				return
			}
			if err := c.HandleICECandidate(payload); err != nil {
				log.Warn("handle ICE candidate", "error", err)
			}
		},
		OnError: func(msg string) {
			log.Warn("signaling error", "message", msg)
		},
	})
	sig.SetLogger(log)
	if cfg.Signaling.PingInterval > 0 {
		sig.SetPingInterval(cfg.Signaling.PingInterval)
	}
	if err := sig.Connect(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*panel.ShutdownTimeout)
		defer cancel()
		closeAll(shutdownCtx, log, p, cam)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := snk.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-sig.Done():
			return errors.New("signaling connection closed")
		}
	})
	runErr := g.Wait()

	log.Info("shutting down", "stats", fmt.Sprintf("%+v", p.Stats()), "sink", fmt.Sprintf("%+v", snk.Stats()))
	sig.Close()
	dropPeer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*panel.ShutdownTimeout)
	defer cancel()
	closeAll(shutdownCtx, log, p, cam)
	return runErr
}

// closeAll stops the panel, then the camera, logging what failed.
func closeAll(ctx context.Context, log *slog.Logger, p *panel.Panel, cam source.Source) {
	if err := p.Close(ctx); err != nil {
		log.Warn("panel close", "error", err)
	}
	if err := cam.Close(ctx); err != nil {
		log.Warn("camera close", "error", err)
	}
}
