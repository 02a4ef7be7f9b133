package display

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/junsooki/campanel/internal/source"
)

// sourceOpTimeout bounds open/close requests issued from the keyboard.
const sourceOpTimeout = 5 * time.Second

// Surface shows a panel's current frame using Ebitengine. The frame texture
// is refreshed only when the panel requests a render.
type Surface struct {
	title string
	log   *slog.Logger

	mu          sync.Mutex
	ctrl        Controller
	ebitenImage *ebiten.Image
	hasFrame    bool

	dirty atomic.Bool
	busy  atomic.Bool // a source open/close is in flight
}

var _ Display = (*Surface)(nil)

// NewSurface creates an Ebitengine-based surface.
func NewSurface(title string, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{title: title, log: logger.With("component", "display")}
}

// SetController attaches the panel to show. It may be called from any
// goroutine, before or after Run.
func (s *Surface) SetController(c Controller) {
	s.mu.Lock()
	s.ctrl = c
	s.mu.Unlock()
	s.dirty.Store(true)
}

func (s *Surface) controller() Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// RequestRender implements panel.Renderer.
func (s *Surface) RequestRender() {
	s.dirty.Store(true)
}

// SetPreferredSize resizes the window to the source's frame size.
func (s *Surface) SetPreferredSize(size source.Size) {
	if size.Empty() {
		return
	}
	ebiten.SetWindowSize(size.Width, size.Height)
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (s *Surface) Run() error {
	ebiten.SetWindowSize(640, 480)
	ebiten.SetWindowTitle(s.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	err := ebiten.RunGame(s)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// --- ebiten.Game interface ---

func (s *Surface) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	c := s.controller()
	if c == nil {
		return nil
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if c.Paused() {
			c.Resume()
		} else {
			c.Pause()
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		c.SetFrequency(c.Frequency() * 2)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		c.SetFrequency(c.Frequency() / 2)
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		s.sourceOp(c.Source(), "open", c.Source().Open)
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		s.sourceOp(c.Source(), "close", c.Source().Close)
	}
	return nil
}

// sourceOp runs op off the game loop; closing waits for the pacing loop and
// must not stall rendering.
func (s *Surface) sourceOp(src source.Source, name string, op func(context.Context) error) {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.busy.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), sourceOpTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			s.log.Error("source "+name+" failed", "source", src.Name(), "error", err)
		}
	}()
}

func (s *Surface) Draw(screen *ebiten.Image) {
	c := s.controller()
	if c != nil && s.dirty.Swap(false) {
		s.upload(c.Frame())
	}

	if s.hasFrame {
		sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
		fw, fh := float64(s.ebitenImage.Bounds().Dx()), float64(s.ebitenImage.Bounds().Dy())
		scale, offsetX, offsetY := aspectFitTransform(float64(sw), float64(sh), fw, fh)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(offsetX, offsetY)
		screen.DrawImage(s.ebitenImage, op)
	}
	ebitenutil.DebugPrint(screen, statusLine(c))
}

// upload copies f into the texture. A nil frame keeps the last one shown.
func (s *Surface) upload(f *source.Frame) {
	if f == nil || f.Image == nil {
		return
	}
	w, h := f.Width(), f.Height()
	if s.ebitenImage == nil ||
		s.ebitenImage.Bounds().Dx() != w ||
		s.ebitenImage.Bounds().Dy() != h {
		if s.ebitenImage != nil {
			s.ebitenImage.Deallocate()
		}
		s.ebitenImage = ebiten.NewImage(w, h)
	}
	s.ebitenImage.WritePixels(f.Image.Pix)
	s.hasFrame = true
}

func (s *Surface) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
