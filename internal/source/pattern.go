package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var bars = []color.RGBA{
	{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0xc0, A: 0xff},
}

// PatternCamera is a synthetic camera producing scrolling colour bars at its
// native frame rate while open.
type PatternCamera struct {
	*Device
	fps int

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
	seq    uint64
}

// NewPatternCamera creates a closed pattern camera of the given size and FPS.
func NewPatternCamera(name string, size Size, fps int) (*PatternCamera, error) {
	if fps <= 0 || fps > 60 {
		return nil, fmt.Errorf("fps must be 1-60, got %d", fps)
	}
	if size.Empty() {
		return nil, fmt.Errorf("invalid frame size %dx%d", size.Width, size.Height)
	}
	return &PatternCamera{
		Device: NewDevice(name, size),
		fps:    fps,
	}, nil
}

func (c *PatternCamera) Open(ctx context.Context) error {
	return c.Transition(ctx, true, c.start)
}

func (c *PatternCamera) Close(ctx context.Context) error {
	return c.Transition(ctx, false, c.stop)
}

func (c *PatternCamera) start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.loop(c.stopCh, c.doneCh)
	return nil
}

func (c *PatternCamera) stop(ctx context.Context) error {
	c.mu.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *PatternCamera) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			c.seq++
			c.PutFrame(&Frame{
				Image:     RenderPattern(c.ViewSize(), c.seq, now),
				Seq:       c.seq,
				Timestamp: now,
			})
		}
	}
}

// RenderPattern draws colour bars shifted by seq and stamps seq and ts in
// the top-left corner.
func RenderPattern(size Size, seq uint64, ts time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	barW := size.Width / len(bars)
	if barW == 0 {
		barW = 1
	}
	shift := int(seq) % size.Width
	for x := 0; x < size.Width; x++ {
		c := bars[((x+shift)/barW)%len(bars)]
		for y := 0; y < size.Height; y++ {
			img.SetRGBA(x, y, c)
		}
	}

	label := fmt.Sprintf("#%d %s", seq, ts.Format("15:04:05.000"))
	box := image.Rect(0, 0, 8+7*len(label), 20).Intersect(img.Bounds())
	draw.Draw(img, box, image.Black, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	d.DrawString(label)
	return img
}
