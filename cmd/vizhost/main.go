// Command vizhost is a reference render host: it ticks the control runtime
// from its own frame loop and draws every control value each frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"go-vjctl/app"
	"go-vjctl/config"
	"go-vjctl/control"
	"go-vjctl/param"
	"go-vjctl/theme"
)

const (
	windowW = 960
	windowH = 540
	barH    = 18
	labelW  = 140
)

var bgColor = color.RGBA{12, 10, 24, 255}

type bar struct {
	name     string
	text     string
	unit     float64
	disabled bool
}

type game struct {
	m       *control.Manager
	palette *theme.Palette
	bars    []bar
	beat    float64
	viewW   int
	viewH   int
}

func (g *game) Update() error {
	g.m.Tick(time.Second / time.Duration(ebiten.TPS()))
	if g.m.Changed() || g.bars == nil {
		g.collect()
		g.m.MarkUnchanged()
	}
	g.beat = g.m.Beat()
	return nil
}

// collect reads the published values. It runs on the tick goroutine, so
// the graph may be read directly.
func (g *game) collect() {
	g.bars = g.bars[:0]
	for _, n := range g.m.Graph().List {
		if !n.Valued() {
			continue
		}
		v := g.m.Get(n.Name)
		g.bars = append(g.bars, bar{
			name:     n.Name,
			text:     v.String(),
			unit:     unit(n, v),
			disabled: g.m.Disabled(n.Name),
		})
	}
}

func unit(n *control.Node, v param.Value) float64 {
	if n.Spec.Type != param.Float || n.Spec.Range.Max == n.Spec.Range.Min {
		return max(0, min(1, v.Float()))
	}
	return n.Spec.ToUnit(v)
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	// a beat-locked pulse across the top
	phase := g.beat - float64(int(g.beat))
	ebitenutil.DrawRect(screen, 0, 0, float64(g.viewW)*(1-phase), 4, g.color(1-phase, 255))

	trackW := float64(g.viewW - labelW - 24)
	for i, b := range g.bars {
		y := 16 + float64(i)*(barH+6)
		alpha := uint8(255)
		if b.disabled {
			alpha = 80
		}
		ebitenutil.DebugPrintAt(screen, b.name, 8, int(y)+1)
		ebitenutil.DrawRect(screen, labelW, y, trackW, barH, color.RGBA{40, 36, 60, alpha})
		ebitenutil.DrawRect(screen, labelW, y, trackW*b.unit, barH, g.color(b.unit, alpha))
		ebitenutil.DebugPrintAt(screen, b.text, labelW+4, int(y)+1)
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("beat %.2f  %.1f bpm  %.0f fps", g.beat, g.m.Clock().Tempo(), ebiten.ActualFPS()), 8, g.viewH-18)
}

func (g *game) color(u float64, alpha uint8) color.RGBA {
	c := g.palette.Lookup(0.2 + 0.8*u)
	return color.RGBA{c[0], c[1], c[2], alpha}
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = outsideW
	g.viewH = outsideH
	return outsideW, outsideH
}

func main() {
	configPath := flag.String("config", "", "config file")
	scriptPath := flag.String("script", "", "script to load")
	noMIDI := flag.Bool("no-midi", false, "do not open MIDI ports")
	palette := flag.String("palette", "", "GIMP palette for the bars")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	a, err := app.New(app.Options{Config: cfg, Script: cfg.ScriptPath(*scriptPath), NoMIDI: *noMIDI})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)

	g := &game{
		m:       a.Manager,
		palette: theme.LoadGPLOr(*palette),
		viewW:   windowW,
		viewH:   windowH,
	}
	if cfg.FPS > 0 {
		ebiten.SetTPS(cfg.FPS)
	}
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle("go-vjctl vizhost")
	runErr := ebiten.RunGame(g)

	cancel()
	a.Manager.Shutdown()
	a.Close()
	if runErr != nil {
		log.Fatal(runErr)
	}
}
