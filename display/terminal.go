package respiro

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Rt "github.com/maroda/respiro/types"
)

const (
	screenGutter = 4
	barWidth     = 60
)

// View renders the breathing monitor on a tcell screen and turns
// keypresses into the controller's command enum. It never touches
// breathing state directly: each tick hands it a finished Snapshot.
type View struct {
	MU     sync.Mutex
	Screen tcell.Screen
	Cmds   chan<- Rt.Command
	last   Rt.Snapshot
}

// GetTTY prepares the terminal screen for drawing.
func GetTTY() (tcell.Screen, error) {
	defStyle := tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)

	s, err := tcell.NewScreen()
	if err != nil {
		slog.Error("Could not get new screen", slog.Any("Error", err))
		return nil, err
	}
	if err := s.Init(); err != nil {
		slog.Error("Could not initialize screen", slog.Any("Error", err))
		return nil, err
	}
	s.SetStyle(defStyle)
	s.Clear()

	return s, nil
}

// NewView creates the screen and binds the command channel.
func NewView(cmds chan<- Rt.Command) (*View, error) {
	screen, err := GetTTY()
	if err != nil {
		return nil, err
	}
	return &View{Screen: screen, Cmds: cmds}, nil
}

// NewViewWithScreen is the injectable form, used with a
// SimulationScreen in tests.
func NewViewWithScreen(s tcell.Screen, cmds chan<- Rt.Command) *View {
	return &View{Screen: s, Cmds: cmds}
}

// StalenessColor slides the bar from blue (fresh breath)
// to red (stale), mirroring what the lamp itself is doing.
func StalenessColor(staleness float64) tcell.Color {
	if staleness < 0 {
		staleness = 0
	}
	if staleness > 1 {
		staleness = 1
	}
	r := int32(255 * staleness)
	b := int32(255 * (1 - staleness))
	return tcell.NewRGBColor(r, 40, b)
}

// BarRunes translates intensity into a row of block runes.
func BarRunes(intensity float64, width int) []rune {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	fill := int(intensity * float64(width))

	bar := make([]rune, width)
	for i := range bar {
		if i < fill {
			bar[i] = '█'
		} else {
			bar[i] = ' '
		}
	}
	return bar
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
}

// DrawBreathBar renders the intensity bar in the staleness color.
func (v *View) DrawBreathBar(x, y int, snap Rt.Snapshot) {
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(StalenessColor(snap.Staleness))
	for i, r := range BarRunes(snap.State.Intensity, barWidth) {
		v.Screen.SetContent(x+i, y, r, nil, style)
	}
}

// Render draws one complete frame from the Snapshot.
func (v *View) Render(snap Rt.Snapshot) {
	v.MU.Lock()
	v.last = snap
	v.MU.Unlock()

	width, height := v.Screen.Size()

	v.Screen.Clear()
	v.DrawViewBorder(width-2, height-1)

	v.DrawText(1, 1, width-2, 2, "Breath...")
	v.DrawBreathBar(1, screenGutter, snap)

	status := fmt.Sprintf("samples: %d | intensity: %.2f | staleness: %.2f | bri: %d",
		snap.WindowCap, snap.State.Intensity, snap.Staleness, snap.Brightness)
	v.DrawText(1, screenGutter+2, width-2, screenGutter+3, status)

	v.DrawText(1, height-1, width, height+10, "/up/down/ samples | /space/ reset | /q/ to quit")
	v.DrawText(width-10, height-1, width, height+10, "RESPIRO")

	v.Screen.Show()
}

// Last returns the most recently rendered Snapshot.
func (v *View) Last() Rt.Snapshot {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.last
}

// HandleKeyboardEvent is the running loop for the command surface.
// It returns after sending Quit so the caller can wait for the
// controller to finish its orderly shutdown.
func (v *View) HandleKeyboardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			v.Screen.Sync()
		case *tcell.EventKey:
			if quit := v.handleKey(ev); quit {
				return
			}
		}
	}
}

// handleKey maps one keypress onto the command enum.
func (v *View) handleKey(ev *tcell.EventKey) bool {
	switch {
	case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
		v.Cmds <- Rt.Quit
		return true
	case ev.Key() == tcell.KeyUp:
		v.Cmds <- Rt.WindowUp
	case ev.Key() == tcell.KeyDown:
		v.Cmds <- Rt.WindowDown
	case ev.Rune() == ' ':
		v.Cmds <- Rt.WindowReset
	}
	return false
}

// Fini releases the terminal. Call after the controller stops.
func (v *View) Fini() {
	// Give the last frame a beat before the screen drops
	time.Sleep(50 * time.Millisecond)
	v.Screen.Fini()
}
