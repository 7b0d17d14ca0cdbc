// Package tray shows live throughput in the system tray.
package tray

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/systray"

	"github.com/shini4i/netspeed/internal/speed"
)

// ActivityThreshold is the rate in bytes per second above which the
// icon switches to the active color.
const ActivityThreshold = 1024

var (
	// ErrTrayAlreadyRunning is returned when attempting to modify callbacks after Run() has been called.
	ErrTrayAlreadyRunning = errors.New("cannot modify callbacks after Tray.Run() is called")
	// ErrTrayRunTwice is returned when Run() is called more than once.
	ErrTrayRunTwice = errors.New("Tray.Run() called twice")
	// ErrTrayMissingCallbacks is returned when Run() is called without all required callbacks set.
	ErrTrayMissingCallbacks = errors.New("all callbacks (OnReset, OnQuit) must be set before calling Run()")
)

// State is what the tray icon currently conveys.
type State int

const (
	StateOffline State = iota
	StateIdle
	StateActive
)

// Tray manages the system tray icon and menu.
type Tray struct {
	mu sync.RWMutex

	state   State
	current speed.Speed
	message string

	menuRate   *systray.MenuItem
	menuStatus *systray.MenuItem
	menuReset  *systray.MenuItem
	menuQuit   *systray.MenuItem

	// Must be set before Run()
	onReset func()
	onQuit  func()

	done      chan struct{}
	running   bool
	closeOnce sync.Once
}

// New creates a tray in the offline state.
func New() *Tray {
	return &Tray{
		state:   StateOffline,
		message: "Waiting for daemon",
		done:    make(chan struct{}),
	}
}

// OnReset registers a callback for the Reset menu item.
func (t *Tray) OnReset(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onReset = callback
	return nil
}

// OnQuit registers a callback for the Quit menu item.
func (t *Tray) OnQuit(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onQuit = callback
	return nil
}

// SetSpeed shows a fresh reading.
func (t *Tray) SetSpeed(s speed.Speed) {
	t.mu.Lock()
	t.current = s
	t.state = stateFor(s)
	t.message = ""
	t.mu.Unlock()
	t.refresh()
}

// SetError shows a measurement failure without discarding the last reading.
func (t *Tray) SetError(message string) {
	t.mu.Lock()
	t.message = message
	t.mu.Unlock()
	t.refresh()
}

// SetOffline marks the daemon as unreachable.
func (t *Tray) SetOffline(message string) {
	t.mu.Lock()
	t.state = StateOffline
	t.current = speed.Speed{}
	t.message = message
	t.mu.Unlock()
	t.refresh()
}

// Run starts the system tray. It blocks until Quit.
func (t *Tray) Run() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrTrayRunTwice
	}
	if t.onReset == nil || t.onQuit == nil {
		t.mu.Unlock()
		return ErrTrayMissingCallbacks
	}
	t.running = true
	t.mu.Unlock()

	systray.Run(t.onReady, t.onExit)
	return nil
}

// Quit closes the tray. Safe to call multiple times.
func (t *Tray) Quit() {
	t.closeOnce.Do(func() {
		close(t.done)
		systray.Quit()
	})
}

func (t *Tray) onReady() {
	systray.SetIcon(iconOfflinePNG)
	systray.SetTooltip("netspeed")

	t.menuRate = systray.AddMenuItem(rateLabel(speed.Speed{}), "Current throughput")
	t.menuRate.Disable()
	t.menuStatus = systray.AddMenuItem("", "Daemon status")
	t.menuStatus.Disable()

	systray.AddSeparator()

	t.menuReset = systray.AddMenuItem("Reset", "Clear history and start a new baseline")
	t.menuQuit = systray.AddMenuItem("Quit", "Quit netspeed tray")

	go t.handleMenuClicks()
	t.refresh()

	slog.Info("System tray initialized")
}

func (t *Tray) onExit() {
	slog.Info("System tray closed")
}

func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.done:
			return
		case _, ok := <-t.menuReset.ClickedCh:
			if !ok {
				return
			}
			t.onReset()
		case _, ok := <-t.menuQuit.ClickedCh:
			if !ok {
				return
			}
			t.onQuit()
		}
	}
}

func (t *Tray) refresh() {
	if t.menuRate == nil {
		return // Not initialized yet
	}

	t.mu.RLock()
	state, current, message := t.state, t.current, t.message
	t.mu.RUnlock()

	systray.SetIcon(iconFor(state))
	systray.SetTitle(titleFor(state, current))
	systray.SetTooltip(tooltipFor(state, current, message))
	t.menuRate.SetTitle(rateLabel(current))

	if message == "" {
		t.menuStatus.Hide()
	} else {
		t.menuStatus.SetTitle(message)
		t.menuStatus.Show()
	}

	if state == StateOffline {
		t.menuReset.Disable()
	} else {
		t.menuReset.Enable()
	}
}

func stateFor(s speed.Speed) State {
	if s.IsActive(ActivityThreshold) {
		return StateActive
	}
	return StateIdle
}

func iconFor(state State) []byte {
	switch state {
	case StateActive:
		return iconActivePNG
	case StateIdle:
		return iconIdlePNG
	default:
		return iconOfflinePNG
	}
}

func rateLabel(s speed.Speed) string {
	return fmt.Sprintf("↓ %s  ↑ %s", s.DownloadFormatted(), s.UploadFormatted())
}

func titleFor(state State, s speed.Speed) string {
	if state == StateOffline {
		return ""
	}
	return fmt.Sprintf("↓%s ↑%s", s.DownloadFormatted(), s.UploadFormatted())
}

func tooltipFor(state State, s speed.Speed, message string) string {
	var tooltip string
	switch state {
	case StateOffline:
		tooltip = "netspeed - offline"
	default:
		tooltip = "netspeed - " + rateLabel(s)
	}
	if message != "" {
		tooltip += " (" + message + ")"
	}
	return tooltip
}
