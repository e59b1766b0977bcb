package tui

// Keybinding constants.
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyPane3    = "3"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
)

// HelpView returns a one-line help bar with the console's keybindings.
func HelpView() string {
	return StyleHelp.Render("Tab: cycle focus | 1: tasks | 2: agents | 3: events | j/k: scroll | q: quit")
}
