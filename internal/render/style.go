package render

import "github.com/charmbracelet/lipgloss"

// Role is the semantic color class of a piece of text.
type Role int

const (
	RoleDefault Role = iota
	RoleLabel
	RoleValue
	RoleOK
	RoleWarn
	RoleBad
)

// Style is what a Screen needs to know to paint text.
type Style struct {
	Role Role
	Bold bool
}

// Terminal palette, 16-color ANSI so it follows the user's theme.
const (
	ColorLabel = lipgloss.Color("6")
	ColorOK    = lipgloss.Color("2")
	ColorWarn  = lipgloss.Color("3")
	ColorBad   = lipgloss.Color("1")
)

// Palette maps roles to lipgloss styles bound to one renderer.
type Palette struct {
	styles map[Role]lipgloss.Style
	plain  lipgloss.Style
}

// NewPalette builds the role styles. With color off every role is uncolored
// and only boldness is kept.
func NewPalette(r *lipgloss.Renderer, color bool) Palette {
	p := Palette{
		styles: make(map[Role]lipgloss.Style),
		plain:  r.NewStyle(),
	}
	if !color {
		return p
	}
	p.styles[RoleLabel] = r.NewStyle().Foreground(ColorLabel)
	p.styles[RoleOK] = r.NewStyle().Foreground(ColorOK)
	p.styles[RoleWarn] = r.NewStyle().Foreground(ColorWarn)
	p.styles[RoleBad] = r.NewStyle().Foreground(ColorBad)
	return p
}

// Render paints text with the style for s.
func (p Palette) Render(text string, s Style) string {
	style, ok := p.styles[s.Role]
	if !ok {
		style = p.plain
	}
	return style.Bold(s.Bold).Render(text)
}
