package domain

import (
	"fmt"
	"strings"
)

// Style identifies a cover layout
type Style string

const (
	StyleSingle1 Style = "single_1"
	StyleSingle2 Style = "single_2"
	StyleMulti1  Style = "multi_1"
	StyleMulti2  Style = "multi_2"
)

// StyleFamily groups styles that share selection and font rules
type StyleFamily int

const (
	FamilySingle StyleFamily = iota
	FamilyMulti
)

func (f StyleFamily) String() string {
	if f == FamilyMulti {
		return "multi"
	}
	return "single"
}

// MaxGridImages is how many distinct images the multi family lays out
const MaxGridImages = 9

type styleInfo struct {
	family   StyleFamily
	required int
	label    string
}

// styles is the closed table of known styles. Adding a style is a table change here
// plus a renderer registration in the compose package.
var styles = map[Style]styleInfo{
	StyleSingle1: {family: FamilySingle, required: 1, label: "Single 1"},
	StyleSingle2: {family: FamilySingle, required: 1, label: "Single 2"},
	StyleMulti1:  {family: FamilyMulti, required: 16, label: "Multi 1"},
	StyleMulti2:  {family: FamilyMulti, required: 16, label: "Multi 2"},
}

// ParseStyle converts a configured identifier into a Style
func ParseStyle(s string) (Style, error) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styles[style]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
	return style, nil
}

// Styles returns every known style in a stable order
func Styles() []Style {
	return []Style{StyleSingle1, StyleSingle2, StyleMulti1, StyleMulti2}
}

// Valid reports whether the style is in the table
func (s Style) Valid() bool {
	_, ok := styles[s]
	return ok
}

// Family returns the style family
func (s Style) Family() StyleFamily {
	return styles[s].family
}

// RequiredItems is how many source items a synthesis tries to collect
func (s Style) RequiredItems() int {
	return styles[s].required
}

// Label returns a human readable name
func (s Style) Label() string {
	if info, ok := styles[s]; ok {
		return info.label
	}
	return string(s)
}

// StyleParams carries the tunable rendering parameters of one synthesis
type StyleParams struct {
	ZhFontSizeRatio float64 // Multiplier on the style's base Chinese font size
	EnFontSizeRatio float64 // Multiplier on the style's base English font size
	BlurRadius      float64 // Background blur radius
	ColorMixRatio   float64 // Weight of the derived color in the background blend
	PreferPrimary   bool    // Prefer primary art over backdrops when selecting
	Blur            bool    // multi_1 only: blurred backdrop band behind the title
}

// DefaultStyleParams returns the parameters used when none are configured
func DefaultStyleParams() StyleParams {
	return StyleParams{
		ZhFontSizeRatio: 1,
		EnFontSizeRatio: 1,
		BlurRadius:      50,
		ColorMixRatio:   0.8,
	}
}

// Normalize replaces zero or out-of-range values with defaults
func (p StyleParams) Normalize() StyleParams {
	def := DefaultStyleParams()
	if p.ZhFontSizeRatio <= 0 {
		p.ZhFontSizeRatio = def.ZhFontSizeRatio
	}
	if p.EnFontSizeRatio <= 0 {
		p.EnFontSizeRatio = def.EnFontSizeRatio
	}
	if p.BlurRadius <= 0 {
		p.BlurRadius = def.BlurRadius
	}
	if p.ColorMixRatio <= 0 || p.ColorMixRatio > 1 {
		p.ColorMixRatio = def.ColorMixRatio
	}
	return p
}
