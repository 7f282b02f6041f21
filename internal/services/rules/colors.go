package rules

import "github.com/ludoduel/ludo-server/internal/model"

// ColorConfig describes where a color enters the shared track
type ColorConfig struct {
	StartCell int
}

// ColorTable holds the per-color board configuration
type ColorTable struct {
	Blue   ColorConfig
	Green  ColorConfig
	Red    ColorConfig
	Yellow ColorConfig
}

// StandardColors is the classic four-color layout, a quarter track apart
var StandardColors = ColorTable{
	Blue:   ColorConfig{StartCell: 0},
	Green:  ColorConfig{StartCell: 13},
	Red:    ColorConfig{StartCell: 26},
	Yellow: ColorConfig{StartCell: 39},
}

// Lookup returns the configuration for a color
func (t ColorTable) Lookup(c model.Color) (ColorConfig, bool) {
	switch c {
	case model.ColorBlue:
		return t.Blue, true
	case model.ColorGreen:
		return t.Green, true
	case model.ColorRed:
		return t.Red, true
	case model.ColorYellow:
		return t.Yellow, true
	default:
		return ColorConfig{}, false
	}
}

// safeCells are the start cells plus the star cell eight steps past each
var safeCells = [model.TrackLength]bool{
	0: true, 8: true, 13: true, 21: true,
	26: true, 34: true, 39: true, 47: true,
}

// IsSafeCell returns true if tokens on the track cell cannot be captured
func IsSafeCell(cell int) bool {
	return cell >= 0 && cell < model.TrackLength && safeCells[cell]
}
