package output

import (
	"fmt"

	"github.com/amimof/huego"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/sweeney/nightlight/internal/logic"
)

// lightStateSetter is the part of *huego.Bridge used by Hue.
type lightStateSetter interface {
	SetLightState(id int, state huego.State) (*huego.Response, error)
}

// Hue drives a single Philips Hue bulb through the bridge REST API.
type Hue struct {
	bridge  lightStateSetter
	lightID int
}

// NewHue connects to the bridge at host using the given API user token.
func NewHue(host, user string, lightID int) *Hue {
	return &Hue{bridge: huego.New(host, user), lightID: lightID}
}

// HueState converts a displayed color to a bulb state. Black turns the bulb
// off; otherwise brightness follows the brightest channel and chromaticity
// is set as CIE xy.
func HueState(c logic.Color) huego.State {
	if c == logic.Black {
		return huego.State{On: false}
	}
	cc := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
	x, y, _ := cc.Xyy()

	bri := max(c.R, c.G, c.B)
	if bri > 254 {
		bri = 254
	}
	return huego.State{
		On:  true,
		Bri: bri,
		Xy:  []float32{float32(x), float32(y)},
	}
}

// Write sets the bulb state.
func (h *Hue) Write(c logic.Color) error {
	if _, err := h.bridge.SetLightState(h.lightID, HueState(c)); err != nil {
		return fmt.Errorf("set hue light %d: %w", h.lightID, err)
	}
	return nil
}

// Close does nothing; the bridge API is stateless.
func (h *Hue) Close() error {
	return nil
}
