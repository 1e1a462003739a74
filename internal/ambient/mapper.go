package ambient

import (
	"math"

	"github.com/saaga0h/lumitray/internal/model"
)

const (
	// Floor of 6% keeps a pitch-dark room from blanking the panel entirely;
	// the curve saturates at 100% around 800 lux.
	minimumBrightness = 6.0
	maximumBrightness = 100.0
	luxCeiling        = 801.0

	smoothingAlpha = 0.24
	applyDeadband  = 2
	maxApplyStep   = 4
)

// MapLuxToBrightness converts an illuminance reading into a brightness
// target on a logarithmic (perceptual) curve. Pure and stateless.
func MapLuxToBrightness(lux float64) int {
	if lux < 0 {
		lux = 0
	}
	normalized := math.Log10(lux+1.0) / math.Log10(luxCeiling)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	target := minimumBrightness + normalized*(maximumBrightness-minimumBrightness)
	return model.ClampBrightness(int(math.Round(target)))
}

// Conditioner smooths raw brightness targets and limits the per-tick step so
// sensor noise does not churn the displays and transitions stay invisible.
// One instance per running ambient session; not safe for concurrent use.
type Conditioner struct {
	smoothed    *float64
	lastApplied *int
}

// NewConditioner returns a conditioner with empty state
func NewConditioner() *Conditioner {
	return &Conditioner{}
}

// Next feeds one raw target through smoothing and step limiting. apply is
// false when the change is inside the deadband and nothing should be sent
// to the displays.
func (c *Conditioner) Next(raw int) (level int, apply bool) {
	value := float64(model.ClampBrightness(raw))
	if c.smoothed == nil {
		c.smoothed = &value
	} else {
		*c.smoothed += smoothingAlpha * (value - *c.smoothed)
	}

	desired := model.ClampBrightness(int(math.Round(*c.smoothed)))
	if c.lastApplied == nil {
		c.lastApplied = &desired
		return desired, true
	}

	delta := desired - *c.lastApplied
	if delta < applyDeadband && delta > -applyDeadband {
		return *c.lastApplied, false
	}
	if delta > maxApplyStep {
		delta = maxApplyStep
	}
	if delta < -maxApplyStep {
		delta = -maxApplyStep
	}
	next := model.ClampBrightness(*c.lastApplied + delta)
	c.lastApplied = &next
	return next, true
}

// Reset clears smoothing and step-limiting state so a re-enabled session
// starts clean
func (c *Conditioner) Reset() {
	c.smoothed = nil
	c.lastApplied = nil
}
