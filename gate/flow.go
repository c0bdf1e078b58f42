package gate

import (
	"fmt"

	"github.com/rustyeddy/expiry/market"
)

// FlowConfig holds the order-flow bands (in strike steps) and thresholds.
type FlowConfig struct {
	PCRBand  int `yaml:"pcr_band" json:"pcr_band"`
	SkewBand int `yaml:"skew_band" json:"skew_band"`
	NearBand int `yaml:"near_band" json:"near_band"`
	MidBand  int `yaml:"mid_band" json:"mid_band"`

	PCRLow      float64 `yaml:"pcr_low" json:"pcr_low"`
	PCRHigh     float64 `yaml:"pcr_high" json:"pcr_high"`
	SkewMax     float64 `yaml:"skew_max" json:"skew_max"`
	VelocityMin float64 `yaml:"velocity_min" json:"velocity_min"`
}

func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		PCRBand:     6,
		SkewBand:    2,
		NearBand:    1,
		MidBand:     3,
		PCRLow:      0.8,
		PCRHigh:     1.2,
		SkewMax:     0.9,
		VelocityMin: 0.6,
	}
}

// Flow is the order-flow reading of a snapshot.
type Flow struct {
	PCR    float64
	CESkew float64 // call OI / put OI over the skew band
	PESkew float64 // put OI / call OI over the skew band
	VelCE  float64 // near-band call OI / mid-band call OI
	VelPE  float64
	Bull   bool
	Bear   bool
}

func ratio(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

// AnalyzeFlow computes the flow reading. An empty snapshot confirms nothing.
func AnalyzeFlow(snap market.Snapshot, cfg FlowConfig) Flow {
	if snap.Empty() {
		return Flow{}
	}

	var f Flow
	f.PCR = ratio(snap.BandOI(cfg.PCRBand, market.Put), snap.BandOI(cfg.PCRBand, market.Call))

	skewCE := snap.BandOI(cfg.SkewBand, market.Call)
	skewPE := snap.BandOI(cfg.SkewBand, market.Put)
	f.CESkew = ratio(skewCE, skewPE)
	f.PESkew = ratio(skewPE, skewCE)

	f.VelCE = ratio(snap.BandOI(cfg.NearBand, market.Call), snap.BandOI(cfg.MidBand, market.Call))
	f.VelPE = ratio(snap.BandOI(cfg.NearBand, market.Put), snap.BandOI(cfg.MidBand, market.Put))

	f.Bull = f.PCR < cfg.PCRLow && f.PESkew < cfg.SkewMax && f.VelCE > cfg.VelocityMin
	f.Bear = f.PCR > cfg.PCRHigh && f.CESkew < cfg.SkewMax && f.VelPE > cfg.VelocityMin
	return f
}

// Confirms reports whether either side is supported.
func (f Flow) Confirms() bool { return f.Bull || f.Bear }

// Side is the supported direction. Bull wins when both confirm.
func (f Flow) Side() (market.Direction, bool) {
	switch {
	case f.Bull:
		return market.Bull, true
	case f.Bear:
		return market.Bear, true
	}
	return market.Bull, false
}

func (f Flow) String() string {
	return fmt.Sprintf("pcr %.2f ce_skew %.2f pe_skew %.2f vel_ce %.2f vel_pe %.2f",
		f.PCR, f.CESkew, f.PESkew, f.VelCE, f.VelPE)
}
