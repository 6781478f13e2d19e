// Package pricing computes multi-device plan pricing.
//
// The figure shown on the plan card and the figure charged must be the
// same number, so everything here is pure arithmetic: no clock, no
// randomness, no I/O.
package pricing

import (
	"math"

	"github.com/mkutano/hotspot/internal/plan"
)

// ExtraDeviceFactor is the share of the base price each device beyond
// the first adds.
const ExtraDeviceFactor = 0.6

// Price returns the charge for running deviceCount devices on p, rounded
// to the nearest integer currency unit. One device costs the base price;
// each additional device adds 60% of it.
//
// deviceCount is expected to be >= 1 and clamped to p.MaxDevices by the
// caller (see ClampDevices); Price itself is a plain arithmetic mapping.
func Price(p *plan.Plan, deviceCount int) int64 {
	if deviceCount <= 1 {
		return int64(math.Round(p.BasePrice))
	}
	total := p.BasePrice * (1 + ExtraDeviceFactor*float64(deviceCount-1))
	return int64(math.Round(total))
}

// ClampDevices bounds a requested device count to [1, p.MaxDevices].
func ClampDevices(p *plan.Plan, deviceCount int) int {
	if deviceCount < 1 {
		return 1
	}
	if deviceCount > p.MaxDevices {
		return p.MaxDevices
	}
	return deviceCount
}
