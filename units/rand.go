// SPDX-License-Identifier: GPL-3.0

package units

import "math/rand/v2"

// NewSubstream returns a seeded, reproducible uniform-[0,1) source for the
// given substream index, derived from a single run seed. Each AQM or sender
// instance that needs random draws is assigned its own substream index so
// that a run seed deterministically reproduces the whole simulation
// regardless of how many components consume draws.
func NewSubstream(seed uint64, index int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(index)))
}
