package domain

import (
	"fmt"
	"sort"
)

// Family is a category of quality-control computation. One family may
// produce several distinctly named metrics.
type Family int

const (
	FamilyGaps Family = iota
	FamilyStateOfHealth
	FamilyBasicStats
	FamilySTALTA
	FamilyNumSpikes
)

// Families lists every family in dispatch order.
var Families = []Family{
	FamilyGaps,
	FamilyStateOfHealth,
	FamilyBasicStats,
	FamilySTALTA,
	FamilyNumSpikes,
}

var familyNames = map[Family]string{
	FamilyGaps:          "gaps",
	FamilyStateOfHealth: "stateOfHealth",
	FamilyBasicStats:    "basicStats",
	FamilySTALTA:        "STALTA",
	FamilyNumSpikes:     "numSpikes",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily maps a family name such as "basicStats" to its Family.
func ParseFamily(name string) (Family, error) {
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown metric family %q", name)
}

// FamilyRequest maps each requested family to the metric names requested
// within it.
type FamilyRequest map[Family][]string

// Has reports whether family f was requested.
func (r FamilyRequest) Has(f Family) bool {
	_, ok := r[f]
	return ok
}

// Only reports whether f is the single family requested.
func (r FamilyRequest) Only(f Family) bool {
	return len(r) == 1 && r.Has(f)
}

// Clone returns a deep copy with sorted metric names.
func (r FamilyRequest) Clone() FamilyRequest {
	out := make(FamilyRequest, len(r))
	for f, names := range r {
		cp := append([]string(nil), names...)
		sort.Strings(cp)
		out[f] = cp
	}
	return out
}

// STALTAParams configures the short-term/long-term average ratio metric.
type STALTAParams struct {
	STASecs   float64
	LTASecs   float64
	Increment int // evaluate one point, then skip ahead this many samples
	Algorithm string
}

// SpikeParams configures the spike counting metric.
type SpikeParams struct {
	WindowSize     int
	ThresholdMin   float64
	FixedThreshold bool
}

// Params carries the family-specific parameters of one metric invocation.
// Families without parameters receive the zero value.
type Params struct {
	STALTA *STALTAParams
	Spikes *SpikeParams
}
