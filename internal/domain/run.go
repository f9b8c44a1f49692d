package domain

import "sort"

// RunOptions is the input to NewRunContext.
type RunOptions struct {
	Range           TimeRange
	Families        FamilyRequest
	AcceptedMetrics []string

	// LocalData is true when samples come from a local archive rather than a
	// live data-select service.
	LocalData bool
	// StationMetadata is true when a live station metadata service backs
	// availability.
	StationMetadata bool
	// LibraryVersion is the metric library version in use.
	LibraryVersion string
	// LegacyLibrary is true when LibraryVersion predates the release that
	// decodes state-of-health flags from locally supplied data.
	LegacyLibrary bool
	// DataSelectURL identifies the stream backend in warnings.
	DataSelectURL string
}

// RunContext is the immutable configuration of one metric run. It is built
// once by NewRunContext and only exposes copies of its contents.
type RunContext struct {
	rng             TimeRange
	families        FamilyRequest
	accepted        map[string]struct{}
	localData       bool
	stationMetadata bool
	libraryVersion  string
	legacyLibrary   bool
	dataSelectURL   string
}

// NewRunContext copies opts into a RunContext.
func NewRunContext(opts RunOptions) RunContext {
	accepted := make(map[string]struct{}, len(opts.AcceptedMetrics))
	for _, name := range opts.AcceptedMetrics {
		accepted[name] = struct{}{}
	}
	return RunContext{
		rng:             opts.Range,
		families:        opts.Families.Clone(),
		accepted:        accepted,
		localData:       opts.LocalData,
		stationMetadata: opts.StationMetadata,
		libraryVersion:  opts.LibraryVersion,
		legacyLibrary:   opts.LegacyLibrary,
		dataSelectURL:   opts.DataSelectURL,
	}
}

func (rc RunContext) Range() TimeRange { return rc.rng }

// Families returns a copy of the requested families.
func (rc RunContext) Families() FamilyRequest { return rc.families.Clone() }

// Requested reports whether family f was requested.
func (rc RunContext) Requested(f Family) bool { return rc.families.Has(f) }

// Accepts reports whether name is in the caller's accepted metric set.
func (rc RunContext) Accepts(name string) bool {
	_, ok := rc.accepted[name]
	return ok
}

// AcceptedMetrics returns the accepted metric names, sorted.
func (rc RunContext) AcceptedMetrics() []string {
	out := make([]string, 0, len(rc.accepted))
	for name := range rc.accepted {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (rc RunContext) LocalData() bool        { return rc.localData }
func (rc RunContext) StationMetadata() bool  { return rc.stationMetadata }
func (rc RunContext) LibraryVersion() string { return rc.libraryVersion }
func (rc RunContext) LegacyLibrary() bool    { return rc.legacyLibrary }
func (rc RunContext) DataSelectURL() string  { return rc.dataSelectURL }
