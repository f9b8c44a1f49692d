package availability

import (
	"regexp"

	"seisqc/internal/domain"
)

// ChannelFilter is a named predicate over channel codes, applied to the
// availability list before any stream is fetched.
type ChannelFilter struct {
	name    string
	pattern *regexp.Regexp
}

var (
	allChannels       = ChannelFilter{name: "allChannels", pattern: regexp.MustCompile(`.*`)}
	numSpikesChannels = ChannelFilter{name: "numSpikesEligible", pattern: regexp.MustCompile(`[BHSE][HX].`)}
	staltaChannels    = ChannelFilter{name: "staltaEligible", pattern: regexp.MustCompile(`[BHCDESLM][HPLGNX].`)}
)

// AllChannels passes every channel code.
func AllChannels() ChannelFilter { return allChannels }

// NumSpikesChannels passes broadband and high-gain codes, [BHSE][HX].
func NumSpikesChannels() ChannelFilter { return numSpikesChannels }

// STALTAChannels passes seismometer and accelerometer codes,
// [BHCDESLM][HPLGNX].
func STALTAChannels() ChannelFilter { return staltaChannels }

// FilterFor picks the filter for a family request. Only a request for
// numSpikes alone or STALTA alone narrows the channel set.
func FilterFor(req domain.FamilyRequest) ChannelFilter {
	switch {
	case req.Only(domain.FamilyNumSpikes):
		return numSpikesChannels
	case req.Only(domain.FamilySTALTA):
		return staltaChannels
	default:
		return allChannels
	}
}

// Name returns the filter's name for logging.
func (f ChannelFilter) Name() string { return f.name }

// Pattern returns the regular expression source.
func (f ChannelFilter) Pattern() string {
	if f.pattern == nil {
		return ".*"
	}
	return f.pattern.String()
}

// Match reports whether the channel code contains a match of the pattern.
// The zero ChannelFilter matches everything.
func (f ChannelFilter) Match(channel string) bool {
	if f.pattern == nil {
		return true
	}
	return f.pattern.MatchString(channel)
}
