package archive

import "regexp"

// Params are the simulation parameters encoded in an archive identity,
// e.g. "Ma+0.94_i_30_Rhigh_160_230GHz". All fields are optional; the
// renderer uses them for the movie's title card and the pipeline logs
// them for traceability.
type Params struct {
	FrequencyGHz string
	Spin         string
	Inclination  string
	Rhigh        string
}

var (
	reFrequency   = regexp.MustCompile(`(?i)(\d+)\s*GHz`)
	reSpin        = regexp.MustCompile(`(?:^|_)Ma([+\-]?\d*\.?\d+)(?:_|$)`)
	reInclination = regexp.MustCompile(`(?i)(?:^|_)i_(\d+)(?:_|$)`)
	reRhigh       = regexp.MustCompile(`(?i)(?:^|_)Rhigh_(\d+)(?:_|$)`)
)

// ParseParams extracts simulation parameters from an archive identity.
func ParseParams(identity string) Params {
	var p Params
	if m := reFrequency.FindStringSubmatch(identity); m != nil {
		p.FrequencyGHz = m[1]
	}
	if m := reSpin.FindStringSubmatch(identity); m != nil {
		p.Spin = m[1]
	}
	if m := reInclination.FindStringSubmatch(identity); m != nil {
		p.Inclination = m[1]
	}
	if m := reRhigh.FindStringSubmatch(identity); m != nil {
		p.Rhigh = m[1]
	}
	return p
}

// Empty reports whether no parameter was recognized.
func (p Params) Empty() bool {
	return p == Params{}
}
