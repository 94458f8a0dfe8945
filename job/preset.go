package job

// PresetKind selects the encoder parameter bundle used for pass 1; it is
// the int-valued half of the tagged Preset value described in spec §3.
type PresetKind int

const (
	PresetPseudoLossless PresetKind = iota
	PresetStandard
	PresetGpu
)

func (k PresetKind) String() string {
	switch k {
	case PresetPseudoLossless:
		return "pseudolossless"
	case PresetStandard:
		return "x264"
	case PresetGpu:
		return "gpu"
	default:
		return "unknown"
	}
}

// Flag returns the CLI preset switch pnencode expects (spec §6): at most
// one of --x264/--gpu/--pseudolossless/--concat.
func (k PresetKind) Flag() string {
	switch k {
	case PresetPseudoLossless:
		return "--pseudolossless"
	case PresetGpu:
		return "--gpu"
	default:
		return "--x264"
	}
}

// Preset is Go's rendering of spec §3's tagged
// PseudoLossless(optional concat_id) | Standard(optional concat_id) |
// Gpu(optional concat_id) variant: a Kind plus an optional concat id, since
// Go lacks a native tagged union.
type Preset struct {
	Kind     PresetKind
	ConcatID *int
}

// HasConcat reports whether pass 2 (the conditional concat pass, spec §4.5)
// applies to this preset.
func (p Preset) HasConcat() bool {
	return p.ConcatID != nil
}
