package docsis

import (
	"strings"

	"docsis-exporter/lib/textutil"
)

// Metric is the canonical name of a per-channel measurement.
type Metric string

const (
	DownstreamPower         Metric = "downstream_power"
	DownstreamSNR           Metric = "downstream_snr"
	DownstreamCorrected     Metric = "downstream_corrected"
	DownstreamUncorrectable Metric = "downstream_uncorrectable"
	UpstreamPower           Metric = "upstream_power"
	OFDMPower               Metric = "ofdm_power"
	OFDMSNR                 Metric = "ofdm_snr"
	OFDMCorrectable         Metric = "ofdm_correctable"
	OFDMUncorrectable       Metric = "ofdm_uncorrectable"
)

// Metrics lists every channel metric.
var Metrics = []Metric{
	DownstreamPower,
	DownstreamSNR,
	DownstreamCorrected,
	DownstreamUncorrectable,
	UpstreamPower,
	OFDMPower,
	OFDMSNR,
	OFDMCorrectable,
	OFDMUncorrectable,
}

// Field is a canonical column of a channel table.
type Field string

const (
	FieldChannel       Field = "channel id"
	FieldPower         Field = "power"
	FieldSNR           Field = "snr"
	FieldCorrected     Field = "corrected"
	FieldUncorrectable Field = "uncorrectable"
	FieldChannelType   Field = "channel type"
)

// Synonyms lists the header texts each field is recognised by, in priority
// order. Headers are compared exactly after normalization, a header that is
// merely similar is never bound.
var Synonyms = map[Field][]string{
	FieldChannel:       {"channel id", "channel", "id", "profile id"},
	FieldPower:         {"power", "power level", "plc power", "rx power"},
	FieldSNR:           {"snr", "snr/mer", "mer"},
	FieldCorrected:     {"corrected", "correctables", "correctable", "correctable codewords"},
	FieldUncorrectable: {"uncorrectables", "uncorrectable", "uncorrectable codewords"},
	FieldChannelType:   {"channel type"},
}

// Kind is the family of channels a section describes.
type Kind int

const (
	KindDownstream Kind = iota
	KindUpstream
	KindOFDM
)

func (k Kind) String() string {
	switch k {
	case KindDownstream:
		return "downstream"
	case KindUpstream:
		return "upstream"
	case KindOFDM:
		return "ofdm"
	}
	return "unknown"
}

type fieldMetric struct {
	field  Field
	metric Metric
}

// Projections lists, per kind, which fields become which metrics.
var projections = map[Kind][]fieldMetric{
	KindDownstream: {
		{FieldPower, DownstreamPower},
		{FieldSNR, DownstreamSNR},
		{FieldCorrected, DownstreamCorrected},
		{FieldUncorrectable, DownstreamUncorrectable},
	},
	KindUpstream: {
		{FieldPower, UpstreamPower},
	},
	KindOFDM: {
		{FieldPower, OFDMPower},
		{FieldSNR, OFDMSNR},
		{FieldCorrected, OFDMCorrectable},
		{FieldUncorrectable, OFDMUncorrectable},
	},
}

// KindOf classifies a section title. OFDM wins over the direction words
// since OFDM sections are titled "Downstream OFDM Channels" and the like.
func KindOf(sectionName string) (Kind, bool) {
	switch {
	case textutil.MatchName(sectionName, []string{"ofdm"}):
		return KindOFDM, true
	case textutil.MatchName(sectionName, []string{"upstream"}):
		return KindUpstream, true
	case textutil.MatchName(sectionName, []string{"downstream"}):
		return KindDownstream, true
	}
	return 0, false
}

// knownHeaders is every synonym of every field, used to tell apart columns
// that are simply not projected from columns that look misnamed.
var knownHeaders = func() map[string]bool {
	known := map[string]bool{}
	for _, synonyms := range Synonyms {
		for _, s := range synonyms {
			known[s] = true
		}
	}
	return known
}()

func isUpstreamChannelType(text string) bool {
	return strings.Contains(strings.ToLower(text), "upstream")
}
