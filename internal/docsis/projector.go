package docsis

import (
	"fmt"
	"strings"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/sections"
	"docsis-exporter/internal/values"

	"github.com/antzucaro/matchr"
)

const (
	report_projector_project        = "projector.project"
	report_projector_channel        = "projector.channel"
	report_projector_value          = "projector.value"
	report_projector_unknown_header = "projector.unknown-header"
)

// closest synonym must be at least this similar before an unknown header is
// reported as a probable rename
const similarHeaderThreshold = 0.85

// Sample is one channel measurement of one scrape.
type Sample struct {
	Metric  Metric
	Channel string
	Value   float64
}

// Projector maps classified sections onto channel samples.
type Projector struct {
	tel telemetry.API
}

func NewProjector(tel telemetry.API) Projector {
	assert.NotNil(tel)
	return Projector{tel: telemetry.NewScopedAPI("docsis", tel)}
}

// Project returns the samples of every section whose title names a channel
// kind. Sections of other kinds contribute only upstream power of rows whose
// channel type says upstream.
func (p Projector) Project(secs sections.Sections) []Sample {
	for _, name := range secs.Replaced {
		p.tel.ReportWarning(report_projector_project, fmt.Errorf("section %q occurs more than once, using the last one", name))
	}

	var samples []Sample
	secs.Each(func(section *sections.Section) {
		kind, ok := KindOf(section.Name)
		if ok {
			samples = append(samples, p.ProjectSection(kind, section)...)
		}
		if !ok || kind != KindUpstream {
			samples = append(samples, p.projectUpstreamByType(section)...)
		}
	})

	p.tel.ReportCount(report_projector_project, int64(len(samples)))
	return samples
}

// ProjectSection projects the rows of one section as the given kind.
func (p Projector) ProjectSection(kind Kind, section *sections.Section) []Sample {
	if len(section.Header) == 0 {
		return nil
	}
	index := section.Index()
	p.reportUnknownHeaders(section)

	var samples []Sample
	for _, row := range section.Rows {
		channel, ok := resolveChannel(index, row)
		if !ok {
			p.tel.ReportWarning(report_projector_channel, "row has no channel identifier", section.Name, []string(row))
			continue
		}
		samples = append(samples, p.projectRow(kind, section.Name, index, channel, row)...)
	}
	return samples
}

func (p Projector) projectRow(kind Kind, sectionName string, index map[string]int, channel string, row []string) []Sample {
	var samples []Sample
	for _, fm := range projections[kind] {
		col, ok := resolve(index, fm.field)
		if !ok {
			continue
		}
		value, err := values.ParseNumber(row[col])
		if err != nil {
			p.tel.ReportDebug(report_projector_value, sectionName, channel, string(fm.metric), err)
			continue
		}
		samples = append(samples, Sample{Metric: fm.metric, Channel: channel, Value: value})
	}
	return samples
}

// projectUpstreamByType handles tables that mix directions and label each
// row with a channel type instead of being titled by direction.
func (p Projector) projectUpstreamByType(section *sections.Section) []Sample {
	index := section.Index()
	typeCol, ok := resolve(index, FieldChannelType)
	if !ok {
		return nil
	}

	var samples []Sample
	for _, row := range section.Rows {
		if !isUpstreamChannelType(row[typeCol]) {
			continue
		}
		channel, ok := resolveChannel(index, row)
		if !ok {
			p.tel.ReportWarning(report_projector_channel, "row has no channel identifier", section.Name, []string(row))
			continue
		}
		samples = append(samples, p.projectRow(KindUpstream, section.Name, index, channel, row)...)
	}
	return samples
}

// reportUnknownHeaders warns about columns that match no synonym but are
// close to one, the usual sign of a firmware renaming a column. The column
// is still not bound.
func (p Projector) reportUnknownHeaders(section *sections.Section) {
	for _, header := range section.Header {
		if header == "" || knownHeaders[header] {
			continue
		}
		best, similarity := closestSynonym(header)
		if similarity < similarHeaderThreshold {
			continue
		}
		p.tel.ReportWarning(
			report_projector_unknown_header,
			fmt.Errorf("column %q is not recognised, closest known column is %q", header, best),
			section.Name,
		)
	}
}

func closestSynonym(header string) (string, float64) {
	best := ""
	bestSimilarity := 0.0
	for known := range knownHeaders {
		similarity := matchr.JaroWinkler(header, known, false)
		if similarity > bestSimilarity || (similarity == bestSimilarity && known < best) {
			best = known
			bestSimilarity = similarity
		}
	}
	return best, bestSimilarity
}

// resolve returns the column of the first synonym of field present in index.
func resolve(index map[string]int, field Field) (int, bool) {
	for _, synonym := range Synonyms[field] {
		col, ok := index[synonym]
		if ok {
			return col, true
		}
	}
	return 0, false
}

// resolveChannel returns the first non-blank channel identifier cell.
func resolveChannel(index map[string]int, row []string) (string, bool) {
	for _, synonym := range Synonyms[FieldChannel] {
		col, ok := index[synonym]
		if !ok || col >= len(row) {
			continue
		}
		channel := strings.TrimSpace(row[col])
		if channel != "" {
			return channel, true
		}
	}
	return "", false
}
