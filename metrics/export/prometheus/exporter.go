package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is satisfied by *fastauth.Engine.
type Source interface {
	MetricsSnapshot() fastauth.MetricsSnapshot
	AuditDropped() uint64
}

type Exporter struct {
	source Source
}

// New returns an exporter reading from source on every scrape.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(p.render())
	})
}

// Render returns the current metrics, or "" when metrics are disabled and
// nothing was dropped.
func (p *Exporter) Render() string {
	return string(p.render())
}

func (p *Exporter) render() []byte {
	if p == nil || p.source == nil {
		return nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(8192)
	for _, def := range internaldefs.CounterDefs {
		counter(&buf, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		histogram(&buf, def, cumulative, snap.ValidateLatencySum.Seconds())
	}
	counter(&buf, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)
	return buf.Bytes()
}

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func counter(buf *bytes.Buffer, name, help string, value uint64) {
	header(buf, name, help, "counter")
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func histogram(buf *bytes.Buffer, def internaldefs.HistogramDef, cumulative [internaldefs.BucketCount]uint64, sumSeconds float64) {
	header(buf, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
	}
	fmt.Fprintf(buf, "%s_sum %s\n", def.Name, strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	fmt.Fprintf(buf, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
