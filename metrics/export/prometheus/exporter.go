package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() estateAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter reads from engine.
func NewExporter(engine *estateAuth.Engine) *Exporter {
	if engine == nil {
		return &Exporter{}
	}
	return &Exporter{source: engine}
}

// NewExporterFromSource reads from any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		p.writeTo(w)
	})
}

// Render returns the exposition text. A disabled metrics table renders as the empty string.
func (p *Exporter) Render() string {
	var b strings.Builder
	p.writeTo(&b)
	return b.String()
}

func (p *Exporter) writeTo(w io.Writer) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for _, def := range internaldefs.CounterDefs {
		counter(bw, def.Name, def.Help, snapshot.Counters[def.ID])
	}
	counter(bw, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)

	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		header(bw, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(bw, "%s_bucket{le=%q} %d\n", def.Name, le, buckets[i])
		}
		// Only bucket counts are recorded, so the sum is not known.
		fmt.Fprintf(bw, "%s_count %d\n%s_sum 0\n", def.Name, buckets[len(buckets)-1], def.Name)
	}
}

func counter(w io.Writer, name, help string, value uint64) {
	header(w, name, help, "counter")
	fmt.Fprintf(w, "%s %d\n", name, value)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}
