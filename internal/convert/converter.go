// Package convert turns a 23andMe raw data file into a binary PLINK fileset.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/gt2plink/internal/genotype"
	"github.com/inodb/gt2plink/internal/metrics"
	"github.com/inodb/gt2plink/internal/plink"
)

// DefaultProgressInterval is how many input lines pass between progress logs.
const DefaultProgressInterval = 100000

// cancelCheckInterval is how many records pass between context checks.
const cancelCheckInterval = 4096

// Options configures a conversion.
type Options struct {
	Sample                plink.Sample
	PermissiveChromosomes bool
	SNPsOnly              bool // drop I/D and other non-ACGT calls
	ProgressInterval      int // 0 means DefaultProgressInterval
}

// Stats summarizes a conversion.
type Stats struct {
	LinesRead   int
	Retained    int
	Dropped     map[genotype.DropReason]int
	Chromosomes map[int]int // retained variants per chromosome code
	Codes       [4]int      // .bed codes written, indexed by plink.GenotypeCode
	Duration    time.Duration
}

// DroppedTotal returns the number of data lines dropped for any reason.
func (s *Stats) DroppedTotal() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// Result is the outcome of a successful conversion.
type Result struct {
	Fileset plink.Fileset
	Stats   Stats
}

// Converter reads genotype records and writes them as a PLINK fileset.
type Converter struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a converter with the given options.
func New(opts Options) *Converter {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &Converter{
		opts:    opts,
		logger:  zap.NewNop(),
		metrics: metrics.New(),
	}
}

// SetLogger sets the logger for progress and diagnostic messages.
func (c *Converter) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetMetrics replaces the metrics updated by conversions.
func (c *Converter) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Metrics returns the metrics updated by conversions.
func (c *Converter) Metrics() *metrics.Metrics {
	return c.metrics
}

// ConvertFile converts the genotype file at inputPath into <prefix>.fam/.bim/.bed.
func (c *Converter) ConvertFile(ctx context.Context, inputPath, prefix string) (*Result, error) {
	c.logger.Info("reading genotype file", zap.String("input", inputPath))

	r, err := genotype.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return c.Convert(ctx, r, prefix)
}

// Convert reads every record from r and writes the fileset.
func (c *Converter) Convert(ctx context.Context, r *genotype.Reader, prefix string) (*Result, error) {
	start := time.Now()

	stats := Stats{
		Dropped:     make(map[genotype.DropReason]int),
		Chromosomes: make(map[int]int),
	}

	snps, err := c.ReadSNPs(ctx, r, &stats)
	if err != nil {
		return nil, err
	}

	c.logger.Info("writing fileset",
		zap.Int("snps", len(snps)),
		zap.String("prefix", prefix))

	fs := plink.Fileset{Prefix: prefix}
	ws, err := plink.WriteFileset(fs, c.opts.Sample, snps)
	if err != nil {
		return nil, fmt.Errorf("write fileset: %w", err)
	}
	stats.Codes = ws.Codes
	stats.Duration = time.Since(start)

	c.record(&stats)

	c.logger.Info("conversion complete",
		zap.Int("lines", stats.LinesRead),
		zap.Int("snps", stats.Retained),
		zap.Int("dropped", stats.DroppedTotal()),
		zap.Duration("elapsed", stats.Duration))
	for _, reason := range genotype.DropReasons() {
		if n := stats.Dropped[reason]; n > 0 {
			c.logger.Info("dropped lines", zap.Stringer("reason", reason), zap.Int("count", n))
		}
	}

	return &Result{Fileset: fs, Stats: stats}, nil
}

// ReadSNPs reads and normalizes all records in input order. Malformed lines
// are dropped and counted in stats.
func (c *Converter) ReadSNPs(ctx context.Context, r *genotype.Reader, stats *Stats) ([]*genotype.SNP, error) {
	norm := genotype.Normalizer{
		Permissive: c.opts.PermissiveChromosomes,
		SNPsOnly:   c.opts.SNPsOnly,
	}

	var snps []*genotype.SNP
	progressed := 0
	records := 0

	for {
		raw, err := r.Next()
		if err != nil {
			return nil, err
		}
		if raw == nil {
			break
		}

		records++
		if records%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("conversion interrupted at line %d: %w", raw.Line, err)
			}
		}

		if n := r.LineNumber() / c.opts.ProgressInterval; n > progressed {
			progressed = n
			c.logger.Info("progress", zap.Int("lines", n*c.opts.ProgressInterval))
		}

		snp, reason := norm.Normalize(raw)
		if reason != genotype.DropNone {
			stats.Dropped[reason]++
			c.logger.Debug("dropped line",
				zap.Int("line", raw.Line),
				zap.String("rsid", raw.RSID),
				zap.Stringer("reason", reason))
			continue
		}

		stats.Chromosomes[snp.Chrom]++
		snps = append(snps, snp)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}

	stats.LinesRead = r.LineNumber()
	stats.Retained = len(snps)
	if n := r.ShortLines(); n > 0 {
		stats.Dropped[genotype.DropFields] += n
	}

	return snps, nil
}

func (c *Converter) record(stats *Stats) {
	m := c.metrics
	m.LinesRead.Add(float64(stats.LinesRead))
	m.Retained.Add(float64(stats.Retained))
	for reason, n := range stats.Dropped {
		m.Dropped.WithLabelValues(reason.String()).Add(float64(n))
	}
	for code, n := range stats.Codes {
		if n > 0 {
			m.Genotypes.WithLabelValues(plink.GenotypeCode(code).String()).Add(float64(n))
		}
	}
	m.Duration.Set(stats.Duration.Seconds())
}

// SampleID derives a sample identifier from an input path: the base name
// without extensions, with whitespace replaced by underscores.
func SampleID(inputPath string) string {
	if inputPath == "-" || inputPath == "" {
		return "SAMPLE"
	}
	base := filepath.Base(inputPath)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.Join(strings.Fields(base), "_")
}
