package plink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/inodb/gt2plink/internal/genotype"
)

// SampleCount is the number of individuals in a converted fileset. A consumer
// export holds exactly one person.
const SampleCount = 1

// BEDMagic is the .bed header: two magic bytes and the SNP-major mode flag.
var BEDMagic = [3]byte{0x6c, 0x1b, 0x01}

// Fileset names the three files sharing an output prefix.
type Fileset struct {
	Prefix string
}

// FAM returns the path of the sample file.
func (f Fileset) FAM() string { return f.Prefix + ".fam" }

// BIM returns the path of the variant file.
func (f Fileset) BIM() string { return f.Prefix + ".bim" }

// BED returns the path of the genotype file.
func (f Fileset) BED() string { return f.Prefix + ".bed" }

// Files returns the three paths in write order.
func (f Fileset) Files() []string {
	return []string{f.FAM(), f.BIM(), f.BED()}
}

// WriteStats summarizes what WriteFileset emitted.
type WriteStats struct {
	Variants int
	Codes    [4]int // indexed by GenotypeCode
}

// WriteFileset writes the .fam, .bim and .bed files in that order.
// Files written before a failure are left in place.
func WriteFileset(fs Fileset, sample Sample, snps []*genotype.SNP) (WriteStats, error) {
	var stats WriteStats

	if err := sample.Validate(); err != nil {
		return stats, fmt.Errorf("invalid sample: %w", err)
	}
	if dir := filepath.Dir(fs.Prefix); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := writeFile(fs.FAM(), func(w io.Writer) error {
		return WriteFAM(w, sample)
	}); err != nil {
		return stats, err
	}

	pairs := make([]AllelePair, len(snps))
	codes := make([]GenotypeCode, len(snps))
	for i, snp := range snps {
		pairs[i], codes[i] = Encode(snp)
	}

	if err := writeFile(fs.BIM(), func(w io.Writer) error {
		bw := NewBIMWriter(w)
		for i, snp := range snps {
			if err := bw.Write(snp, pairs[i]); err != nil {
				return err
			}
		}
		return bw.Flush()
	}); err != nil {
		return stats, err
	}

	if err := writeFile(fs.BED(), func(w io.Writer) error {
		bw := NewBEDWriter(w)
		if err := bw.WriteHeader(); err != nil {
			return err
		}
		for _, code := range codes {
			if err := bw.WriteVariant(code); err != nil {
				return err
			}
			stats.Codes[code]++
		}
		return bw.Flush()
	}); err != nil {
		return stats, err
	}

	stats.Variants = len(snps)
	return stats, nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteFAM writes one .fam row per sample.
func WriteFAM(w io.Writer, samples ...Sample) error {
	for _, s := range samples {
		if _, err := io.WriteString(w, s.famLine()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// BIMWriter writes .bim rows.
type BIMWriter struct {
	w   *bufio.Writer
	buf []byte
}

// NewBIMWriter creates a new .bim writer.
func NewBIMWriter(w io.Writer) *BIMWriter {
	return &BIMWriter{w: bufio.NewWriter(w)}
}

// Write writes the row for one SNP: chrom, rsid, genetic distance (always 0),
// position, major and minor allele.
func (bw *BIMWriter) Write(snp *genotype.SNP, pair AllelePair) error {
	b := bw.buf[:0]
	b = strconv.AppendInt(b, int64(snp.Chrom), 10)
	b = append(b, ' ')
	b = append(b, snp.RSID...)
	b = append(b, " 0 "...)
	b = strconv.AppendInt(b, snp.Pos, 10)
	b = append(b, ' ', pair.Major, ' ', pair.Minor, '\n')
	bw.buf = b
	_, err := bw.w.Write(b)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (bw *BIMWriter) Flush() error {
	return bw.w.Flush()
}

// BEDWriter writes a SNP-major .bed stream.
type BEDWriter struct {
	w   *bufio.Writer
	buf []byte
}

// NewBEDWriter creates a new .bed writer.
func NewBEDWriter(w io.Writer) *BEDWriter {
	return &BEDWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the magic bytes. It must be called once before any variant.
func (bw *BEDWriter) WriteHeader() error {
	_, err := bw.w.Write(BEDMagic[:])
	return err
}

// WriteVariant writes one variant block. len(codes) must equal SampleCount.
func (bw *BEDWriter) WriteVariant(codes ...GenotypeCode) error {
	if len(codes) != SampleCount {
		return fmt.Errorf("got %d genotype codes, want %d", len(codes), SampleCount)
	}
	bw.buf = PackCodes(codes, bw.buf[:0])
	_, err := bw.w.Write(bw.buf)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (bw *BEDWriter) Flush() error {
	return bw.w.Flush()
}
