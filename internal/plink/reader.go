package plink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/genomisc"
)

// Variant is a parsed .bim row.
type Variant struct {
	Chrom   string
	ID      string
	Pos     int64
	Allele1 string
	Allele2 string
}

// Dataset is a fileset read back into memory.
type Dataset struct {
	Samples   []Sample
	Variants  []Variant
	Genotypes [][]GenotypeCode // [variant][sample]
}

// ReadFileset reads and cross-checks all three files of a fileset.
func ReadFileset(fs Fileset) (*Dataset, error) {
	samples, err := readPath(fs.FAM(), ReadFAM)
	if err != nil {
		return nil, err
	}
	variants, err := ReadBIM(fs.BIM())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fs.BED())
	if err != nil {
		return nil, fmt.Errorf("open bed: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat bed: %w", err)
	}
	expected := int64(len(BEDMagic)) + int64(BytesPerVariant(len(samples)))*int64(len(variants))
	if stat.Size() != expected {
		return nil, fmt.Errorf("bed size %d does not match %d samples x %d variants (expected %d)",
			stat.Size(), len(samples), len(variants), expected)
	}

	genotypes, err := ReadBED(f, len(samples), len(variants))
	if err != nil {
		return nil, err
	}

	return &Dataset{Samples: samples, Variants: variants, Genotypes: genotypes}, nil
}

func readPath[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}

// ReadFAM parses .fam rows.
func ReadFAM(r io.Reader) ([]Sample, error) {
	var samples []Sample
	err := scanFields(r, 6, "fam", func(fields []string) error {
		sex, err := strconv.Atoi(fields[4])
		if err != nil {
			return fmt.Errorf("invalid sex %q", fields[4])
		}
		samples = append(samples, Sample{
			FamilyID:     fields[0],
			IndividualID: fields[1],
			PaternalID:   fields[2],
			MaternalID:   fields[3],
			Sex:          sex,
			Phenotype:    fields[5],
		})
		return nil
	})
	return samples, err
}

// ReadBIM reads a .bim file. Reading stops at the first row with fewer than
// six columns; ReadFileset catches the resulting count mismatch against the
// .bed size. Positions above 2^32-1 are rejected.
func ReadBIM(path string) ([]Variant, error) {
	bim, err := genomisc.OpenBIM(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer bim.Close()

	var variants []Variant
	for row := bim.Read(); row != nil; row = bim.Read() {
		variants = append(variants, Variant{
			Chrom:   row.Chromosome,
			ID:      row.VariantID,
			Pos:     int64(row.Coordinate),
			Allele1: row.Allele1,
			Allele2: row.Allele2,
		})
	}
	if err := bim.Err(); err != nil {
		return nil, fmt.Errorf("bim row %d: %w", len(variants)+1, err)
	}
	return variants, nil
}

func scanFields(r io.Reader, want int, kind string, fn func([]string) error) error {
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != want {
			return fmt.Errorf("%s line %d: expected %d fields, found %d", kind, lineno, want, len(fields))
		}
		if err := fn(fields); err != nil {
			return fmt.Errorf("%s line %d: %w", kind, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	return nil
}

// ReadBED reads a SNP-major .bed stream for the given dimensions.
func ReadBED(r io.Reader, samples, variants int) ([][]GenotypeCode, error) {
	br := bufio.NewReader(r)

	var header [3]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("read bed header: %w", err)
	}
	if header[0] != BEDMagic[0] || header[1] != BEDMagic[1] {
		return nil, fmt.Errorf("not a bed file: magic %#x %#x", header[0], header[1])
	}
	if header[2] != BEDMagic[2] {
		return nil, fmt.Errorf("bed file is individual-major, only SNP-major is supported")
	}

	block := make([]byte, BytesPerVariant(samples))
	genotypes := make([][]GenotypeCode, 0, variants)
	for v := 0; v < variants; v++ {
		if _, err := io.ReadFull(br, block); err != nil {
			return nil, fmt.Errorf("read bed variant %d: %w", v, err)
		}
		genotypes = append(genotypes, UnpackCodes(block, samples))
	}

	if extra, _ := br.Peek(1); len(extra) > 0 {
		return nil, fmt.Errorf("bed has trailing data after %d variants", variants)
	}
	return genotypes, nil
}
