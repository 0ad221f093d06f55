package genotype

import (
	"strconv"
	"strings"
)

// DropReason explains why a line did not produce a SNP.
type DropReason int

// Drop reasons
const (
	DropNone          DropReason = iota
	DropFields                   // fewer than four tab-separated fields
	DropExcludedChrom            // MT, Y, XY or unplaced (0)
	DropChrom                    // unparseable or out-of-range chromosome
	DropPosition                 // position is not a non-negative integer
	DropGenotype                 // genotype is not exactly two characters
	DropAllele                   // half call, or non-ACGT allele with SNPsOnly
)

var dropReasonNames = [...]string{
	DropNone:          "none",
	DropFields:        "fields",
	DropExcludedChrom: "excluded_chromosome",
	DropChrom:         "chromosome",
	DropPosition:      "position",
	DropGenotype:      "genotype",
	DropAllele:        "allele",
}

func (d DropReason) String() string {
	if d < 0 || int(d) >= len(dropReasonNames) {
		return "unknown"
	}
	return dropReasonNames[d]
}

// DropReasons lists every reason a line can be dropped, in declaration order.
func DropReasons() []DropReason {
	return []DropReason{DropFields, DropExcludedChrom, DropChrom, DropPosition, DropGenotype, DropAllele}
}

// MaxAutosome is the highest numeric chromosome accepted in strict mode.
const MaxAutosome = 22

// Normalizer converts raw lines into SNP records.
type Normalizer struct {
	// Permissive accepts any positive numeric chromosome label instead of
	// only 1-22, for non-human arrays.
	Permissive bool
	// SNPsOnly drops calls with alleles outside A/C/G/T, such as the I/D
	// calls 23andMe reports for indels.
	SNPsOnly bool
}

// Normalize converts a raw line to a SNP. If the line must be dropped the
// returned SNP is nil and the reason is set.
func (n Normalizer) Normalize(raw *RawLine) (*SNP, DropReason) {
	chrom, reason := n.ParseChrom(raw.Chrom)
	if reason != DropNone {
		return nil, reason
	}

	pos, err := strconv.ParseInt(strings.TrimSpace(raw.Pos), 10, 64)
	if err != nil || pos < 0 {
		return nil, DropPosition
	}

	a1, a2, reason := ParseGenotype(raw.Genotype)
	if reason != DropNone {
		return nil, reason
	}
	if n.SNPsOnly && a1 != Missing && (!IsNucleotide(a1) || !IsNucleotide(a2)) {
		return nil, DropAllele
	}

	return &SNP{
		RSID:    raw.RSID,
		Chrom:   chrom,
		Pos:     pos,
		Allele1: a1,
		Allele2: a2,
	}, DropNone
}

// ParseChrom maps a chromosome label to its numeric code.
// X maps to 23; MT, Y, XY and 0 are excluded.
func (n Normalizer) ParseChrom(label string) (int, DropReason) {
	label = strings.ToUpper(strings.TrimSpace(label))
	label = strings.TrimPrefix(label, "CHR")

	switch label {
	case "X":
		return ChromX, DropNone
	case "0", "MT", "M", "Y", "XY":
		return 0, DropExcludedChrom
	}

	code, err := strconv.Atoi(label)
	if err != nil || code < 1 {
		return 0, DropChrom
	}
	if !n.Permissive && code > MaxAutosome {
		return 0, DropChrom
	}
	return code, DropNone
}

// ParseGenotype splits a two-character genotype into alleles, taken
// positionally and uppercased. "--" is a no-call and yields two Missing
// alleles; a call with only one '-' is dropped.
func ParseGenotype(gt string) (byte, byte, DropReason) {
	if gt == "--" {
		return Missing, Missing, DropNone
	}
	if len(gt) != 2 {
		return 0, 0, DropGenotype
	}

	gt = strings.ToUpper(gt)
	a1, a2 := gt[0], gt[1]
	if a1 == '-' || a2 == '-' {
		return 0, 0, DropAllele
	}
	return a1, a2, DropNone
}

// IsNucleotide reports whether b is one of A, C, G or T.
func IsNucleotide(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T':
		return true
	}
	return false
}
