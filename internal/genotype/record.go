// Package genotype reads consumer genotyping exports (23andMe raw data files)
// and normalizes them into typed SNP records.
package genotype

// Missing is the allele code used for an uncalled allele.
const Missing byte = '0'

// ChromX is the numeric code the X chromosome is mapped to.
const ChromX = 23

// RawLine is a single data line split into its four leading fields.
type RawLine struct {
	RSID     string
	Chrom    string
	Pos      string
	Genotype string
	Line     int // 1-based line number in the input
}

// SNP is a normalized genotype call for one variant.
type SNP struct {
	RSID    string
	Chrom   int   // 1-22 autosomes, 23 = X
	Pos     int64 // physical base-pair coordinate
	Allele1 byte  // A, C, G, T or Missing
	Allele2 byte  // A, C, G, T or Missing
}

// IsMissing returns true if either allele is uncalled.
func (s *SNP) IsMissing() bool {
	return s.Allele1 == Missing || s.Allele2 == Missing
}

// IsHomozygous returns true if both alleles are called and identical.
func (s *SNP) IsHomozygous() bool {
	return !s.IsMissing() && s.Allele1 == s.Allele2
}

// Genotype returns the two-character genotype string, "--" when missing.
func (s *SNP) Genotype() string {
	if s.IsMissing() {
		return "--"
	}
	return string([]byte{s.Allele1, s.Allele2})
}
