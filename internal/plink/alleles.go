// Package plink writes and reads binary PLINK filesets (.bed/.bim/.fam).
//
// Only SNP-major .bed files are produced. The allele pair written to the .bim
// file is derived from a single sample's call, so "major" and "minor" carry no
// population frequency meaning: they are a deterministic stand-in that keeps
// both allele columns populated.
package plink

import "github.com/inodb/gt2plink/internal/genotype"

// Placeholder alleles written for variants whose call is missing.
const (
	PlaceholderMajor byte = 'A'
	PlaceholderMinor byte = 'T'
)

// AllelePair is the (major, minor) allele assignment of a .bim row.
type AllelePair struct {
	Major byte
	Minor byte
}

// ResolveAlleles picks the .bim allele pair for one call.
//
// A missing call gets the fixed placeholder (A, T). A homozygous call uses the
// observed allele as major and A as minor, or T when the observed allele is A.
// A heterozygous call keeps the observed order.
func ResolveAlleles(a1, a2 byte) AllelePair {
	if a1 == genotype.Missing || a2 == genotype.Missing {
		return AllelePair{Major: PlaceholderMajor, Minor: PlaceholderMinor}
	}
	if a1 == a2 {
		minor := byte('A')
		if a1 == 'A' {
			minor = 'T'
		}
		return AllelePair{Major: a1, Minor: minor}
	}
	return AllelePair{Major: a1, Minor: a2}
}
