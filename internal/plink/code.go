package plink

import "github.com/inodb/gt2plink/internal/genotype"

// GenotypeCode is the 2-bit per-sample call stored in a .bed file.
type GenotypeCode uint8

// .bed genotype codes, relative to the .bim allele columns (major, minor).
const (
	HomMajor GenotypeCode = 0b00
	Missing  GenotypeCode = 0b01
	Het      GenotypeCode = 0b10
	HomMinor GenotypeCode = 0b11
)

func (c GenotypeCode) String() string {
	switch c {
	case HomMajor:
		return "hom_major"
	case Missing:
		return "missing"
	case Het:
		return "het"
	case HomMinor:
		return "hom_minor"
	}
	return "invalid"
}

// Classify returns the genotype code of a call against its resolved allele pair.
func Classify(a1, a2 byte, pair AllelePair) GenotypeCode {
	if a1 == genotype.Missing || a2 == genotype.Missing {
		return Missing
	}
	switch {
	case a1 == pair.Major && a2 == pair.Major:
		return HomMajor
	case a1 == pair.Minor && a2 == pair.Minor:
		return HomMinor
	}
	return Het
}

// Encode resolves the allele pair of a SNP and classifies its call.
func Encode(snp *genotype.SNP) (AllelePair, GenotypeCode) {
	pair := ResolveAlleles(snp.Allele1, snp.Allele2)
	return pair, Classify(snp.Allele1, snp.Allele2, pair)
}

// BytesPerVariant is the number of .bed bytes holding one variant for n samples.
func BytesPerVariant(n int) int {
	return (n + 3) / 4
}

// PackCodes packs per-sample codes into .bed bytes, four samples per byte with
// the first sample in the low-order bits. Unused slots of the final byte are
// filled with the missing code.
func PackCodes(codes []GenotypeCode, dst []byte) []byte {
	n := BytesPerVariant(len(codes))
	for i := 0; i < n; i++ {
		var b byte
		for slot := 0; slot < 4; slot++ {
			code := Missing
			if idx := i*4 + slot; idx < len(codes) {
				code = codes[idx]
			}
			b |= byte(code&0b11) << (2 * slot)
		}
		dst = append(dst, b)
	}
	return dst
}

// UnpackCodes is the inverse of PackCodes for n samples.
func UnpackCodes(src []byte, n int) []GenotypeCode {
	codes := make([]GenotypeCode, n)
	for i := range codes {
		codes[i] = GenotypeCode(src[i/4]>>(2*(i%4))) & 0b11
	}
	return codes
}
