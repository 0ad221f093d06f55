package plink

import (
	"fmt"
	"strconv"
	"strings"
)

// Sex codes used in the .fam file.
const (
	SexUnknown = 0
	SexMale    = 1
	SexFemale  = 2
)

// MissingPhenotype is the conventional missing phenotype value.
const MissingPhenotype = "-9"

// Sample describes the single individual written to the .fam file.
type Sample struct {
	FamilyID     string
	IndividualID string
	PaternalID   string // "0" when unknown
	MaternalID   string // "0" when unknown
	Sex          int
	Phenotype    string
}

// DefaultSample returns a sample with unknown parents, female sex and a
// missing phenotype.
func DefaultSample(id string) Sample {
	return Sample{
		FamilyID:     id,
		IndividualID: id,
		PaternalID:   "0",
		MaternalID:   "0",
		Sex:          SexFemale,
		Phenotype:    MissingPhenotype,
	}
}

// Validate checks that every field can be written as one whitespace-free token.
func (s Sample) Validate() error {
	ids := []struct{ name, value string }{
		{"family ID", s.FamilyID},
		{"individual ID", s.IndividualID},
		{"paternal ID", s.PaternalID},
		{"maternal ID", s.MaternalID},
		{"phenotype", s.Phenotype},
	}
	for _, id := range ids {
		if id.value == "" {
			return fmt.Errorf("%s is empty", id.name)
		}
		if strings.ContainsAny(id.value, " \t\r\n") {
			return fmt.Errorf("%s %q contains whitespace", id.name, id.value)
		}
	}
	switch s.Sex {
	case SexUnknown, SexMale, SexFemale:
	default:
		return fmt.Errorf("invalid sex code %d (want 0, 1 or 2)", s.Sex)
	}
	if _, err := strconv.ParseFloat(s.Phenotype, 64); err != nil {
		return fmt.Errorf("phenotype %q is not numeric", s.Phenotype)
	}
	return nil
}

// famLine formats the sample as a .fam row without the trailing newline.
func (s Sample) famLine() string {
	return strings.Join([]string{
		s.FamilyID,
		s.IndividualID,
		s.PaternalID,
		s.MaternalID,
		strconv.Itoa(s.Sex),
		s.Phenotype,
	}, " ")
}
