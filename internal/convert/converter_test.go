package convert

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/gt2plink/internal/genotype"
	"github.com/inodb/gt2plink/internal/plink"
)

const scenarioInput = "# comment\n" +
	"rs1\t1\t100\tAA\n" +
	"rs2\t2\t200\tAG\n" +
	"rs3\tMT\t300\tCC\n" +
	"rs4\tX\t400\t--\n"

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genome.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func convertString(t *testing.T, content string, opts Options) (*Result, plink.Fileset) {
	t.Helper()
	if opts.Sample.IndividualID == "" {
		opts.Sample = plink.DefaultSample("S1")
	}
	prefix := filepath.Join(t.TempDir(), "out")
	res, err := New(opts).ConvertFile(context.Background(), writeInput(t, content), prefix)
	require.NoError(t, err)
	return res, res.Fileset
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestConvert_EndToEndScenario(t *testing.T) {
	res, fs := convertString(t, scenarioInput, Options{})

	fam := readLines(t, fs.FAM())
	require.Len(t, fam, 1)
	assert.Equal(t, "S1 S1 0 0 2 -9", fam[0])

	assert.Equal(t, []string{
		"1 rs1 0 100 A T",
		"2 rs2 0 200 A G",
		"23 rs4 0 400 A T",
	}, readLines(t, fs.BIM()))

	bed, err := os.ReadFile(fs.BED())
	require.NoError(t, err)
	require.Len(t, bed, 6)
	assert.Equal(t, []byte{0x6c, 0x1b, 0x01}, bed[:3])
	// Codes 00, 10, 01 in the low bits, each padded with 01 01 01.
	assert.Equal(t, []byte{0b01010100, 0b01010110, 0b01010101}, bed[3:])

	assert.Equal(t, 3, res.Stats.Retained)
	assert.Equal(t, 5, res.Stats.LinesRead)
	assert.Equal(t, 1, res.Stats.Dropped[genotype.DropExcludedChrom])
	assert.Equal(t, map[int]int{1: 1, 2: 1, 23: 1}, res.Stats.Chromosomes)
	assert.Equal(t, [4]int{1, 1, 1, 0}, res.Stats.Codes)
}

func TestConvert_RowCountParity(t *testing.T) {
	inputs := map[string]string{
		"empty":     "",
		"comments":  "# a\n# b\n",
		"scenario":  scenarioInput,
		"malformed": "rs1\t1\t100\nrs2\tQ\t1\tAA\nrs3\t1\tx\tAA\nrs4\t1\t5\tAAA\nrs5\t5\t5\tCT\n",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, fs := convertString(t, input, Options{})

			bed, err := os.ReadFile(fs.BED())
			require.NoError(t, err)
			assert.Equal(t, len(readLines(t, fs.BIM())), len(bed)-3)
			assert.Equal(t, plink.BEDMagic[:], bed[:3])
		})
	}
}

func TestConvert_ChromosomeExclusion(t *testing.T) {
	var input strings.Builder
	for _, chrom := range []string{"MT", "Y", "0"} {
		for _, gt := range []string{"AA", "AG", "--", "TT"} {
			input.WriteString("rs" + chrom + gt + "\t" + chrom + "\t12345\t" + gt + "\n")
		}
	}

	res, fs := convertString(t, input.String(), Options{})
	assert.Empty(t, readLines(t, fs.BIM()))
	assert.Equal(t, 12, res.Stats.Dropped[genotype.DropExcludedChrom])
}

func TestConvert_GenotypeEncoding(t *testing.T) {
	tests := []struct {
		gt      string
		bimTail string
		code    plink.GenotypeCode
	}{
		{"--", "A T", plink.Missing},
		{"AA", "A T", plink.HomMajor},
		{"AG", "A G", plink.Het},
		{"GG", "G A", plink.HomMajor},
		{"TC", "T C", plink.Het},
		{"DD", "D A", plink.HomMajor},
		{"DI", "D I", plink.Het},
		{"ii", "I A", plink.HomMajor},
	}

	for _, tt := range tests {
		t.Run(tt.gt, func(t *testing.T) {
			_, fs := convertString(t, "rs9\t7\t900\t"+tt.gt+"\n", Options{})

			bim := readLines(t, fs.BIM())
			require.Len(t, bim, 1)
			assert.Equal(t, "7 rs9 0 900 "+tt.bimTail, bim[0])

			ds, err := plink.ReadFileset(fs)
			require.NoError(t, err)
			assert.Equal(t, tt.code, ds.Genotypes[0][0])
		})
	}
}

func TestConvert_Idempotent(t *testing.T) {
	input := writeInput(t, scenarioInput)
	prefix := filepath.Join(t.TempDir(), "same")
	opts := Options{Sample: plink.DefaultSample("S1")}

	_, err := New(opts).ConvertFile(context.Background(), input, prefix)
	require.NoError(t, err)
	fs := plink.Fileset{Prefix: prefix}
	first := make(map[string][]byte)
	for _, p := range fs.Files() {
		first[p], err = os.ReadFile(p)
		require.NoError(t, err)
	}

	_, err = New(opts).ConvertFile(context.Background(), input, prefix)
	require.NoError(t, err)
	for _, p := range fs.Files() {
		second, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first[p], second), "%s changed between runs", p)
	}
}

func TestConvert_PermissiveChromosomes(t *testing.T) {
	input := "rs1\t25\t100\tAA\nrs2\t3\t200\tCC\n"

	res, _ := convertString(t, input, Options{})
	assert.Equal(t, 1, res.Stats.Retained)
	assert.Equal(t, 1, res.Stats.Dropped[genotype.DropChrom])

	res, fs := convertString(t, input, Options{PermissiveChromosomes: true})
	assert.Equal(t, 2, res.Stats.Retained)
	assert.Equal(t, "25 rs1 0 100 A T", readLines(t, fs.BIM())[0])
}

func TestConvert_IndelCalls(t *testing.T) {
	input := "i1\t1\t100\tdd\ni2\t1\t101\tII\nrs3\t1\t102\tgt\ni4\t1\t103\tDI\n"

	res, fs := convertString(t, input, Options{})
	assert.Equal(t, []string{
		"1 i1 0 100 D A",
		"1 i2 0 101 I A",
		"1 rs3 0 102 G T",
		"1 i4 0 103 D I",
	}, readLines(t, fs.BIM()))
	assert.Zero(t, res.Stats.DroppedTotal())

	res, fs = convertString(t, input, Options{SNPsOnly: true})
	assert.Equal(t, []string{"1 rs3 0 102 G T"}, readLines(t, fs.BIM()))
	assert.Equal(t, 3, res.Stats.Dropped[genotype.DropAllele])
}

func TestConvert_SampleFile(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "sample")
	c := New(Options{Sample: plink.DefaultSample("S1")})

	res, err := c.ConvertFile(context.Background(), filepath.Join("..", "genotype", "testdata", "sample_23andme.txt"), prefix)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Stats.Retained)
	assert.Equal(t, 13, res.Stats.LinesRead)
	assert.Equal(t, 2, res.Stats.Dropped[genotype.DropExcludedChrom])
	assert.Equal(t, 1, res.Stats.Dropped[genotype.DropFields])
	assert.Equal(t, 3, res.Stats.DroppedTotal())

	m := c.Metrics()
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Retained))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.LinesRead))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dropped.WithLabelValues("excluded_chromosome")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Genotypes.WithLabelValues("missing")))
}

func TestConvert_ProgressLogging(t *testing.T) {
	var input strings.Builder
	for i := 0; i < 25; i++ {
		input.WriteString("rs\t1\t1\tAA\n")
	}

	core, logs := observer.New(zap.DebugLevel)
	c := New(Options{Sample: plink.DefaultSample("S1"), ProgressInterval: 10})
	c.SetLogger(zap.New(core))

	_, err := c.ConvertFile(context.Background(), writeInput(t, input.String()), filepath.Join(t.TempDir(), "p"))
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("progress").Len())
	assert.Equal(t, 1, logs.FilterMessage("conversion complete").Len())
}

func TestConvert_DropsLoggedAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := New(Options{Sample: plink.DefaultSample("S1")})
	c.SetLogger(zap.New(core))

	_, err := c.ConvertFile(context.Background(), writeInput(t, scenarioInput), filepath.Join(t.TempDir(), "d"))
	require.NoError(t, err)

	dropped := logs.FilterMessage("dropped line").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "rs3", dropped[0].ContextMap()["rsid"])
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Sample: plink.DefaultSample("S1")}).
		ConvertFile(ctx, writeInput(t, scenarioInput), filepath.Join(t.TempDir(), "c"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_MissingInput(t *testing.T) {
	_, err := New(Options{Sample: plink.DefaultSample("S1")}).
		ConvertFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConvert_InvalidSample(t *testing.T) {
	opts := Options{Sample: plink.DefaultSample("S1")}
	opts.Sample.Sex = 9

	_, err := New(opts).ConvertFile(context.Background(), writeInput(t, scenarioInput), filepath.Join(t.TempDir(), "x"))
	assert.ErrorContains(t, err, "invalid sex")
}

func TestSampleID(t *testing.T) {
	assert.Equal(t, "genome_Jane_Doe_v5_Full_20240101", SampleID("/data/genome_Jane_Doe_v5_Full_20240101.txt"))
	assert.Equal(t, "genome", SampleID("genome.txt.gz"))
	assert.Equal(t, "my_genome", SampleID("dl/my genome.zip"))
	assert.Equal(t, "SAMPLE", SampleID("-"))
}
