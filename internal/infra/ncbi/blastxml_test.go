package ncbi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestBlastXMLParser_Parse(t *testing.T) {
	hits, err := NewBlastXMLParser().Parse(loadFixture(t, "blast_result.xml"))
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, search.HitRecord{
		Accession:   "KF000001",
		HitID:       "gi|1234567|gb|KF000001.1|",
		Description: "Uncultured bacterium clone A12 16S ribosomal RNA gene, partial sequence",
		BitScore:    880.224,
		RawScore:    476,
		Identity:    478,
		HitFrom:     21,
		HitTo:       500,
		EValue:      0,
		AlignLen:    480,
	}, hits[0])

	// 値は先頭の HSP から取る
	assert.Equal(t, "JQ745646", hits[1].Accession)
	assert.Equal(t, 869.13, hits[1].BitScore)
	assert.Equal(t, 2.5e-249, hits[1].EValue)
	assert.Equal(t, 640, hits[1].HitFrom)
	assert.Equal(t, 161, hits[1].HitTo)
	assert.False(t, hits[1].Scored)
}

func TestBlastXMLParser_Parse_FeedsRanker(t *testing.T) {
	hits, err := NewBlastXMLParser().Parse(loadFixture(t, "blast_result.xml"))
	require.NoError(t, err)

	cfg, err := search.NewRankingConfig(search.RankingSpec{Database: "nt", AvoidPatterns: []string{"uncultured"}})
	require.NoError(t, err)

	best, err := search.Rank(hits, cfg)
	require.NoError(t, err)
	assert.Equal(t, "JQ745646", best.Accession)
}

func TestBlastXMLParser_Parse_NoHits(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "Iteration_hits が空",
			doc: `<BlastOutput><BlastOutput_iterations><Iteration>
<Iteration_iter-num>1</Iteration_iter-num><Iteration_hits></Iteration_hits>
<Iteration_message>No hits found</Iteration_message>
</Iteration></BlastOutput_iterations></BlastOutput>`,
		},
		{
			name: "Iteration_hits がない",
			doc:  `<BlastOutput><BlastOutput_iterations><Iteration><Iteration_iter-num>1</Iteration_iter-num></Iteration></BlastOutput_iterations></BlastOutput>`,
		},
		{
			name: "Iteration がない",
			doc:  `<BlastOutput><BlastOutput_iterations></BlastOutput_iterations></BlastOutput>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := NewBlastXMLParser().Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestBlastXMLParser_Parse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "空", doc: ""},
		{name: "XMLではない", doc: "Error: CPU usage limit was exceeded"},
		{name: "途中で切れている", doc: `<BlastOutput><BlastOutput_iterations><Iteration><Iteration_hits><Hit>`},
		{name: "ルート要素が違う", doc: `<html><body>busy</body></html>`},
		{name: "BlastOutput_iterations がない", doc: `<BlastOutput><BlastOutput_program>blastn</BlastOutput_program></BlastOutput>`},
		{
			name: "HSP がない",
			doc: `<BlastOutput><BlastOutput_iterations><Iteration><Iteration_hits>
<Hit><Hit_def>x</Hit_def><Hit_accession>A1</Hit_accession><Hit_hsps></Hit_hsps></Hit>
</Iteration_hits></Iteration></BlastOutput_iterations></BlastOutput>`,
		},
		{
			name: "数値でないスコア",
			doc: `<BlastOutput><BlastOutput_iterations><Iteration><Iteration_hits>
<Hit><Hit_def>x</Hit_def><Hit_accession>A1</Hit_accession><Hit_hsps><Hsp>
<Hsp_bit-score>n/a</Hsp_bit-score><Hsp_score>10</Hsp_score><Hsp_evalue>1e-5</Hsp_evalue>
<Hsp_hit-from>1</Hsp_hit-from><Hsp_hit-to>10</Hsp_hit-to><Hsp_identity>10</Hsp_identity><Hsp_align-len>10</Hsp_align-len>
</Hsp></Hit_hsps></Hit>
</Iteration_hits></Iteration></BlastOutput_iterations></BlastOutput>`,
		},
		{
			name: "アクセッションが空",
			doc: `<BlastOutput><BlastOutput_iterations><Iteration><Iteration_hits>
<Hit><Hit_def>x</Hit_def><Hit_accession></Hit_accession><Hit_hsps><Hsp>
<Hsp_bit-score>1</Hsp_bit-score><Hsp_score>10</Hsp_score><Hsp_evalue>1e-5</Hsp_evalue>
<Hsp_hit-from>1</Hsp_hit-from><Hsp_hit-to>10</Hsp_hit-to><Hsp_identity>10</Hsp_identity><Hsp_align-len>10</Hsp_align-len>
</Hsp></Hit_hsps></Hit>
</Iteration_hits></Iteration></BlastOutput_iterations></BlastOutput>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := NewBlastXMLParser().Parse([]byte(tt.doc))
			require.ErrorIs(t, err, search.ErrParse)
			assert.Nil(t, hits)
		})
	}
}
