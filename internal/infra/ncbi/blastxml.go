package ncbi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jinford/seqsearch/internal/core/search"
)

type blastOutput struct {
	XMLName    xml.Name         `xml:"BlastOutput"`
	Iterations *blastIterations `xml:"BlastOutput_iterations"`
}

type blastIterations struct {
	Iterations []blastIteration `xml:"Iteration"`
}

type blastIteration struct {
	Hits []blastHit `xml:"Iteration_hits>Hit"`
}

type blastHit struct {
	Num       string     `xml:"Hit_num"`
	ID        string     `xml:"Hit_id"`
	Def       string     `xml:"Hit_def"`
	Accession string     `xml:"Hit_accession"`
	Hsps      []blastHsp `xml:"Hit_hsps>Hsp"`
}

type blastHsp struct {
	BitScore string `xml:"Hsp_bit-score"`
	Score    string `xml:"Hsp_score"`
	EValue   string `xml:"Hsp_evalue"`
	HitFrom  string `xml:"Hsp_hit-from"`
	HitTo    string `xml:"Hsp_hit-to"`
	Identity string `xml:"Hsp_identity"`
	AlignLen string `xml:"Hsp_align-len"`
}

// BlastXMLParser は BLAST XML 形式の結果ドキュメントを解析する search.HitParser の実装
type BlastXMLParser struct{}

var _ search.HitParser = BlastXMLParser{}

// NewBlastXMLParser は新しい BlastXMLParser を作成する
func NewBlastXMLParser() BlastXMLParser {
	return BlastXMLParser{}
}

// Parse はドキュメント順にヒットを返す。各ヒットの値は先頭の HSP から取る。
// 1件でも不正なヒットがあればドキュメント全体を ErrParse とする
func (BlastXMLParser) Parse(document []byte) ([]search.HitRecord, error) {
	if len(bytes.TrimSpace(document)) == 0 {
		return nil, fmt.Errorf("%w: empty document", search.ErrParse)
	}

	var out blastOutput
	if err := xml.Unmarshal(document, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, err)
	}
	if out.Iterations == nil {
		return nil, fmt.Errorf("%w: BlastOutput_iterations not found", search.ErrParse)
	}

	records := make([]search.HitRecord, 0)
	for _, it := range out.Iterations.Iterations {
		for _, h := range it.Hits {
			rec, err := convertHit(h)
			if err != nil {
				return nil, fmt.Errorf("%w: hit %d: %v", search.ErrParse, len(records)+1, err)
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

func convertHit(h blastHit) (search.HitRecord, error) {
	accession := strings.TrimSpace(h.Accession)
	if accession == "" {
		return search.HitRecord{}, errors.New("Hit_accession is empty")
	}
	if len(h.Hsps) == 0 {
		return search.HitRecord{}, fmt.Errorf("%s has no Hsp", accession)
	}
	hsp := h.Hsps[0]

	rec := search.HitRecord{
		Accession:   accession,
		HitID:       strings.TrimSpace(h.ID),
		Description: strings.TrimSpace(h.Def),
	}

	var err error
	if rec.BitScore, err = parseFloat("Hsp_bit-score", hsp.BitScore); err != nil {
		return search.HitRecord{}, err
	}
	if rec.EValue, err = parseFloat("Hsp_evalue", hsp.EValue); err != nil {
		return search.HitRecord{}, err
	}
	if rec.RawScore, err = parseInt("Hsp_score", hsp.Score); err != nil {
		return search.HitRecord{}, err
	}
	if rec.Identity, err = parseInt("Hsp_identity", hsp.Identity); err != nil {
		return search.HitRecord{}, err
	}
	if rec.HitFrom, err = parseInt("Hsp_hit-from", hsp.HitFrom); err != nil {
		return search.HitRecord{}, err
	}
	if rec.HitTo, err = parseInt("Hsp_hit-to", hsp.HitTo); err != nil {
		return search.HitRecord{}, err
	}
	if rec.AlignLen, err = parseInt("Hsp_align-len", hsp.AlignLen); err != nil {
		return search.HitRecord{}, err
	}

	return rec, nil
}

func parseFloat(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", field, value)
	}
	return v, nil
}

func parseInt(field, value string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", field, value)
	}
	return v, nil
}
