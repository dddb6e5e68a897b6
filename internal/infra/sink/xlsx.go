package sink

import (
	"context"
	"fmt"

	"github.com/jinford/seqsearch/internal/core/search"
	"github.com/xuri/excelize/v2"
)

// SheetName は結果を書き込むシート名
const SheetName = "Results"

// XLSXSink は結果をスプレッドシートに書き込む。ファイルは Close 時に保存する
type XLSXSink struct {
	f    *excelize.File
	path string
	row  int
}

var _ search.ResultSink = (*XLSXSink)(nil)

// NewXLSXSink はヘッダー行を設定した XLSXSink を作成する
func NewXLSXSink(path string) (*XLSXSink, error) {
	f := excelize.NewFile()

	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 24) // label
	_ = f.SetColWidth(SheetName, "B", "B", 40) // raw text
	_ = f.SetColWidth(SheetName, "C", "C", 60) // reference name
	_ = f.SetColWidth(SheetName, "D", "D", 60) // reference sequence
	_ = f.SetColWidth(SheetName, "E", "E", 14)

	return &XLSXSink{f: f, path: path, row: 1}, nil
}

// Write は次の行に値を設定する
func (s *XLSXSink) Write(ctx context.Context, row search.ResultRow) error {
	s.row++
	for i, v := range values(row) {
		cell, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			return err
		}
		if err := s.f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

// Close はブックを保存して閉じる
func (s *XLSXSink) Close() error {
	if err := s.f.SaveAs(s.path); err != nil {
		_ = s.f.Close()
		return fmt.Errorf("failed to save %s: %w", s.path, err)
	}
	return s.f.Close()
}
