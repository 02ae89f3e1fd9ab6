package results

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	workbookSheet     = "Results"
	imageRowHeight    = 76
	imageColumnWidth  = 15
	imageOffsetPixels = 2
)

// Workbook is the rich export target.
type Workbook interface {
	SetRow(row int, values []interface{}) error
	AddImage(row, col int, png []byte) error
	Bytes() ([]byte, error)
	Close() error
}

// WorkbookFactory creates an empty workbook.
type WorkbookFactory func() (Workbook, error)

// NewWorkbookCapability wraps factory in a lazily probed capability: the
// first use creates and discards one workbook to prove the writer works.
func NewWorkbookCapability(factory WorkbookFactory) *Capability[WorkbookFactory] {
	return NewCapability(func() (WorkbookFactory, error) {
		probe, err := factory()
		if err != nil {
			return nil, err
		}
		_ = probe.Close()
		return factory, nil
	})
}

type workbookInitError struct {
	err error
}

func (e *workbookInitError) Error() string {
	return fmt.Sprintf("workbook init: %v", e.err)
}

func (e *workbookInitError) Unwrap() error {
	return e.err
}

type excelWorkbook struct {
	file   *excelize.File
	sheet  string
	closed bool
}

// NewExcelWorkbook creates an XLSX workbook with a single results sheet.
func NewExcelWorkbook() (Workbook, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", workbookSheet); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &excelWorkbook{file: file, sheet: workbookSheet}, nil
}

func (w *excelWorkbook) SetRow(row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(w.sheet, cell, &values)
}

func (w *excelWorkbook) AddImage(row, col int, png []byte) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	column, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	if err := w.file.SetRowHeight(w.sheet, row, imageRowHeight); err != nil {
		return err
	}
	if err := w.file.SetColWidth(w.sheet, column, column, imageColumnWidth); err != nil {
		return err
	}
	return w.file.AddPictureFromBytes(w.sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      png,
		Format: &excelize.GraphicOptions{
			OffsetX: imageOffsetPixels,
			OffsetY: imageOffsetPixels,
		},
	})
}

func (w *excelWorkbook) Bytes() ([]byte, error) {
	buf, err := w.file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *excelWorkbook) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
