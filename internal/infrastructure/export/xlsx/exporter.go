package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

const (
	overviewSheet = "Digest"
	maxSheetName  = 31
)

var postHeader = []any{"Title", "Summary", "Source", "URL"}

// Exporter renders a digest as a workbook: an overview sheet followed by one
// sheet per category in digest order.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(w io.Writer, digest *domain.Digest) error {
	if digest == nil {
		return domain.WrapError(domain.ErrValidation, "export digest", fmt.Errorf("digest is nil"))
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return fmt.Errorf("rename overview sheet: %w", err)
	}
	if err := writeOverview(f, digest, bold); err != nil {
		return err
	}

	for _, category := range digest.Categories {
		if err := writeCategory(f, category, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, digest *domain.Digest, headerStyle int) error {
	rows := [][]any{
		{"Generated at", digest.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total posts", digest.PostCount()},
		{},
		{"Category", "Posts"},
	}
	for _, category := range digest.Categories {
		rows = append(rows, []any{string(category.Name), len(category.Posts)})
	}
	if err := writeRows(f, overviewSheet, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(overviewSheet, 4, 4, headerStyle); err != nil {
		return fmt.Errorf("style overview header: %w", err)
	}
	return f.SetColWidth(overviewSheet, "A", "A", 28)
}

func writeCategory(f *excelize.File, category domain.DigestCategory, headerStyle int) error {
	name := sheetName(category.Name)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}

	rows := make([][]any, 0, len(category.Posts)+1)
	rows = append(rows, postHeader)
	for _, post := range category.Posts {
		rows = append(rows, []any{post.Title, post.Summary, post.Source, post.URL})
	}
	if err := writeRows(f, name, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %q header: %w", name, err)
	}
	if err := f.SetColWidth(name, "A", "A", 40); err != nil {
		return fmt.Errorf("size %q columns: %w", name, err)
	}
	return f.SetColWidth(name, "B", "B", 80)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// sheetName strips characters Excel rejects in sheet names.
func sheetName(category domain.Category) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, string(category))
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, overviewSheet) {
		name = string(domain.CategoryOther)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
