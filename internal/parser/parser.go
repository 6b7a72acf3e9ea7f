package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"casevise/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// ParseFile extracts page-ordered text from a document on disk. Supported
// formats: .pdf, .docx, .xlsx, .ods, .txt. Any extraction failure is reported
// as a *models.ParseError so callers can surface it rather than skip the file.
func ParseFile(filePath string) (models.ParsedDocument, error) {
	name := filepath.Base(filePath)
	doc := models.ParsedDocument{SourceFile: name}

	var pages []models.Page
	var err error
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".pdf":
		pages, err = parsePDF(filePath, name)
	case ".docx":
		pages, err = parseDOCX(filePath, name)
	case ".xlsx":
		pages, err = parseXLSX(filePath, name)
	case ".ods":
		pages, err = parseODS(filePath, name)
	case ".txt":
		pages, err = parseText(filePath, name)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return doc, &models.ParseError{File: name, Err: err}
	}
	if len(pages) == 0 {
		return doc, &models.ParseError{File: name, Err: fmt.Errorf("no extractable text")}
	}
	doc.Pages = pages
	return doc, nil
}

// SupportedExtensions lists the file extensions ParseFile accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".xlsx", ".ods", ".txt"}
}

// Supported reports whether the path has a parseable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

func parsePDF(filePath, name string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, models.Page{Text: pageText, Number: i, SourceFile: name})
	}
	return pages, nil
}

func parseDOCX(filePath, name string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	// DOCX has no page boundaries, treat the whole body as page 1.
	return []models.Page{{Text: content, Number: 1, SourceFile: name}}, nil
}

func parseXLSX(filePath, name string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}
		// one page per sheet, 1-based
		pages = append(pages, models.Page{Text: text.String(), Number: sheetNum + 1, SourceFile: name})
	}
	return pages, nil
}

func parseODS(filePath, name string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}
		pages = append(pages, models.Page{Text: text.String(), Number: sheetNum + 1, SourceFile: name})
	}
	return pages, nil
}

func parseText(filePath, name string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Page{{Text: string(data), Number: 1, SourceFile: name}}, nil
}
