package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/resolution"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Service turns uploaded edit sheets into change sets and submits them
// against the document's version history.
type Service struct {
	resolver *resolution.Service
}

// NewService creates a new ingestion service.
func NewService(resolver *resolution.Service) *Service {
	return &Service{resolver: resolver}
}

// Request describes the ingestion input. The uploaded sheet must carry
// a header row with "field", "action", and "value" columns; each data
// row becomes one change operation.
type Request struct {
	DocumentID  string
	AuthorID    string
	BaseVersion int64
	FileName    string
	Data        io.Reader
}

// RowError captures a rejected sheet row.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary returns ingestion level metrics plus the submission outcome.
type Summary struct {
	TotalRows   int                     `json:"totalRows"`
	ValidRows   int                     `json:"validRows"`
	InvalidRows int                     `json:"invalidRows"`
	RowErrors   []RowError              `json:"rowErrors,omitempty"`
	Result      *resolution.ApplyResult `json:"result,omitempty"`
}

type tableData struct {
	headers []string
	rows    [][]string
}

// Ingest reads the uploaded sheet, builds a change set from its rows,
// and applies it to the document at the requested base version.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	var summary Summary

	if strings.TrimSpace(req.DocumentID) == "" {
		return summary, errors.New("document id is required")
	}
	if strings.TrimSpace(req.AuthorID) == "" {
		return summary, errors.New("author id is required")
	}
	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, errors.New("file is empty")
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return summary, err
	}

	columns, err := resolveColumns(table.headers)
	if err != nil {
		return summary, err
	}

	summary.TotalRows = len(table.rows)

	changes := make(domain.ChangeSet, len(table.rows))
	for rowIdx, row := range table.rows {
		rowNumber := rowIdx + 2 // include header row (1-based)

		field, action, value := columns.extract(row)
		if field == "" {
			summary.InvalidRows++
			summary.RowErrors = append(summary.RowErrors, RowError{
				RowNumber: rowNumber,
				Message:   "field name is empty",
			})
			continue
		}

		op, opErr := buildOp(action, value)
		if opErr != nil {
			summary.InvalidRows++
			summary.RowErrors = append(summary.RowErrors, RowError{
				RowNumber: rowNumber,
				Message:   opErr.Error(),
			})
			continue
		}

		if _, dup := changes[field]; dup {
			summary.InvalidRows++
			summary.RowErrors = append(summary.RowErrors, RowError{
				RowNumber: rowNumber,
				Message:   fmt.Sprintf("duplicate entry for field %q", field),
			})
			continue
		}

		changes[field] = op
		summary.ValidRows++
	}

	if len(changes) == 0 {
		return summary, errors.New("no valid change rows found in file")
	}

	result, err := s.resolver.ApplyChanges(ctx, req.DocumentID, req.AuthorID, changes, req.BaseVersion)
	if err != nil {
		return summary, err
	}
	summary.Result = &result

	return summary, nil
}

// buildOp converts an action/value cell pair into a change operation.
// Values are decoded as JSON when possible so sheets can carry numbers,
// booleans, and structured payloads; anything else stays a string.
func buildOp(action, value string) (domain.ChangeOp, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "set", "":
		return domain.Set(parseCellValue(value)), nil
	case "delete", "remove", "unset":
		return domain.Delete(), nil
	default:
		return domain.ChangeOp{}, fmt.Errorf("unknown action %q", action)
	}
}

func parseCellValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}
	return trimmed
}

type columnLayout struct {
	field  int
	action int
	value  int
}

func resolveColumns(headers []string) (columnLayout, error) {
	layout := columnLayout{field: -1, action: -1, value: -1}
	for idx, header := range headers {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "field", "key", "property":
			layout.field = idx
		case "action", "op", "operation":
			layout.action = idx
		case "value":
			layout.value = idx
		}
	}
	if layout.field == -1 {
		return layout, errors.New("sheet is missing a field column")
	}
	if layout.value == -1 {
		return layout, errors.New("sheet is missing a value column")
	}
	return layout, nil
}

func (c columnLayout) extract(row []string) (field, action, value string) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	return cell(c.field), cell(c.action), cell(c.value)
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows)
}

func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := make([]string, len(headerRow))
	for i, value := range headerRow {
		headers[i] = strings.TrimSpace(value)
	}

	return tableData{headers: headers, rows: dataRows}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}
