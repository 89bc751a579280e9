// Package ingest reads source files into chunks and pushes them through the
// relational, lexical and vector stores.
package ingest

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"

	"github.com/jaewoo-dev/datachat/internal/store"
)

// MaxChunkChars is the split size for long row texts.
const MaxChunkChars = 2000

// headerScanRows bounds the smart header scan.
const headerScanRows = 12

var (
	numberRe = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)
	intRe    = regexp.MustCompile(`^[-+]?\d+$`)
	nameRe   = regexp.MustCompile(`[A-Za-z가-힣_]`)
)

// Table is a decoded CSV with a resolved header.
type Table struct {
	Columns []string
	Rows    [][]string
}

// decodeBestEffort tries the encodings common in KR/legacy files before
// giving up: UTF-8, CP949/EUC-KR, then Latin-1 which never fails.
func decodeBestEffort(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	for _, dec := range []*encoding.Decoder{
		korean.EUCKR.NewDecoder(),
		charmap.ISO8859_1.NewDecoder(),
	} {
		if decoded, err := dec.Bytes(data); err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}
	return string(data)
}

// parseRecords reads CSV records tolerantly: ragged rows are kept, rows that
// fail to parse are skipped.
func parseRecords(text string) [][]string {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// looksLikeName reports whether a cell plausibly names a column: non-empty,
// not purely numeric, contains letters, not absurdly long.
func looksLikeName(value string) bool {
	s := strings.TrimSpace(value)
	if s == "" || numberRe.MatchString(s) {
		return false
	}
	return nameRe.MatchString(s) && len(s) <= 64
}

// scoreHeaderRow rates a candidate header: name-likeness and uniqueness up,
// duplicates and numeric cells down.
func scoreHeaderRow(values []string) float64 {
	var nonempty []string
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			nonempty = append(nonempty, s)
		}
	}
	if len(nonempty) == 0 {
		return 0
	}

	looks := 0
	numericLike := 0
	seen := make(map[string]bool, len(nonempty))
	for _, v := range nonempty {
		if looksLikeName(v) {
			looks++
		}
		if numberRe.MatchString(v) {
			numericLike++
		}
		seen[v] = true
	}
	dupPenalty := len(nonempty) - len(seen)
	return float64(looks)*2.0 + float64(len(seen))*1.0 -
		float64(dupPenalty)*0.5 - float64(numericLike)*1.0
}

// ParseCSV decodes and parses raw CSV bytes, detecting the header row by
// scanning the first rows and picking the best-scoring candidate. Rows above
// the header are dropped; blank header cells become col_<position>.
func ParseCSV(data []byte) (*Table, error) {
	records := parseRecords(decodeBestEffort(data))
	if len(records) == 0 {
		return nil, fmt.Errorf("no parseable rows")
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}

	scan := headerScanRows
	if scan > len(records) {
		scan = len(records)
	}
	bestIdx := 0
	bestScore := scoreHeaderRow(padded(records[0], width))
	for i := 1; i < scan; i++ {
		if score := scoreHeaderRow(padded(records[i], width)); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	header := padded(records[bestIdx], width)
	columns := make([]string, width)
	for i, v := range header {
		name := strings.TrimSpace(v)
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		columns[i] = name
	}

	rows := make([][]string, 0, len(records)-bestIdx-1)
	for _, rec := range records[bestIdx+1:] {
		rows = append(rows, padded(rec, width))
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

func padded(rec []string, width int) []string {
	if len(rec) >= width {
		return rec[:width]
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

// InferColumnTypes samples each column's non-empty values and assigns one of
// integer, float, boolean, datetime or text. Empty columns are text.
func InferColumnTypes(table *Table) []store.ColumnSpec {
	specs := make([]store.ColumnSpec, len(table.Columns))
	for i, name := range table.Columns {
		specs[i] = store.ColumnSpec{
			Name:         name,
			InferredType: inferColumnType(table.Rows, i),
			Position:     i,
		}
	}
	return specs
}

func inferColumnType(rows [][]string, col int) string {
	const sampleLimit = 200

	allInt, allNum, allBool, allTime := true, true, true, true
	sampled := 0
	for _, row := range rows {
		if sampled >= sampleLimit {
			break
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		sampled++

		if !intRe.MatchString(v) {
			allInt = false
		}
		if !numberRe.MatchString(v) {
			allNum = false
		}
		if !isBoolLiteral(v) {
			allBool = false
		}
		if !isDatetimeLiteral(v) {
			allTime = false
		}
	}
	if sampled == 0 {
		return store.TypeText
	}
	switch {
	case allBool:
		return store.TypeBoolean
	case allInt:
		return store.TypeInteger
	case allNum:
		return store.TypeFloat
	case allTime:
		return store.TypeDatetime
	}
	return store.TypeText
}

func isBoolLiteral(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false":
		return true
	}
	return false
}

var datetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

func isDatetimeLiteral(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// RowChunks converts table rows into chunks: "col: value, ..." per row, split
// at MaxChunkChars, with the structured projection attached only to the first
// part so the key-value table gets each row once.
func RowChunks(table *Table, filename string) []store.Chunk {
	var chunks []store.Chunk
	for rowIdx, row := range table.Rows {
		structured := make(map[string]string, len(table.Columns))
		parts := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			value := strings.TrimSpace(row[i])
			structured[col] = value
			parts[i] = fmt.Sprintf("%s: %s", col, value)
		}
		rowText := strings.Join(parts, ", ")

		for partIdx, text := range splitText(rowText, MaxChunkChars) {
			ch := store.Chunk{
				ID:       chunkID(len(chunks), text),
				Text:     text,
				File:     filename,
				RowIndex: rowIdx,
				Part:     partIdx,
			}
			if partIdx == 0 {
				ch.Structured = structured
			}
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// TextChunk wraps a whole text/markdown document as one chunk. Non-tabular
// sources carry no row index or projection.
func TextChunk(text, filename string, seq int) store.Chunk {
	return store.Chunk{
		ID:       chunkID(seq, text),
		Text:     text,
		File:     filename,
		RowIndex: -1,
	}
}

func splitText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		parts = append(parts, text[:n])
		text = text[n:]
	}
	return parts
}

func chunkID(seq int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%d-%s", seq, hex.EncodeToString(sum[:])[:12])
}
