package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaewoo-dev/datachat/internal/store"
)

func TestParseCSV_SimpleHeader(t *testing.T) {
	data := []byte("name,age,city\nkim,30,seoul\nlee,25,busan\n")
	table, err := ParseCSV(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "city"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"kim", "30", "seoul"}, table.Rows[0])
}

func TestParseCSV_SmartHeaderSkipsPreamble(t *testing.T) {
	// Export tools often prepend title and date lines before the real header.
	data := []byte("Monthly Report\n2024-03-01\nname,age,city\nkim,30,seoul\n")
	table, err := ParseCSV(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "city"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "kim", table.Rows[0][0])
}

func TestParseCSV_BlankHeaderCells(t *testing.T) {
	data := []byte("name,,city\nkim,30,seoul\n")
	table, err := ParseCSV(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "col_1", "city"}, table.Columns)
}

func TestParseCSV_RaggedRowsPadded(t *testing.T) {
	data := []byte("a,b,c\n1,2\n1,2,3,4\n")
	table, err := ParseCSV(data)
	require.NoError(t, err)
	// Every row is normalized to header width.
	for _, row := range table.Rows {
		assert.Len(t, row, 3)
	}
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV([]byte(""))
	assert.Error(t, err)
}

func TestDecodeBestEffort_EUCKR(t *testing.T) {
	// "이름" (name) in EUC-KR bytes.
	eucKR := []byte{0xc0, 0xcc, 0xb8, 0xa7}
	decoded := decodeBestEffort(eucKR)
	assert.Equal(t, "이름", decoded)

	// Valid UTF-8 passes through untouched.
	assert.Equal(t, "이름", decodeBestEffort([]byte("이름")))
}

func TestInferColumnTypes(t *testing.T) {
	table := &Table{
		Columns: []string{"id", "price", "active", "joined", "note", "empty"},
		Rows: [][]string{
			{"1", "9.99", "true", "2024-01-02", "first", ""},
			{"2", "12", "false", "2024-02-03", "42", ""},
			{"3", "", "true", "", "third", ""},
		},
	}

	specs := InferColumnTypes(table)
	require.Len(t, specs, 6)
	assert.Equal(t, store.TypeInteger, specs[0].InferredType)
	assert.Equal(t, store.TypeFloat, specs[1].InferredType, "mixed int/float is float")
	assert.Equal(t, store.TypeBoolean, specs[2].InferredType)
	assert.Equal(t, store.TypeDatetime, specs[3].InferredType)
	assert.Equal(t, store.TypeText, specs[4].InferredType, "one non-numeric value makes it text")
	assert.Equal(t, store.TypeText, specs[5].InferredType, "empty columns default to text")
	assert.Equal(t, 3, specs[3].Position)
}

func TestRowChunks(t *testing.T) {
	table := &Table{
		Columns: []string{"name", "age"},
		Rows: [][]string{
			{"kim", "30"},
			{"lee", "25"},
		},
	}

	chunks := RowChunks(table, "people.csv")
	require.Len(t, chunks, 2)
	assert.Equal(t, "name: kim, age: 30", chunks[0].Text)
	assert.Equal(t, "people.csv", chunks[0].File)
	assert.Equal(t, 0, chunks[0].RowIndex)
	assert.Equal(t, map[string]string{"name": "kim", "age": "30"}, chunks[0].Structured)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestRowChunks_LongRowSplitsWithSingleProjection(t *testing.T) {
	table := &Table{
		Columns: []string{"body"},
		Rows:    [][]string{{strings.Repeat("x", MaxChunkChars*2)}},
	}

	chunks := RowChunks(table, "big.csv")
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, 0, ch.RowIndex)
		assert.Equal(t, i, ch.Part)
		if i == 0 {
			assert.NotNil(t, ch.Structured, "projection only on the first part")
		} else {
			assert.Nil(t, ch.Structured)
		}
	}
}

func TestTextChunk(t *testing.T) {
	ch := TextChunk("some document", "notes.md", 3)
	assert.Equal(t, -1, ch.RowIndex)
	assert.Nil(t, ch.Structured)
	assert.True(t, strings.HasPrefix(ch.ID, "3-"))
}

func TestScoreHeaderRow(t *testing.T) {
	header := scoreHeaderRow([]string{"name", "age", "city"})
	dataRow := scoreHeaderRow([]string{"kim", "30", "seoul"})
	assert.Greater(t, header, dataRow, "numeric cells must drag a row's score down")

	assert.Zero(t, scoreHeaderRow([]string{"", "", ""}))

	unique := scoreHeaderRow([]string{"a", "b"})
	dup := scoreHeaderRow([]string{"a", "a"})
	assert.Greater(t, unique, dup)
}
