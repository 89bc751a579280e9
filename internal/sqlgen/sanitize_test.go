package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_PlainSelect(t *testing.T) {
	stmt, rejected := Validate("SELECT col_name FROM schema_columns WHERE session_id = 's1'")
	require.Nil(t, rejected)
	assert.Equal(t, "SELECT col_name FROM schema_columns WHERE session_id = 's1'", stmt)
}

func TestValidate_StripsCodeFence(t *testing.T) {
	raw := "```sql\nSELECT count(*) FROM rows WHERE session_id = 's1';\n```"
	stmt, rejected := Validate(raw)
	require.Nil(t, rejected)
	assert.Equal(t, "SELECT count(*) FROM rows WHERE session_id = 's1'", stmt)

	// Fence without language tag.
	stmt, rejected = Validate("```\nSELECT 1\n```")
	require.Nil(t, rejected)
	assert.Equal(t, "SELECT 1", stmt)
}

func TestValidate_ExtractionWindow(t *testing.T) {
	t.Run("prose before select is cut", func(t *testing.T) {
		stmt, rejected := Validate("Here is your query: SELECT 1 FROM rows; hope it helps")
		require.Nil(t, rejected)
		assert.Equal(t, "SELECT 1 FROM rows", stmt)
	})

	t.Run("semicolon before first select rejects", func(t *testing.T) {
		// The window is empty when another statement terminates first, so
		// nothing after the semicolon can be smuggled in.
		stmt, rejected := Validate("DROP TABLE files; SELECT 1")
		require.NotNil(t, rejected)
		assert.Empty(t, stmt)
		assert.Equal(t, OutcomeRejected, rejected.Kind)
		assert.Equal(t, ReasonNoSelect, rejected.Reason)
	})

	t.Run("no select at all rejects", func(t *testing.T) {
		_, rejected := Validate("I cannot answer that question.")
		require.NotNil(t, rejected)
		assert.Equal(t, ReasonNoSelect, rejected.Reason)
	})

	t.Run("empty input rejects", func(t *testing.T) {
		_, rejected := Validate("")
		require.NotNil(t, rejected)
		assert.Equal(t, ReasonNoSelect, rejected.Reason)
	})
}

func TestValidate_ForbiddenKeywords(t *testing.T) {
	cases := []string{
		"WITH x AS (SELECT 1) DELETE FROM rows",
		"SELECT (SELECT 1) AS x FROM rows ATTACH",
		"select * from rows -- then DROP everything",
	}
	for _, raw := range cases {
		_, rejected := Validate(raw)
		require.NotNil(t, rejected, "want rejection for %q", raw)
		assert.Equal(t, ReasonForbiddenKeyword, rejected.Reason)
	}
}

func TestValidate_TrailingStatementIsCutNotRejected(t *testing.T) {
	// The window ends at the first semicolon; whatever follows never reaches
	// the executor.
	stmt, rejected := Validate("SELECT * FROM rows; DELETE FROM rows")
	require.Nil(t, rejected)
	assert.Equal(t, "SELECT * FROM rows", stmt)
}

func TestValidate_KeywordInsideWordIsAllowed(t *testing.T) {
	// "created_at" contains "create" but not as a whole word.
	stmt, rejected := Validate("SELECT created_at FROM files WHERE session_id = 's1'")
	require.Nil(t, rejected)
	assert.Contains(t, stmt, "created_at")

	// Column values mentioning updates are fine too.
	_, rejected = Validate("SELECT * FROM row_kv WHERE col_name = 'updates'")
	assert.Nil(t, rejected)
}

func TestInjectLimit(t *testing.T) {
	t.Run("appended when missing", func(t *testing.T) {
		got := InjectLimit("SELECT * FROM rows", 100)
		assert.Equal(t, "SELECT * FROM rows LIMIT 100", got)
	})

	t.Run("existing limit kept", func(t *testing.T) {
		got := InjectLimit("SELECT * FROM rows LIMIT 5", 100)
		assert.Equal(t, "SELECT * FROM rows LIMIT 5", got)

		got = InjectLimit("SELECT * FROM rows limit 20", 100)
		assert.Equal(t, "SELECT * FROM rows limit 20", got)
	})

	t.Run("non-positive limit defaults", func(t *testing.T) {
		got := InjectLimit("SELECT 1", 0)
		assert.Equal(t, "SELECT 1 LIMIT 100", got)
	})
}

func TestOutcome_ErrorText(t *testing.T) {
	assert.Empty(t, (&Outcome{Kind: OutcomeSuccess}).ErrorText())
	assert.Equal(t, "rejected: forbidden_keyword",
		(&Outcome{Kind: OutcomeRejected, Reason: ReasonForbiddenKeyword}).ErrorText())
	assert.Equal(t, "timeout", (&Outcome{Kind: OutcomeTimeout}).ErrorText())
	assert.Equal(t, "schema: no such table: foo",
		(&Outcome{Kind: OutcomeExecutionError, ErrClass: "schema", Message: "no such table: foo"}).ErrorText())

	var nilOutcome *Outcome
	assert.Empty(t, nilOutcome.ErrorText())
	assert.False(t, nilOutcome.OK())
	assert.False(t, nilOutcome.Failed())
}
