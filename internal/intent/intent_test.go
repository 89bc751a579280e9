package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaewoo-dev/datachat/internal/llm"
)

type fakeData struct {
	session bool
	tabular bool
}

func (f fakeData) HasSessionData(context.Context, string) (bool, error) { return f.session, nil }
func (f fakeData) HasTabularData(context.Context, string) (bool, error) { return f.tabular, nil }

type fakeClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeClient) Complete(context.Context, []llm.Message) (string, error) {
	f.calls++
	return f.reply, f.err
}

func classify(t *testing.T, c *Classifier, question string) Mode {
	t.Helper()
	return c.Classify(context.Background(), question, Options{SessionID: "s1"})
}

func TestClassify_Override(t *testing.T) {
	c := NewClassifier(nil, fakeData{})

	got := c.Classify(context.Background(), "anything at all", Options{Override: ModeSQL})
	assert.Equal(t, ModeSQL, got)

	// Invalid override falls through to classification.
	got = c.Classify(context.Background(), "find the context please", Options{Override: Mode("bogus")})
	assert.Equal(t, ModeHybrid, got)
}

func TestClassify_StatsCues(t *testing.T) {
	t.Run("with tabular data", func(t *testing.T) {
		c := NewClassifier(nil, fakeData{session: true, tabular: true})
		assert.Equal(t, ModeStats, classify(t, c, "show me the distribution of ages"))
		assert.Equal(t, ModeStats, classify(t, c, "나이 분포 알려줘"))
	})

	t.Run("without tabular data cues are ignored", func(t *testing.T) {
		c := NewClassifier(nil, fakeData{session: true, tabular: false})
		got := classify(t, c, "show me the distribution of ages")
		assert.NotEqual(t, ModeStats, got)
	})
}

func TestClassify_CountAndSumRouteToSQL(t *testing.T) {
	// Even with tabular data present, count/sum questions belong to the SQL
	// path, not the statistics engine.
	c := NewClassifier(nil, fakeData{session: true, tabular: true})
	assert.Equal(t, ModeSQL, classify(t, c, "count the orders"))
	assert.Equal(t, ModeSQL, classify(t, c, "what is the sum of qty?"))
}

func TestClassify_ColumnsCues(t *testing.T) {
	t.Run("with session data", func(t *testing.T) {
		c := NewClassifier(nil, fakeData{session: true})
		assert.Equal(t, ModeColumns, classify(t, c, "what are the column names?"))
		assert.Equal(t, ModeColumns, classify(t, c, "컬럼 알려줘"))
	})

	t.Run("without session data", func(t *testing.T) {
		c := NewClassifier(nil, fakeData{})
		assert.NotEqual(t, ModeColumns, classify(t, c, "what are the column names?"))
	})
}

func TestClassify_KeywordScoring(t *testing.T) {
	c := NewClassifier(nil, fakeData{})

	assert.Equal(t, ModeSQL, classify(t, c, "count the rows per table"))
	assert.Equal(t, ModeHybrid, classify(t, c, "find mentions of refunds"))
	assert.Equal(t, ModeBoth, classify(t, c, "count rows and search the context for refunds"))
	assert.Equal(t, ModeSQL, classify(t, c, "전체 행 개수는?"))
}

func TestClassify_LLMFallback(t *testing.T) {
	t.Run("valid label", func(t *testing.T) {
		client := &fakeClient{reply: " Hybrid \n"}
		c := NewClassifier(client, fakeData{})
		assert.Equal(t, ModeHybrid, classify(t, c, "tell me about this"))
		assert.Equal(t, 1, client.calls)
	})

	t.Run("off-vocabulary reply resolves to none", func(t *testing.T) {
		c := NewClassifier(&fakeClient{reply: "definitely sql, trust me"}, fakeData{})
		assert.Equal(t, ModeNone, classify(t, c, "tell me about this"))
	})

	t.Run("client error resolves to none", func(t *testing.T) {
		c := NewClassifier(&fakeClient{err: errors.New("down")}, fakeData{})
		assert.Equal(t, ModeNone, classify(t, c, "tell me about this"))
	})

	t.Run("nil client resolves to none", func(t *testing.T) {
		c := NewClassifier(nil, fakeData{})
		assert.Equal(t, ModeNone, classify(t, c, "tell me about this"))
	})
}

func TestClassify_CachesPerSessionAndQuestion(t *testing.T) {
	client := &fakeClient{reply: "hybrid"}
	c := NewClassifier(client, fakeData{})

	opts := Options{SessionID: "s1"}
	c.Classify(context.Background(), "ambiguous question", opts)
	c.Classify(context.Background(), "ambiguous question", opts)
	assert.Equal(t, 1, client.calls, "second call must hit the cache")

	// A different session is a different cache entry.
	c.Classify(context.Background(), "ambiguous question", Options{SessionID: "s2"})
	assert.Equal(t, 2, client.calls)
}

func TestMode_Valid(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeSQL, ModeHybrid, ModeBoth, ModeStats, ModeColumns} {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, Mode("").Valid())
	assert.False(t, Mode("sqlish").Valid())
}
