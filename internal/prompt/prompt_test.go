package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectHeadings(t *testing.T) {
	tests := []struct {
		name     string
		headings map[string][]string
		limit    int
		want     map[string][]string
	}{
		{
			name: "budget splits across levels",
			headings: map[string][]string{
				"h1": {"a"},
				"h2": {"b", "c"},
				"h3": {"d"},
			},
			limit: 3,
			want: map[string][]string{
				"h1": {"a"},
				"h2": {"b", "c"},
			},
		},
		{
			name: "level truncated at budget boundary",
			headings: map[string][]string{
				"h1": {"a", "b", "c"},
				"h2": {"d"},
			},
			limit: 2,
			want: map[string][]string{
				"h1": {"a", "b"},
			},
		},
		{
			name: "budget larger than outline",
			headings: map[string][]string{
				"h1": {"a"},
				"h6": {"z"},
			},
			limit: 10,
			want: map[string][]string{
				"h1": {"a"},
				"h6": {"z"},
			},
		},
		{
			name:     "empty outline",
			headings: map[string][]string{},
			limit:    5,
			want:     map[string][]string{},
		},
		{
			name: "empty buckets skipped",
			headings: map[string][]string{
				"h1": {},
				"h2": {"b"},
			},
			limit: 3,
			want: map[string][]string{
				"h2": {"b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CollectHeadings(tt.headings, tt.limit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectHeadingsDeterministic(t *testing.T) {
	headings := map[string][]string{
		"h1": {"a"},
		"h2": {"b", "c"},
		"h3": {"d"},
	}
	first := CollectHeadings(headings, 3)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, CollectHeadings(headings, 3))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "abc", Truncate("abc", 3))

	long := strings.Repeat("x", DefaultTextLimit+100)
	assert.Len(t, Truncate(long, 0), DefaultTextLimit)
}

func TestTruncateCountsCharactersNotBytes(t *testing.T) {
	// Multi-byte runes: the budget is characters, and the cut must never
	// split a rune.
	accented := strings.Repeat("é", 3000)
	got := Truncate(accented, 2500)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 2500, utf8.RuneCountInString(got))

	mixed := "a" + strings.Repeat("é", 3000)
	got = Truncate(mixed, 2000)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 2000, utf8.RuneCountInString(got))

	// Within budget: returned unchanged.
	assert.Equal(t, "héllo", Truncate("héllo", 5))

	cjk := strings.Repeat("語", 10)
	got = Truncate(cjk, 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "語語語語", got)
}

func TestFirstHeading(t *testing.T) {
	assert.Equal(t, "a", FirstHeading(map[string][]string{"h1": {"a"}, "h2": {"b"}}))
	assert.Equal(t, "b", FirstHeading(map[string][]string{"h2": {"b"}}))
	assert.Equal(t, "", FirstHeading(map[string][]string{}))
	assert.Equal(t, "", FirstHeading(nil))
}

func TestBuildWithoutContext(t *testing.T) {
	system, user := Build(map[string][]string{"h1": {"Intro"}}, "some text", "", "")

	assert.NotContains(t, system, "RELEVANT CONTEXT")
	assert.Contains(t, user, "some text")
	assert.Contains(t, user, `"Intro"`)
	assert.Contains(t, user, "EXAMPLE OUTPUT")
	assert.Contains(t, user, "Do not include any text or formatting other than the JSON structure")
}

func TestBuildWithContext(t *testing.T) {
	system, user := Build(
		map[string][]string{"h1": {"Intro"}},
		"current text",
		"Document 1: prior summary",
		"Document 1: prior headings",
	)

	require.Contains(t, system, "### RELEVANT CONTEXT ###")
	assert.Contains(t, system, "Document 1: prior summary")
	assert.Contains(t, system, "Document 1: prior headings")
	assert.Contains(t, user, "current text")
}

func TestRenderHeadingsImportanceOrder(t *testing.T) {
	rendered := renderHeadings(map[string][]string{
		"h3": {"c"},
		"h1": {"a"},
		"h2": {"b"},
	})
	// JSON map keys sort lexicographically, which for h1..h6 is importance order.
	iH1 := strings.Index(rendered, `"h1"`)
	iH2 := strings.Index(rendered, `"h2"`)
	iH3 := strings.Index(rendered, `"h3"`)
	require.True(t, iH1 >= 0 && iH2 >= 0 && iH3 >= 0)
	assert.Less(t, iH1, iH2)
	assert.Less(t, iH2, iH3)
}
