package titles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/covergen/internal/domain"
)

const sample = `# 配置封面标题（按媒体库名称对应）
Movies:
  - 电影
  - Movies
华语电影：
	- 华语电影
	- Chinese Films
2024:
  - 新片
  - ~
`

func TestParse(t *testing.T) {
	m, err := Parse(sample)
	require.NoError(t, err)

	title, ok := m.Lookup("Movies")
	require.True(t, ok)
	assert.Equal(t, domain.Title{Zh: "电影", En: "Movies"}, title)

	title, ok = m.Lookup("华语电影")
	require.True(t, ok, "full-width colon and tab indentation are normalized")
	assert.Equal(t, "Chinese Films", title.En)

	title, ok = m.Lookup("2024")
	require.True(t, ok)
	assert.Equal(t, domain.Title{Zh: "新片"}, title)

	assert.Equal(t, []string{"Movies", "华语电影", "2024"}, m.Keys())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"scalar root":   "just text",
		"short entry":   "Movies:\n  - 电影\n",
		"not a list":    "Movies: 电影\n",
		"nested titles": "Movies:\n  - [a]\n  - b\n",
		"bad yaml":      "Movies: [\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assert.ErrorIs(t, err, domain.ErrTitleConfig)
		})
	}
}

func TestResolverFallsBackToCollectionName(t *testing.T) {
	r := NewResolver(sample, nil)
	require.NoError(t, r.Err())
	assert.Equal(t, domain.Title{Zh: "Anime"}, r.Title("Anime"))
	assert.Equal(t, domain.Title{Zh: "电影", En: "Movies"}, r.Title("Movies"))

	broken := NewResolver("Movies:\n  - only one\n", nil)
	assert.ErrorIs(t, broken.Err(), domain.ErrTitleConfig)
	assert.Equal(t, domain.Title{Zh: "Movies"}, broken.Title("Movies"))

	empty := NewResolver("# 格式如下：\n#\n", nil)
	assert.NoError(t, empty.Err())
	assert.Equal(t, domain.Title{Zh: "Anime"}, empty.Title("Anime"))
}

func TestBlankChineseTitleFallsBackToCollectionName(t *testing.T) {
	m, err := Parse("Movies:\n  - ~\n  - Movies\nKids:\n  - \"  \"\n  - Kids\n")
	require.NoError(t, err)
	_, ok := m.Lookup("Movies")
	assert.False(t, ok)

	r := NewResolver("Movies:\n  - ~\n  - Movies\nKids:\n  - \"  \"\n  - Kids\n", nil)
	assert.Equal(t, domain.Title{Zh: "Movies"}, r.Title("Movies"))
	assert.Equal(t, domain.Title{Zh: "Kids"}, r.Title("Kids"))
	assert.Empty(t, r.Unmatched([]string{"Movies", "Kids"}))
}

func TestUnmatchedSuggestsClosestCollection(t *testing.T) {
	r := NewResolver("TV Show:\n  - 剧集\n  - TV\nMovies:\n  - 电影\n  - Movies\nzzz:\n  - a\n  - b\n", nil)
	got := r.Unmatched([]string{"Movies", "TV Shows", "Music"})
	assert.Equal(t, []Suggestion{
		{Key: "TV Show", Closest: "TV Shows"},
		{Key: "zzz"},
	}, got)
}
