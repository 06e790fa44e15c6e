package main

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/covergen/internal/adapter"
	"github.com/mmcdole/covergen/internal/adapter/source"
	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/service"
	"github.com/mmcdole/covergen/internal/titles"
)

func sampleResult() service.Result {
	return service.Result{
		Duration: 3 * time.Second,
		Outcomes: []service.Outcome{
			{Server: "home", Collection: domain.Collection{ID: "1", Name: "Movies"}, Status: service.StatusUpdated, Images: 9, Duration: 1500 * time.Millisecond},
			{Server: "home", Collection: domain.Collection{ID: "2", Name: "Kids"}, Status: service.StatusSkipped, Err: domain.ErrUpToDate},
			{Server: "home", Collection: domain.Collection{ID: "3", Name: "Music"}, Status: service.StatusEmpty, Err: domain.ErrNoImages},
			{Server: "backup", Status: service.StatusFailed, Err: errors.New("connection refused")},
		},
	}
}

func TestRenderSummaryPlain(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, sampleResult(), false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "SERVER\tLIBRARY\tSTATUS\tDETAIL", lines[0])
	assert.Equal(t, "home\tMovies\tupdated\t9 catalog image(s) in 1.5s", lines[1])
	assert.Equal(t, "home\tKids\tskipped\tnewest item unchanged", lines[2])
	assert.Equal(t, "home\tMusic\tempty\tno image could be downloaded", lines[3])
	assert.Equal(t, "backup\t-\tfailed\tconnection refused", lines[4])
	assert.Equal(t, "1 updated, 1 skipped, 1 empty, 1 failed, 0 excluded in 3s", lines[5])
}

func TestRenderSummaryStyled(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, sampleResult(), true)

	out := buf.String()
	for _, want := range []string{"SERVER", "Movies", "connection refused", "1 updated"} {
		assert.Contains(t, out, want)
	}
}

func TestOutcomeDetail(t *testing.T) {
	custom := service.Outcome{Status: service.StatusUpdated, Custom: true, Images: 1, OutputPath: "/covers/Movies.jpg"}
	assert.Equal(t, "1 custom image(s) in 0s, saved /covers/Movies.jpg", outcomeDetail(custom))

	empty := service.Outcome{Status: service.StatusEmpty, Err: domain.ErrNoUsableItems}
	assert.Equal(t, "no item with usable artwork", outcomeDetail(empty))

	assert.Equal(t, "on the exclude list", outcomeDetail(service.Outcome{Status: service.StatusExcluded}))
}

func TestLibraryRow(t *testing.T) {
	col := domain.Collection{ID: "11", Name: "Movies", Type: "movies"}

	row := libraryRow("home", col, domain.Title{Zh: "电影", En: "MOVIES"}, []string{"home-11"})
	assert.Equal(t, []string{"home", "Movies", "movies", "home-11", "电影 / MOVIES", "excluded"}, row)

	row = libraryRow("home", domain.Collection{ID: "12", Name: "Mixed"}, domain.Title{Zh: "Mixed"}, nil)
	assert.Equal(t, []string{"home", "Mixed", "mixed", "home-12", "Mixed", ""}, row)
}

func TestUpsertServer(t *testing.T) {
	servers := []adapter.ServerConfig{{Name: "home", URL: "http://old"}}

	servers = upsertServer(servers, adapter.ServerConfig{Name: "home", URL: "http://new"})
	require.Len(t, servers, 1)
	assert.Equal(t, "http://new", servers[0].URL)

	servers = upsertServer(servers, adapter.ServerConfig{Name: "backup"})
	assert.Len(t, servers, 2)
}

func TestDefaultServerName(t *testing.T) {
	assert.Equal(t, "living-room", defaultServerName(source.ServerInfo{Type: adapter.SourceTypeEmby, Name: "Living Room"}))
	assert.Equal(t, "jellyfin", defaultServerName(source.ServerInfo{Type: adapter.SourceTypeJellyfin}))
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  http://jf:8096 \nlast"))

	line, err := prompt(r, &out, "URL: ")
	require.NoError(t, err)
	assert.Equal(t, "http://jf:8096", line)
	assert.Equal(t, "URL: ", out.String())

	line, err = prompt(r, &out, "Name: ")
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = prompt(r, &out, "More: ")
	assert.Error(t, err)
}

func TestWarnUnmatchedTitlesUsesWholeCatalog(t *testing.T) {
	r := titles.NewResolver("Movies:\n  - 电影\n  - Movies\nMusic:\n  - 音乐\n  - Music\nAnme:\n  - 动漫\n  - Anime\n", nil)
	res := service.Result{
		Catalog: []string{"Movies", "Music", "Anime"},
		Outcomes: []service.Outcome{
			{Server: "home", Collection: domain.Collection{ID: "1", Name: "Movies"}, Status: service.StatusUpdated},
		},
	}

	var buf bytes.Buffer
	warnUnmatchedTitles(&buf, r, res)
	assert.NotContains(t, buf.String(), `"Music"`, "libraries filtered out of the run are still known")
	assert.Contains(t, buf.String(), `title entry "Anme" matches no library (did you mean "Anime"?)`)

	buf.Reset()
	warnUnmatchedTitles(&buf, r, service.Result{})
	assert.Empty(t, buf.String())
}
