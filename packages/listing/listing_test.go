package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"erddap-mirror/packages/domain"
	"erddap-mirror/packages/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexPage(rows string) string {
	return fmt.Sprintf(`<html><body><table>
<tr><th>Icon</th><th>Name</th><th>Last modified</th></tr>
<tr><td><img src="/icons/back.gif" alt="[PARENTDIR]"></td><td><a href="../">Parent Directory</a></td><td></td></tr>
%s
</table></body></html>`, rows)
}

func fileRow(name string) string {
	return fmt.Sprintf(`<tr><td><img src="/icons/binary.gif" alt="[BIN]"></td><td><a rel="bookmark" href="%s">%s</a></td><td>12</td></tr>`, name, name)
}

func dirRow(name string) string {
	return fmt.Sprintf(`<tr><td><img src="/icons/folder.gif" alt="[DIR]"></td><td><a href="%s/">%s</a></td><td>-</td></tr>`, name, name)
}

func TestParse(t *testing.T) {
	page := indexPage(fileRow("a.nc") + dirRow("sub") + fileRow("b.nc"))

	nodes, err := Parse([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, []domain.CrawlNode{
		{Name: "a.nc", Kind: domain.NodeFile},
		{Name: "sub/", Kind: domain.NodeDirectory},
		{Name: "b.nc", Kind: domain.NodeFile},
	}, nodes)
}

func TestParseSkipsRowsWithoutIcon(t *testing.T) {
	page := indexPage(`<tr><td></td><td><a href="nope.nc">nope.nc</a></td><td></td></tr>`)

	nodes, err := Parse([]byte(page))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestWalkDepthFirstFilesBeforeSubfolders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/demo/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/demo/":
			fmt.Fprint(w, indexPage(fileRow("a.nc")+dirRow("sub")+fileRow("b.nc")))
		case "/files/demo/sub/":
			fmt.Fprint(w, indexPage(fileRow("deep.nc")+dirRow("inner")))
		case "/files/demo/sub/inner/":
			fmt.Fprint(w, indexPage(fileRow("bottom.nc")))
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	root := t.TempDir()
	crawler := New(fetch.New(0, nil), nil)

	var visited []string
	var paths []string
	crawler.Walk(context.Background(), server.URL+"/files/demo/", root,
		func(fileURL, localPath string) {
			visited = append(visited, fileURL)
			paths = append(paths, localPath)
		},
		func(listingURL string, err error) {
			t.Fatalf("unexpected listing failure for %s: %v", listingURL, err)
		})

	// Files of a level come before anything beneath its subfolders.
	assert.Equal(t, []string{
		server.URL + "/files/demo/a.nc",
		server.URL + "/files/demo/b.nc",
		server.URL + "/files/demo/sub/deep.nc",
		server.URL + "/files/demo/sub/inner/bottom.nc",
	}, visited)

	assert.Equal(t, []string{
		filepath.Join(root, "a.nc"),
		filepath.Join(root, "b.nc"),
		filepath.Join(root, "sub", "deep.nc"),
		filepath.Join(root, "sub", "inner", "bottom.nc"),
	}, paths)

	// Local directories exist before their files would be written.
	for _, dir := range []string{root, filepath.Join(root, "sub"), filepath.Join(root, "sub", "inner")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWalkListingFailureAbortsSubtreeOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/demo/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/demo/":
			fmt.Fprint(w, indexPage(dirRow("bad")+dirRow("good")))
		case "/files/demo/good/":
			fmt.Fprint(w, indexPage(fileRow("ok.nc")))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	crawler := New(fetch.New(0, nil), nil)

	var visited, failed []string
	crawler.Walk(context.Background(), server.URL+"/files/demo/", t.TempDir(),
		func(fileURL, localPath string) { visited = append(visited, fileURL) },
		func(listingURL string, err error) { failed = append(failed, listingURL) })

	// One aggregated failure for the bad subtree, sibling crawled normally.
	assert.Equal(t, []string{server.URL + "/files/demo/bad/"}, failed)
	assert.Equal(t, []string{server.URL + "/files/demo/good/ok.nc"}, visited)
}

func TestWalkIsRestartable(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, indexPage(fileRow("a.nc")))
	}))
	defer server.Close()

	crawler := New(fetch.New(0, nil), nil)
	for i := 0; i < 2; i++ {
		var visited []string
		crawler.Walk(context.Background(), server.URL+"/files/demo/", t.TempDir(),
			func(fileURL, localPath string) { visited = append(visited, fileURL) },
			func(listingURL string, err error) { t.Fatalf("unexpected failure: %v", err) })
		assert.Len(t, visited, 1)
	}
	assert.Equal(t, 2, requests)
}
