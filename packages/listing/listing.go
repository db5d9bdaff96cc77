// Package listing crawls the HTML directory indexes an ERDDAP server
// generates under /files/. The served tree is a static generated index, so it
// is assumed acyclic; no cycle detection is done.
package listing

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"erddap-mirror/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

const parentDirLabel = "Parent Directory"

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FileFunc is called once per discovered file, with the file's full URL and
// the local path it should be saved under. Its error is the caller's own
// business; the crawl continues either way.
type FileFunc func(fileURL, localPath string)

// FailFunc is called once per listing page that could not be fetched or
// parsed. The page's subtree is abandoned; sibling subtrees continue.
type FailFunc func(listingURL string, err error)

type Crawler struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func New(fetcher Fetcher, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{fetcher: fetcher, logger: logger}
}

type frame struct {
	listingURL string
	localDir   string
}

// Walk discovers the tree under listingURL depth-first and lazily: nodes are
// handed to visit as each page is parsed, never buffered whole. Files on a
// page are visited before any of that page's subfolders are descended into,
// in page order. Every directory gets its local counterpart created before
// files are written into it. Walk is restartable; re-invoking re-fetches and
// re-parses everything.
func (c *Crawler) Walk(ctx context.Context, listingURL, localDir string, visit FileFunc, fail FailFunc) {
	stack := []frame{{listingURL: ensureSlash(listingURL), localDir: localDir}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := os.MkdirAll(f.localDir, 0750); err != nil {
			fail(f.listingURL, err)
			continue
		}

		body, err := c.fetcher.Fetch(ctx, f.listingURL)
		if err != nil {
			c.logger.Error("Failed to fetch listing page", "url", f.listingURL, "error", err)
			fail(f.listingURL, err)
			continue
		}

		nodes, err := Parse(body)
		if err != nil {
			fail(f.listingURL, err)
			continue
		}

		var dirs []domain.CrawlNode
		for _, node := range nodes {
			switch node.Kind {
			case domain.NodeFile:
				visit(f.listingURL+node.Name, filepath.Join(f.localDir, node.Name))
			case domain.NodeDirectory:
				dirs = append(dirs, node)
			}
		}

		// LIFO stack: push in reverse so the first subfolder on the page is
		// descended into first.
		for i := len(dirs) - 1; i >= 0; i-- {
			name := dirs[i].Name
			stack = append(stack, frame{
				listingURL: f.listingURL + ensureSlash(name),
				localDir:   filepath.Join(f.localDir, strings.TrimSuffix(name, "/")),
			})
		}
	}
}

// Parse extracts the file and directory entries of one index page, in page
// order. A row counts only when its first cell holds an icon image; the row
// is a file when its link carries rel="bookmark", a directory when the link
// text is not the go-up label.
func Parse(page []byte) ([]domain.CrawlNode, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var nodes []domain.CrawlNode
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		if cells.Eq(0).Find("img").Length() == 0 {
			return
		}
		link := cells.Eq(1).Find("a").First()
		href, exists := link.Attr("href")
		if !exists || href == "" {
			return
		}

		if rel, _ := link.Attr("rel"); strings.Contains(rel, "bookmark") {
			nodes = append(nodes, domain.CrawlNode{Name: href, Kind: domain.NodeFile})
			return
		}
		if strings.TrimSpace(link.Text()) != parentDirLabel {
			nodes = append(nodes, domain.CrawlNode{Name: href, Kind: domain.NodeDirectory})
		}
	})
	return nodes, nil
}

func ensureSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
