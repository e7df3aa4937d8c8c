package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/model"
)

// Mode selects single-page vs same-origin BFS crawling.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeCrawl  Mode = "crawl"
)

// Request describes one crawl invocation (spec §4.F).
type Request struct {
	URL          string
	CollectionID string
	Mode         Mode
	MaxPages     int
	TitlePrefix  string
}

// Discovered is one page that was fetched and handed off to ingestion.
type Discovered struct {
	DocumentID string
	URL        string
	Title      string
}

// store is the subset of storage.Store the crawler needs to create
// documents for fetched pages.
type store interface {
	CreateDocument(ctx context.Context, d model.Document) (model.Document, error)
	SetDocumentFilePath(ctx context.Context, id, path string) error
}

// fileWriter is the subset of storage.FileGateway the crawler needs.
type fileWriter interface {
	Save(collectionID, documentID, ext string, data []byte) (string, error)
}

// ingestor is the subset of ingest.Orchestrator the crawler hands pages off
// to; it runs asynchronously so a failure inside it never fails the crawl.
type ingestor interface {
	Ingest(ctx context.Context, documentID string) error
}

// Crawler runs the BFS crawl described in spec §4.F: single-worker,
// politeness-delayed, same-origin link discovery bounded by MaxPages.
type Crawler struct {
	fetcher *Fetcher
	store   store
	files   fileWriter
	ingest  ingestor
	log     *zap.Logger
}

// New builds a Crawler. A nil logger falls back to zap.NewNop().
func New(fetcher *Fetcher, s store, files fileWriter, ing ingestor, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, store: s, files: files, ingest: ing, log: logger}
}

// Run executes req and returns every page it successfully fetched and
// queued for ingestion.
func (c *Crawler) Run(ctx context.Context, req Request) ([]Discovered, error) {
	start, err := NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	if err := GuardSSRF(start); err != nil {
		return nil, err
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	queue := []string{start}
	visited := map[string]bool{}
	var out []Discovered

	for len(queue) > 0 && len(visited) < maxPages {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		if len(visited) > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(politenessDelay):
			}
		}
		visited[next] = true

		page, err := c.fetcher.Fetch(ctx, next)
		if err != nil {
			c.log.Warn("crawl page fetch failed", zap.String("url", next), zap.Error(err))
			continue
		}
		if page.Markdown == "" {
			continue
		}

		title := page.Title
		if title == "" {
			title = inferTitle(next, req.TitlePrefix)
		}

		doc, err := c.store.CreateDocument(ctx, model.Document{
			CollectionID: req.CollectionID,
			Title:        title,
			ContentType:  "text/markdown",
			FileSize:     int64(len(page.Markdown)),
			SourceURL:    &page.URL,
			Metadata:     model.Metadata{},
		})
		if err != nil {
			c.log.Warn("crawl document create failed", zap.String("url", next), zap.Error(err))
			continue
		}

		path, err := c.files.Save(req.CollectionID, doc.ID, ".md", []byte(page.Markdown))
		if err != nil {
			c.log.Warn("crawl file save failed", zap.String("url", next), zap.Error(err))
			continue
		}
		if err := c.store.SetDocumentFilePath(ctx, doc.ID, path); err != nil {
			c.log.Warn("crawl file path persist failed", zap.String("url", next), zap.Error(err))
			continue
		}

		out = append(out, Discovered{DocumentID: doc.ID, URL: page.URL, Title: title})

		go func(docID string) {
			if err := c.ingest.Ingest(context.WithoutCancel(ctx), docID); err != nil {
				c.log.Error("async ingest after crawl failed", zap.String("document_id", docID), zap.Error(err))
			}
		}(doc.ID)

		if req.Mode == ModeCrawl {
			for _, link := range page.Links {
				if !visited[link] && len(visited)+len(queue) < maxPages {
					queue = append(queue, link)
				}
			}
		}
	}

	return out, nil
}

func inferTitle(rawURL, prefix string) string {
	u, err := url.Parse(rawURL)
	host := ""
	if err == nil {
		host = u.Host
	}
	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, host)
	}
	return host
}
