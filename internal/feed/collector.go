package feed

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"vestnik/internal/config"
	"vestnik/internal/logger"
	"vestnik/internal/metrics"
	"vestnik/internal/retry"
)

// PublishedChecker answers whether a story was already posted. The store
// implements it.
type PublishedChecker interface {
	IsPublished(title, url, source, description string) (bool, error)
}

// Collector fetches all configured sources concurrently and returns their
// items sorted newest first.
type Collector struct {
	sources        []config.Source
	client         *http.Client
	parser         *gofeed.Parser
	perSourceLimit int
	retryCfg       retry.RetryConfig
}

func NewCollector(cfg *config.Config) *Collector {
	return &Collector{
		sources: cfg.Sources,
		client: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		parser:         gofeed.NewParser(),
		perSourceLimit: cfg.PerSourceLimit,
		retryCfg: retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay(),
			Backoff:     true,
		},
	}
}

// CollectAll fans out one fetch per source and gathers the results. A failed
// source is logged and skipped, never fails the cycle.
func (c *Collector) CollectAll(ctx context.Context) []NewsItem {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allNews []NewsItem
	)

	for _, source := range c.sources {
		wg.Add(1)
		go func(src config.Source) {
			defer wg.Done()
			items, err := c.fetchSource(ctx, src)
			if err != nil {
				logger.Warn("source fetch failed", "source", src.Name, "error", err)
				metrics.FeedErrors.WithLabelValues(src.Name).Inc()
				return
			}
			metrics.FeedItems.WithLabelValues(src.Name).Add(float64(len(items)))
			mu.Lock()
			allNews = append(allNews, items...)
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	sort.Slice(allNews, func(i, j int) bool {
		return allNews[i].PublishedAt.After(allNews[j].PublishedAt)
	})

	logger.Info("collected news", "count", len(allNews), "sources", len(c.sources))
	return allNews
}

// FilterNew drops items the store has already seen.
func (c *Collector) FilterNew(items []NewsItem, checker PublishedChecker) []NewsItem {
	fresh := make([]NewsItem, 0, len(items))
	for _, item := range items {
		published, err := checker.IsPublished(item.Title, item.URL, item.Source, item.Description)
		if err != nil {
			logger.Error("dedup check failed", "url", item.URL, "error", err)
			continue
		}
		if !published {
			fresh = append(fresh, item)
		}
	}
	logger.Debug("filtered new items", "total", len(items), "new", len(fresh))
	return fresh
}

func (c *Collector) fetchSource(ctx context.Context, src config.Source) ([]NewsItem, error) {
	var parsed *gofeed.Feed

	err := retry.WithRetry(ctx, c.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", "vestnik/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("http %d from %s", resp.StatusCode, src.Name)
			// Client errors will not heal on retry, except rate limiting.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		parsed, err = c.parser.ParseString(string(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("parse %s: %w", src.Name, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.itemsFromFeed(parsed, src), nil
}

func (c *Collector) itemsFromFeed(parsedFeed *gofeed.Feed, src config.Source) []NewsItem {
	limit := c.perSourceLimit
	if limit <= 0 || limit > len(parsedFeed.Items) {
		limit = len(parsedFeed.Items)
	}

	items := make([]NewsItem, 0, limit)
	for _, entry := range parsedFeed.Items[:limit] {
		title := strings.TrimSpace(html.UnescapeString(entry.Title))
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		description := entry.Description
		if description == "" {
			description = entry.Content
		}
		images := extractImages(entry, description)
		description = strings.TrimSpace(stripHTML(description))

		publishedAt := time.Now()
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			publishedAt = *entry.UpdatedParsed
		}

		items = append(items, NewsItem{
			Title:       title,
			URL:         link,
			Description: description,
			Source:      src.Name,
			Category:    src.Category,
			PublishedAt: publishedAt,
			Images:      images,
		})
	}
	return items
}

// stripHTML flattens markup to plain text and decodes entities.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") && !strings.Contains(s, "&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return html.UnescapeString(s)
	}
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}

// extractImages pulls candidate image URLs out of the feed entry: the item
// image, enclosures, media extensions and inline <img> tags.
func extractImages(entry *gofeed.Item, rawDescription string) []string {
	var urls []string

	if entry.Image != nil && entry.Image.URL != "" {
		urls = append(urls, entry.Image.URL)
	}
	for _, enc := range entry.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			urls = append(urls, enc.URL)
		}
	}
	if media, ok := entry.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			if u := ext.Attrs["url"]; u != "" {
				urls = append(urls, u)
			}
		}
		for _, ext := range media["thumbnail"] {
			if u := ext.Attrs["url"]; u != "" {
				urls = append(urls, u)
			}
		}
	}
	if strings.Contains(rawDescription, "<img") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawDescription)); err == nil {
			doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
				if src, ok := sel.Attr("src"); ok {
					urls = append(urls, src)
				}
			})
		}
	}

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
