// Package aggregate holds incoming items in a pending-topic map, letting
// near-duplicate coverage of one story accumulate for a maturation window
// before it is clustered into publishable posts.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"vestnik/internal/config"
	"vestnik/internal/feed"
	"vestnik/internal/metrics"
	"vestnik/internal/normalize"
)

// Descriptions merged from a cluster stop growing past this length.
const descriptionMergeLimit = 1800

// PendingTopic accumulates all coverage of one story, keyed by the first
// item's normalized URL. FirstSeenAt never changes after creation; it
// anchors the maturation window.
type PendingTopic struct {
	Title       string
	URL         string
	Description string
	Source      string
	Topic       string
	Region      string

	Sources    []string
	Categories []string
	Images     []string

	PublishedAt   time.Time
	FirstSeenAt   time.Time
	PriorityScore float64
	IsBreaking    bool

	CombinedItems []feed.NewsItem
}

// MergedPost is a cluster of matured topics flattened into one publishable
// unit. With TopicSize 1 it is a plain passthrough of a single topic.
type MergedPost struct {
	Title         string
	URL           string
	AlternateURLs []string
	Description   string
	Topic         string
	Region        string

	Sources    []string
	Categories []string
	Images     []string

	PublishedAt   time.Time
	PriorityScore float64
	IsBreaking    bool

	TopicSize     int
	CombinedItems []feed.NewsItem
}

// IsMerged reports whether the post folds more than one topic.
func (m *MergedPost) IsMerged() bool { return m.TopicSize > 1 }

// Source renders the attribution line: one outlet, or all of them joined.
func (m *MergedPost) Source() string {
	if len(m.Sources) == 0 {
		return "Unknown"
	}
	return strings.Join(m.Sources, ", ")
}

// BucketKey places the post into a digest section.
func (m *MergedPost) BucketKey() string {
	if m.Topic == "" || m.Region == "" {
		return ""
	}
	return m.Topic + "_" + m.Region
}

// Aggregator owns the pending-topic map. All mutation goes through Add and
// Evict; the caller runs one cycle at a time, so no locking is needed.
type Aggregator struct {
	pending map[string]*PendingTopic
	order   []string

	stopWords         map[string]struct{}
	mergeSimilarity   float64
	clusterSimilarity float64
	publishDelay      time.Duration
	breakingBypass    bool
}

func New(cfg *config.Config) *Aggregator {
	return &Aggregator{
		pending:           make(map[string]*PendingTopic),
		stopWords:         cfg.StopWordSet(),
		mergeSimilarity:   cfg.PendingMergeSimilarity,
		clusterSimilarity: cfg.ClusterSimilarity,
		publishDelay:      cfg.PublishDelay(),
		breakingBypass:    cfg.Breaking.Enabled,
	}
}

// Len returns the number of topics currently pending.
func (a *Aggregator) Len() int { return len(a.pending) }

// Add folds a batch of classified, scored items into the pending map.
func (a *Aggregator) Add(items []feed.NewsItem, now time.Time) {
	for i := range items {
		a.addOne(&items[i], now)
	}
	metrics.PendingTopics.Set(float64(len(a.pending)))
}

func (a *Aggregator) addOne(item *feed.NewsItem, now time.Time) {
	key := item.NormalizedURL()

	if existing, ok := a.pending[key]; ok {
		a.merge(existing, item)
		return
	}

	// No URL match: the same story may already be pending under another
	// outlet's URL.
	tokens := a.titleTokens(item.Title)
	for _, pendingKey := range a.order {
		pending := a.pending[pendingKey]
		if normalize.Similarity(tokens, a.titleTokens(pending.Title)) >= a.mergeSimilarity {
			a.merge(pending, item)
			return
		}
	}

	a.pending[key] = &PendingTopic{
		Title:         item.Title,
		URL:           item.URL,
		Description:   item.Description,
		Source:        item.Source,
		Topic:         item.Topic,
		Region:        item.Region,
		Sources:       []string{item.Source},
		Categories:    appendUnique(nil, item.Categories...),
		Images:        appendUnique(nil, item.Images...),
		PublishedAt:   item.PublishedAt,
		FirstSeenAt:   now,
		PriorityScore: item.PriorityScore,
		IsBreaking:    item.IsBreaking,
		CombinedItems: []feed.NewsItem{*item},
	}
	a.order = append(a.order, key)
}

func (a *Aggregator) merge(topic *PendingTopic, item *feed.NewsItem) {
	topic.Categories = appendUnique(topic.Categories, item.Categories...)
	topic.Sources = appendUnique(topic.Sources, item.Source)
	topic.Images = appendUnique(topic.Images, item.Images...)
	if len(item.Description) > len(topic.Description) {
		topic.Description = item.Description
	}
	if item.PublishedAt.After(topic.PublishedAt) {
		topic.PublishedAt = item.PublishedAt
	}
	if item.PriorityScore > topic.PriorityScore {
		topic.PriorityScore = item.PriorityScore
	}
	topic.IsBreaking = topic.IsBreaking || item.IsBreaking
	topic.CombinedItems = append(topic.CombinedItems, *item)
}

// Matured returns topics whose maturation window elapsed, plus breaking
// topics immediately when the bypass is enabled. Topics stay pending until
// explicitly evicted after a successful publish.
func (a *Aggregator) Matured(now time.Time) []*PendingTopic {
	var out []*PendingTopic
	for _, key := range a.order {
		topic := a.pending[key]
		if now.Sub(topic.FirstSeenAt) >= a.publishDelay {
			out = append(out, topic)
			continue
		}
		if a.breakingBypass && topic.IsBreaking {
			out = append(out, topic)
		}
	}
	return out
}

// Cluster joins matured topics whose titles overlap into merged posts.
// Single-link, first-fit: a topic lands in the first cluster where it
// matches any member.
func (a *Aggregator) Cluster(matured []*PendingTopic) []MergedPost {
	var clusters [][]*PendingTopic

	for _, topic := range matured {
		tokens := a.titleTokens(topic.Title)
		placed := false
		for i, cluster := range clusters {
			for _, member := range cluster {
				if normalize.Similarity(tokens, a.titleTokens(member.Title)) >= a.clusterSimilarity {
					clusters[i] = append(clusters[i], topic)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*PendingTopic{topic})
		}
	}

	merged := make([]MergedPost, 0, len(clusters))
	for _, cluster := range clusters {
		merged = append(merged, a.mergeCluster(cluster))
	}
	return merged
}

func (a *Aggregator) mergeCluster(cluster []*PendingTopic) MergedPost {
	first := cluster[0]
	if len(cluster) == 1 {
		return MergedPost{
			Title:         first.Title,
			URL:           first.URL,
			Description:   first.Description,
			Topic:         first.Topic,
			Region:        first.Region,
			Sources:       first.Sources,
			Categories:    first.Categories,
			Images:        first.Images,
			PublishedAt:   first.PublishedAt,
			PriorityScore: first.PriorityScore,
			IsBreaking:    first.IsBreaking,
			TopicSize:     1,
			CombinedItems: first.CombinedItems,
		}
	}

	post := MergedPost{
		Title:     first.Title,
		Topic:     first.Topic,
		Region:    first.Region,
		TopicSize: len(cluster),
	}

	var (
		urls         []string
		descriptions []string
	)
	for _, topic := range cluster {
		urls = appendUnique(urls, topic.URL)
		post.Categories = appendUnique(post.Categories, topic.Categories...)
		post.Sources = appendUnique(post.Sources, topic.Sources...)
		post.Images = appendUnique(post.Images, topic.Images...)
		if topic.Description != "" {
			descriptions = append(descriptions, topic.Description)
		}
		if topic.PublishedAt.After(post.PublishedAt) {
			post.PublishedAt = topic.PublishedAt
		}
		if topic.PriorityScore > post.PriorityScore {
			post.PriorityScore = topic.PriorityScore
		}
		post.IsBreaking = post.IsBreaking || topic.IsBreaking
		post.CombinedItems = append(post.CombinedItems, topic.CombinedItems...)
	}

	post.URL = urls[0]
	post.AlternateURLs = urls[1:]
	post.Description = mergeDescriptions(descriptions)
	return post
}

// mergeDescriptions joins the longest distinct descriptions until the cap.
func mergeDescriptions(descriptions []string) string {
	sort.SliceStable(descriptions, func(i, j int) bool {
		return len(descriptions[i]) > len(descriptions[j])
	})

	var parts []string
	total := 0
	for _, d := range descriptions {
		duplicate := false
		for _, p := range parts {
			if p == d {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		parts = append(parts, d)
		total += len(d)
		if total > descriptionMergeLimit {
			break
		}
	}
	return strings.Join(parts, "\n\n")
}

// Evict removes every topic folded into the post from the pending map.
// Called only after the post was actually delivered.
func (a *Aggregator) Evict(post *MergedPost) {
	for i := range post.CombinedItems {
		key := post.CombinedItems[i].NormalizedURL()
		if _, ok := a.pending[key]; !ok {
			continue
		}
		delete(a.pending, key)
		for j, orderedKey := range a.order {
			if orderedKey == key {
				a.order = append(a.order[:j], a.order[j+1:]...)
				break
			}
		}
	}
	metrics.PendingTopics.Set(float64(len(a.pending)))
}

func (a *Aggregator) titleTokens(title string) map[string]struct{} {
	return normalize.TitleTokens(title, a.stopWords)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
