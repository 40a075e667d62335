// Package app wires the collection, filtering, aggregation and delivery
// pipeline into the running bot.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vestnik/internal/aggregate"
	"vestnik/internal/classify"
	"vestnik/internal/config"
	"vestnik/internal/currency"
	"vestnik/internal/digest"
	"vestnik/internal/feed"
	"vestnik/internal/filter"
	"vestnik/internal/logger"
	"vestnik/internal/metrics"
	"vestnik/internal/normalize"
	"vestnik/internal/post"
	"vestnik/internal/score"
	"vestnik/internal/storage"
)

const (
	relatedLookbackHours = 24
	relatedCandidates    = 3
	relatedCommonTokens  = 2

	photoCaptionLimit = 1024

	currencyMorning = "morning"
	currencyEvening = "evening"

	digestTitle           = "Вечерняя сводка"
	secondWaveTitle       = "Вечерняя сводка — продолжение"
	breakingDigestTitle   = "⚡ Срочные новости"
	breakingDigestMaxSize = 10
)

// Sender delivers rendered posts to the channel.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, photoURL, caption string) error
}

// CycleResult summarizes one collection cycle.
type CycleResult struct {
	Collected int
	Fresh     int
	Accepted  int
	Pending   int
	Published int
	Breaking  int
}

type Bot struct {
	cfg        *config.Config
	store      *storage.Store
	sender     Sender
	collector  *feed.Collector
	filters    *filter.Chain
	classifier *classify.Classifier
	scorer     *score.Scorer
	aggregator *aggregate.Aggregator
	formatter  *post.Formatter
	assembler  *digest.Assembler
	limiter    *score.BreakingLimiter
	rates      *currency.Fetcher

	stopWords map[string]struct{}

	// Breaking posts held back by the hourly cap, drained as one digest.
	deferredBreaking []aggregate.MergedPost
	// Digest overflow waiting for the second wave.
	secondWavePosts []aggregate.MergedPost

	now func() time.Time
}

func New(cfg *config.Config, store *storage.Store, sender Sender) *Bot {
	formatter := post.NewFormatter(cfg.MaxPostLength)
	return &Bot{
		cfg:        cfg,
		store:      store,
		sender:     sender,
		collector:  feed.NewCollector(cfg),
		filters:    filter.NewChain(cfg),
		classifier: classify.New(cfg),
		scorer:     score.New(cfg),
		aggregator: aggregate.New(cfg),
		formatter:  formatter,
		assembler:  digest.NewAssembler(formatter, cfg.Digest.BucketCap),
		limiter:    score.NewBreakingLimiter(cfg.Breaking.MaxPerHour),
		rates:      currency.NewFetcher(),
		stopWords:  cfg.StopWordSet(),
		now:        time.Now,
	}
}

// ProcessCycle runs one full collection pass: fetch, gate, classify, filter,
// score, aggregate, and publish whatever has matured.
func (b *Bot) ProcessCycle(ctx context.Context) (CycleResult, error) {
	started := b.now()
	defer func() {
		metrics.CycleDuration.Observe(b.now().Sub(started).Seconds())
	}()

	items := b.collector.CollectAll(ctx)
	res, err := b.processItems(ctx, items, b.now())
	if err != nil {
		return res, err
	}

	if b.cfg.DaysToKeepHistory > 0 {
		if _, err := b.store.Cleanup(b.cfg.DaysToKeepHistory); err != nil {
			logger.Error("history cleanup failed", "error", err)
		}
	}
	return res, nil
}

func (b *Bot) processItems(ctx context.Context, items []feed.NewsItem, now time.Time) (CycleResult, error) {
	res := CycleResult{Collected: len(items)}

	fresh := b.collector.FilterNew(items, b.store)
	res.Fresh = len(fresh)

	classified := fresh[:0]
	for i := range fresh {
		if b.classifier.Classify(&fresh[i]) {
			classified = append(classified, fresh[i])
		}
	}

	accepted := b.filters.Apply(classified)
	accepted = dedupeBatch(accepted)
	res.Accepted = len(accepted)

	b.scorer.Apply(accepted, now)
	b.aggregator.Add(accepted, now)
	res.Pending = b.aggregator.Len()

	b.drainDeferredBreaking(ctx, now)

	matured := b.aggregator.Matured(now)
	posts := b.aggregator.Cluster(matured)
	sortForPublish(posts)

	logger.Info("cycle collected",
		"items", res.Collected, "fresh", res.Fresh,
		"accepted", res.Accepted, "pending", res.Pending,
		"matured", len(posts))

	for i := range posts {
		p := &posts[i]

		if p.IsBreaking && !b.limiter.Allow(now) {
			metrics.BreakingSuppressed.Inc()
			logger.Info("breaking post deferred by hourly cap", "title", p.Title)
			b.deferredBreaking = append(b.deferredBreaking, *p)
			b.aggregator.Evict(p)
			continue
		}

		if err := b.publishPost(ctx, p); err != nil {
			// Stays pending, retried next cycle.
			logger.Error("publish failed, keeping pending", "title", p.Title, "error", err)
			continue
		}

		b.aggregator.Evict(p)
		res.Published++
		if p.IsBreaking {
			res.Breaking++
		}

		if err := b.pause(ctx); err != nil {
			return res, err
		}
	}

	return res, nil
}

func (b *Bot) publishPost(ctx context.Context, p *aggregate.MergedPost) error {
	related := b.findRelated(p)

	text := b.formatter.FormatPost(p, related)
	text = post.AddCategoryTag(text, p.Categories)

	var err error
	if len(p.Images) > 0 && len(text) <= photoCaptionLimit {
		err = b.sender.SendPhoto(ctx, p.Images[0], text)
	} else {
		err = b.sender.SendMessage(ctx, text)
	}
	if err != nil {
		return err
	}

	kind := "post"
	if p.IsBreaking {
		kind = "breaking"
	}
	metrics.PostsSent.WithLabelValues(kind).Inc()

	b.persistPost(p, related)
	return nil
}

// persistPost records every combined story so the dedup gate catches late
// republications from other sources.
func (b *Bot) persistPost(p *aggregate.MergedPost, related *storage.RecentNews) {
	for i := range p.CombinedItems {
		item := &p.CombinedItems[i]
		id, err := b.store.SaveNews(item.Title, item.URL, item.Source, item.Category,
			item.Description, item.PublishedAt)
		if err != nil {
			logger.Error("save published story failed", "url", item.URL, "error", err)
			continue
		}
		metrics.ItemsPublished.Inc()
		if related != nil {
			if err := b.store.LinkRelated(id, related.ID); err != nil {
				logger.Error("link related failed", "id", id, "error", err)
			}
		}
	}
}

// findRelated searches recently published stories of the same category for
// one sharing enough title tokens with this post.
func (b *Bot) findRelated(p *aggregate.MergedPost) *storage.RecentNews {
	if p.IsMerged() || len(p.CombinedItems) == 0 {
		return nil
	}
	category := p.CombinedItems[0].Category
	if category == "" {
		return nil
	}

	recent, err := b.store.RecentByCategory(category, relatedLookbackHours, relatedCandidates)
	if err != nil {
		logger.Error("related lookup failed", "category", category, "error", err)
		return nil
	}

	tokens := normalize.TitleTokens(p.Title, b.stopWords)
	postURL := normalize.URL(p.URL)
	for i := range recent {
		if normalize.URL(recent[i].URL) == postURL {
			continue
		}
		common := 0
		for token := range normalize.TitleTokens(recent[i].Title, b.stopWords) {
			if _, ok := tokens[token]; ok {
				common++
			}
		}
		if common >= relatedCommonTokens {
			return &recent[i]
		}
	}
	return nil
}

// drainDeferredBreaking flushes rate-limited breaking posts as one compact
// digest once an hourly slot frees up.
func (b *Bot) drainDeferredBreaking(ctx context.Context, now time.Time) {
	if len(b.deferredBreaking) == 0 || !b.limiter.Allow(now) {
		return
	}

	batch := b.deferredBreaking
	if len(batch) > breakingDigestMaxSize {
		batch = batch[:breakingDigestMaxSize]
	}

	lines := []string{fmt.Sprintf("*%s*", breakingDigestTitle), ""}
	for i := range batch {
		lines = append(lines, "• "+post.FactLine(batch[i].Title, batch[i].Description))
	}

	for _, chunk := range b.formatter.ChunkLines(breakingDigestTitle, lines) {
		if err := b.sender.SendMessage(ctx, chunk); err != nil {
			logger.Error("breaking digest send failed", "error", err)
			return
		}
	}
	metrics.PostsSent.WithLabelValues("breaking").Inc()

	for i := range batch {
		b.persistPost(&batch[i], nil)
	}
	b.deferredBreaking = b.deferredBreaking[len(batch):]
}

// PublishDigest collects the day's news and posts the bucketed evening
// summary; overflow is kept for the second wave.
func (b *Bot) PublishDigest(ctx context.Context) (digest.Result, error) {
	items := b.collector.CollectAll(ctx)
	return b.publishDigestItems(ctx, items, b.now())
}

func (b *Bot) publishDigestItems(ctx context.Context, items []feed.NewsItem, now time.Time) (digest.Result, error) {
	fresh := b.collector.FilterNew(items, b.store)

	classified := fresh[:0]
	for i := range fresh {
		if b.classifier.Classify(&fresh[i]) {
			classified = append(classified, fresh[i])
		}
	}
	accepted := dedupeBatch(b.filters.Apply(classified))
	b.scorer.Apply(accepted, now)

	cutoff := now.Add(-time.Duration(b.cfg.Digest.LookbackHours) * time.Hour)
	var posts []aggregate.MergedPost
	for i := range accepted {
		if accepted[i].PublishedAt.Before(cutoff) {
			continue
		}
		posts = append(posts, postFromItem(&accepted[i]))
	}

	msk := now.In(b.cfg.Digest.Location())
	result := b.assembler.Assemble(digestTitle, posts, msk)
	if result.Included == 0 {
		logger.Info("digest skipped, no eligible stories")
		return result, nil
	}

	if err := b.sendDigestChunks(ctx, result); err != nil {
		return result, err
	}

	b.secondWavePosts = result.Overflow
	logger.Info("digest published", "included", result.Included, "overflow", len(result.Overflow))
	return result, nil
}

// PublishSecondWave reassembles the overflow held back from the last digest.
func (b *Bot) PublishSecondWave(ctx context.Context) error {
	if len(b.secondWavePosts) == 0 {
		return nil
	}
	posts := b.secondWavePosts

	msk := b.now().In(b.cfg.Digest.Location())
	result := b.assembler.Assemble(secondWaveTitle, posts, msk)
	if result.Included == 0 {
		b.secondWavePosts = nil
		return nil
	}

	if err := b.sendDigestChunks(ctx, result); err != nil {
		return err
	}
	b.secondWavePosts = nil
	return nil
}

// sendDigestChunks delivers the assembled digest and records only the
// stories that made it into a rendered line. Overflow, unmapped buckets and
// cross-bucket duplicates stay unpublished so they remain eligible for
// other flows.
func (b *Bot) sendDigestChunks(ctx context.Context, result digest.Result) error {
	for _, chunk := range result.Chunks {
		if err := b.sender.SendMessage(ctx, chunk); err != nil {
			return fmt.Errorf("send digest chunk: %w", err)
		}
		if err := b.pause(ctx); err != nil {
			return err
		}
	}
	metrics.PostsSent.WithLabelValues("digest").Inc()

	for i := range result.Rendered {
		b.persistPost(&result.Rendered[i], nil)
	}
	return nil
}

// PublishCurrency posts the exchange-rate summary for the given slot,
// skipping when the slot already ran today or the rates have not moved.
func (b *Bot) PublishCurrency(ctx context.Context, postType string) error {
	now := b.now().In(b.cfg.Digest.Location())

	posted, err := b.store.HasCurrencyPostForDay(now, postType)
	if err != nil {
		return err
	}
	if posted {
		return nil
	}

	rates, err := b.rates.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}

	snap := storage.CurrencySnapshot{
		PostType:    postType,
		USDRUB:      rates.USDRUB,
		EURRUB:      rates.EURRUB,
		CNYRUB:      rates.CNYRUB,
		RUBUSD:      rates.RUBUSD,
		BTCUSD:      rates.BTCUSD,
		BTCRUB:      rates.BTCRUB,
		PublishedAt: now,
	}

	latest, err := b.store.LatestCurrencySnapshot()
	if err != nil {
		return err
	}
	if latest != nil && latest.Hash() == snap.Hash() {
		logger.Info("currency post skipped, rates unchanged", "type", postType)
		return nil
	}

	text := b.formatter.FormatCurrencyPost(snap, now)
	if err := b.sender.SendMessage(ctx, text); err != nil {
		return err
	}
	metrics.PostsSent.WithLabelValues("currency").Inc()

	if _, err := b.store.SaveCurrencySnapshot(snap); err != nil {
		logger.Error("save currency snapshot failed", "error", err)
	}
	return nil
}

// maybePublishCurrency fires the morning or evening slot when the MSK clock
// is inside one.
func (b *Bot) maybePublishCurrency(ctx context.Context) {
	now := b.now().In(b.cfg.Digest.Location())

	var postType string
	switch {
	case now.Hour() >= 8 && now.Hour() < 12:
		postType = currencyMorning
	case now.Hour() >= 19 && now.Hour() < 23:
		postType = currencyEvening
	default:
		return
	}

	if err := b.PublishCurrency(ctx, postType); err != nil {
		logger.Error("currency post failed", "type", postType, "error", err)
	}
}

// Run drives the bot: collection cycles on the check interval, the evening
// digest on the MSK schedule, the second wave after its delay. Returns when
// the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	checkTicker := time.NewTicker(b.cfg.CheckInterval())
	defer checkTicker.Stop()

	digestTimer := time.NewTimer(b.untilNextDigest(b.now()))
	defer digestTimer.Stop()

	secondWave := time.NewTimer(time.Hour)
	if !secondWave.Stop() {
		<-secondWave.C
	}
	defer secondWave.Stop()

	b.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return ctx.Err()

		case <-checkTicker.C:
			b.runCycle(ctx)

		case <-digestTimer.C:
			result, err := b.PublishDigest(ctx)
			if err != nil {
				logger.Error("digest failed", "error", err)
			} else if len(result.Overflow) > 0 {
				secondWave.Reset(b.cfg.Digest.SecondWaveDelay())
			}
			digestTimer.Reset(b.untilNextDigest(b.now()))

		case <-secondWave.C:
			if err := b.PublishSecondWave(ctx); err != nil {
				logger.Error("second wave failed", "error", err)
			}
		}
	}
}

func (b *Bot) runCycle(ctx context.Context) {
	if _, err := b.ProcessCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("cycle failed, cooling down", "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(b.cfg.Cooldown()):
		}
		return
	}
	b.maybePublishCurrency(ctx)
}

// untilNextDigest computes the wait to the next scheduled digest in MSK.
func (b *Bot) untilNextDigest(now time.Time) time.Duration {
	loc := b.cfg.Digest.Location()
	local := now.In(loc)

	target := time.Date(local.Year(), local.Month(), local.Day(),
		b.cfg.Digest.Hour, b.cfg.Digest.Minute, 0, 0, loc)
	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(local)
}

func (b *Bot) pause(ctx context.Context) error {
	delay := b.cfg.PostPause()
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// dedupeBatch drops exact duplicates arriving within one cycle.
func dedupeBatch(items []feed.NewsItem) []feed.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for i := range items {
		hash := items[i].Hash()
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, items[i])
	}
	return out
}

// sortForPublish orders breaking posts first, then by priority.
func sortForPublish(posts []aggregate.MergedPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].IsBreaking != posts[j].IsBreaking {
			return posts[i].IsBreaking
		}
		return posts[i].PriorityScore > posts[j].PriorityScore
	})
}

// postFromItem wraps a single classified item as a publishable unit for the
// digest path.
func postFromItem(item *feed.NewsItem) aggregate.MergedPost {
	return aggregate.MergedPost{
		Title:         item.Title,
		URL:           item.URL,
		Description:   item.Description,
		Topic:         item.Topic,
		Region:        item.Region,
		Sources:       []string{item.Source},
		Categories:    append([]string(nil), item.Categories...),
		Images:        append([]string(nil), item.Images...),
		PublishedAt:   item.PublishedAt,
		PriorityScore: item.PriorityScore,
		IsBreaking:    item.IsBreaking,
		TopicSize:     1,
		CombinedItems: []feed.NewsItem{*item},
	}
}
