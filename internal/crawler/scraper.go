package crawler

import (
	"context"
	"sync"
	"time"

	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/logger"
)

// Scraper walks instances, their NPCs and their spells. Siblings at each level
// run concurrently; the gate inside the fetcher bounds actual requests.
type Scraper struct {
	fetcher   PageFetcher
	extractor Extractor
	site      Site
	log       *logger.Logger
}

// NewScraper creates a scraper
func NewScraper(fetcher PageFetcher, extractor Extractor, site Site) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
		site:      site,
		log:       logger.ForScraper(),
	}
}

// ScrapeAll scrapes raids and dungeons in parallel. Fetch failures only shrink
// the result; a cancelled ctx discards it.
func (s *Scraper) ScrapeAll(ctx context.Context, m *manifest.Manifest) (*model.Document, error) {
	start := time.Now()
	log := s.log.WithContext(ctx)
	log.Info().Int("raids", len(m.Raids)).Int("dungeons", len(m.Dungeons)).Msg("Starting scrape")

	var raids, dungeons map[string]*model.Instance
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		raids = s.scrapeGroup(ctx, model.KindRaid, m.Raids)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		dungeons = s.scrapeGroup(ctx, model.KindDungeon, m.Dungeons)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := model.NewDocument()
	doc.Instances.Raids = raids
	doc.Instances.Dungeons = dungeons

	c := doc.Count()
	log.Info().
		Int("raids", c.Raids).
		Int("dungeons", c.Dungeons).
		Int("npcs", c.Npcs).
		Int("spells", c.Spells).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape finished")
	return doc, nil
}

func (s *Scraper) scrapeGroup(ctx context.Context, kind model.Kind, entries []manifest.Entry) map[string]*model.Instance {
	results := make([]*model.Instance, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		i, entry := i, entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.scrapeInstance(ctx, kind, entry)
		}()
	}
	wg.Wait()

	group := make(map[string]*model.Instance, len(results))
	for _, inst := range results {
		group[inst.Name] = inst
	}
	return group
}

func (s *Scraper) scrapeInstance(ctx context.Context, kind model.Kind, entry manifest.Entry) *model.Instance {
	log := s.log.WithContext(ctx)
	inst := &model.Instance{ID: entry.ID, Name: entry.Name, Kind: kind, Npcs: []*model.Npc{}}

	url := s.site.ZoneURL(entry.ID)
	log.Info().Str("kind", string(kind)).Str("instance", entry.Name).Int("id", entry.ID).Str("url", url).Msg("Scraping instance")

	html := s.fetcher.Fetch(ctx, url)
	if html == "" {
		log.Warn().Str("instance", entry.Name).Msg("Instance page unavailable, keeping it empty")
		return inst
	}

	entries := s.extractor.Npcs(html, kind == model.KindRaid)
	if len(entries) == 0 {
		log.Warn().Str("instance", entry.Name).Msg("No NPCs found")
		return inst
	}
	log.Info().Str("instance", entry.Name).Msgf("Found %d NPCs to process", len(entries))

	npcs := make([]*model.Npc, len(entries))
	var wg sync.WaitGroup
	for i, npcEntry := range entries {
		i, npcEntry := i, npcEntry
		wg.Add(1)
		go func() {
			defer wg.Done()
			npcs[i] = s.scrapeNpc(ctx, npcEntry)
		}()
	}
	wg.Wait()
	inst.Npcs = npcs

	spells := 0
	for _, npc := range npcs {
		spells += len(npc.Spells)
	}
	log.Info().Str("instance", entry.Name).Int("npcs", len(npcs)).Int("spells", spells).Msg("Instance done")
	return inst
}

// scrapeNpc resolves spells and the image of one NPC concurrently
func (s *Scraper) scrapeNpc(ctx context.Context, entry NpcEntry) *model.Npc {
	var spells []*model.Spell
	var imageURL string

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		spells = s.scrapeSpells(ctx, entry.ID)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		html := s.fetcher.Fetch(ctx, s.site.NpcURL(entry.ID, entry.Name))
		imageURL = s.extractor.NpcImage(html, entry.Name)
	}()
	wg.Wait()

	s.log.WithContext(ctx).Info().Str("npc", entry.Name).Int("id", entry.ID).Int("spells", len(spells)).Bool("image", imageURL != "").Msg("NPC done")

	return &model.Npc{
		Name:     entry.Name,
		ID:       entry.ID,
		IsBoss:   entry.IsBoss,
		Spells:   spells,
		ImageURL: imageURL,
	}
}

func (s *Scraper) scrapeSpells(ctx context.Context, npcID int) []*model.Spell {
	html := s.fetcher.Fetch(ctx, s.site.AbilitiesURL(npcID))
	seeds := s.extractor.SpellSeeds(html)
	if len(seeds) == 0 {
		return []*model.Spell{}
	}

	resolved := make([]*model.Spell, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		i, seed := i, seed
		wg.Add(1)
		go func() {
			defer wg.Done()
			school, flags := s.extractor.SpellDetails(s.fetcher.Fetch(ctx, s.site.SpellURL(seed.ID)))
			resolved[i] = &model.Spell{Name: seed.Name, ID: seed.ID, School: school, Flags: flags}
		}()
	}
	wg.Wait()

	return dedupeByID(resolved)
}

// dedupeByID collapses repeated spell ids. The first occurrence keeps its
// position and the last one supplies the value.
func dedupeByID(spells []*model.Spell) []*model.Spell {
	index := make(map[int]int, len(spells))
	out := make([]*model.Spell, 0, len(spells))
	for _, spell := range spells {
		if i, ok := index[spell.ID]; ok {
			out[i] = spell
			continue
		}
		index[spell.ID] = len(out)
		out = append(out, spell)
	}
	return out
}
