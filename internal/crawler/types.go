package crawler

import (
	"context"

	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/model"
)

// NpcEntry is one NPC row of an instance listing
type NpcEntry struct {
	ID     int
	Name   string
	IsBoss bool
}

// SpellSeed is one row of an NPC ability listing, before its detail page is read
type SpellSeed struct {
	ID   int
	Name string
}

// PageFetcher returns the UTF-8 body of a page, or an empty string when the page
// could not be retrieved for any reason
type PageFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Extractor pulls structured data out of raw page bodies.
// Every method tolerates empty or malformed input and returns zero values.
type Extractor interface {
	// Npcs reads the NPC listing of an instance page
	Npcs(html string, bossOnly bool) []NpcEntry

	// SpellSeeds reads the ability listing of an NPC page
	SpellSeeds(html string) []SpellSeed

	// SpellDetails reads the school and flags of a spell page
	SpellDetails(html string) (school string, flags []string)

	// NpcImage picks a representative image URL from an NPC page
	NpcImage(html string, npcName string) string
}

// Crawler interface defines the contract for a full scrape run
type Crawler interface {
	// ScrapeAll walks every instance of the manifest and returns the raw document
	ScrapeAll(ctx context.Context, m *manifest.Manifest) (*model.Document, error)
}
