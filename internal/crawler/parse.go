package crawler

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/logger"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

var (
	npcListviewPattern   = regexp.MustCompile(`(?s)new Listview\(\{\s*template:\s*'npc'.*?data:\s*(\[.*?\])\s*\}\);`)
	spellListviewPattern = regexp.MustCompile(`(?s)new Listview\(\{\s*template:\s*'spell'.*?data:\s*(\[.*?\])\s*\}\);`)

	// The spell listing emits an unquoted modes key that strict JSON rejects
	bareModesKey = regexp.MustCompile(`([{,]\s*)modes\s*:`)
)

// Default placeholder images the site serves when an NPC has no artwork
var defaultPlaceholders = []string{
	"https://wow.zamimg.com/images/logos/share-icon.png",
	"https://wow.zamimg.com/images/wow/icons/large/inv_misc_questionmark.jpg",
}

// WowheadExtractor reads Listview blocks, spell tables and NPC meta tags
type WowheadExtractor struct {
	// ScreenshotURL is the base of synthesised screenshot image URLs
	ScreenshotURL string
	// Placeholders are image URLs that never count as a real NPC image
	Placeholders []string

	log *logger.Logger
}

// NewWowheadExtractor creates an extractor with the default placeholder list
func NewWowheadExtractor(screenshotURL string) *WowheadExtractor {
	return &WowheadExtractor{
		ScreenshotURL: strings.TrimRight(screenshotURL, "/"),
		Placeholders:  defaultPlaceholders,
		log:           logger.ForComponent("extractor"),
	}
}

// Npcs returns the NPC rows of an instance page. With bossOnly set only rows
// flagged as bosses survive. Friendly rows (react [1,1]) are always dropped.
func (e *WowheadExtractor) Npcs(html string, bossOnly bool) []NpcEntry {
	match := npcListviewPattern.FindStringSubmatch(html)
	if match == nil {
		return nil
	}

	rows, err := decodeRows(match[1], match[1])
	if err != nil {
		e.malformed("npc", err)
		return nil
	}

	var npcs []NpcEntry
	for _, row := range rows {
		isBoss := intField(row["boss"]) == 1
		if bossOnly && !isBoss {
			continue
		}
		if isFriendly(row["react"]) {
			continue
		}

		id := intField(row["id"])
		name, _ := row["name"].(string)
		if id <= 0 || name == "" {
			continue
		}
		npcs = append(npcs, NpcEntry{ID: id, Name: name, IsBoss: isBoss})
	}
	return npcs
}

// SpellSeeds returns the ability rows of an NPC page
func (e *WowheadExtractor) SpellSeeds(html string) []SpellSeed {
	match := spellListviewPattern.FindStringSubmatch(html)
	if match == nil {
		return nil
	}

	repaired := bareModesKey.ReplaceAllString(match[1], `$1"modes":`)
	rows, err := decodeRows(repaired, match[1])
	if err != nil {
		e.malformed("spell", err)
		return nil
	}

	var seeds []SpellSeed
	for _, row := range rows {
		id := intField(row["id"])
		if id <= 0 {
			continue
		}
		name, _ := row["name"].(string)
		seeds = append(seeds, SpellSeed{ID: id, Name: strings.TrimSpace(name)})
	}
	return seeds
}

// SpellDetails returns the school and flags of a spell page.
// Missing rows yield "Unknown" and an empty flag list.
func (e *WowheadExtractor) SpellDetails(html string) (string, []string) {
	school := model.UnknownSchool
	flags := []string{}

	if html == "" {
		return school, flags
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return school, flags
	}

	if cell := headerCell(doc, "School"); cell.Length() > 0 {
		if text := strings.TrimSpace(cell.Text()); text != "" {
			school = text
		}
	}

	if cell := headerCell(doc, "Flags"); cell.Length() > 0 {
		cell.Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := strings.TrimSpace(li.Text()); text != "" {
				flags = append(flags, text)
			}
		})
	}

	return school, flags
}

func (e *WowheadExtractor) malformed(template string, err error) {
	if e.log != nil {
		e.log.Debug().Err(err).Str("template", template).Msg("Malformed listview data")
	}
}

// headerCell finds the td following the th whose text is label
func headerCell(doc *goquery.Document, label string) *goquery.Selection {
	th := doc.Find("th").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == label
	}).First()
	return th.NextAllFiltered("td").First()
}

// decodeRows parses a Listview data array. Strict JSON is tried on primary
// first, then the JSON5 decoder on fallback for the looser object literals.
func decodeRows(primary, fallback string) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal([]byte(primary), &rows); err == nil {
		return rows, nil
	}

	rows = nil
	if err := json5.Unmarshal([]byte(fallback), &rows); err != nil {
		return nil, scrapeerrors.NewParsing("listview", "failed to decode embedded data", err)
	}
	return rows, nil
}

func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case bool:
		if n {
			return 1
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func isFriendly(v any) bool {
	react, ok := v.([]any)
	if !ok || len(react) != 2 {
		return false
	}
	return intField(react[0]) == 1 && intField(react[1]) == 1
}
