package crawler

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/immunescraper/helpers"
)

// Meta tags tried in order before falling back to screenshots
var imageMetaSelectors = []string{
	`meta[property="og:image"]`,
	`meta[property="og:image:secure_url"]`,
	`meta[name="twitter:image"], meta[property="twitter:image"]`,
}

var (
	stickyScreenshotPattern = regexp.MustCompile(`\{"id":(\d+),[^{}]*?"sticky":(?:1|true)\b`)
	screenshotStartPattern  = regexp.MustCompile(`(?s)(?:lv_screenshots\s*=\s*|template:\s*'screenshot'.*?data:\s*)\[`)
)

// NpcImage returns the first usable meta image of an NPC page, then a URL
// built from the sticky (or first) screenshot, or "" when neither exists
func (e *WowheadExtractor) NpcImage(html string, npcName string) string {
	if html == "" {
		return ""
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		for _, selector := range imageMetaSelectors {
			content := strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
			if content != "" && !e.isPlaceholder(content) {
				return content
			}
		}
	}

	id := screenshotID(html)
	if id == 0 {
		return ""
	}
	return e.screenshotImageURL(id, npcName)
}

func (e *WowheadExtractor) isPlaceholder(url string) bool {
	return slices.Contains(e.Placeholders, url)
}

func (e *WowheadExtractor) screenshotImageURL(id int, npcName string) string {
	slug := helpers.Slugify(npcName)
	if slug == "" {
		return fmt.Sprintf("%s/%d.jpg", e.ScreenshotURL, id)
	}
	return fmt.Sprintf("%s/%d-%s.jpg", e.ScreenshotURL, id, slug)
}

// screenshotID finds a sticky screenshot quickly, then falls back to parsing
// the whole embedded array. Both only look inside the screenshot block.
func screenshotID(html string) int {
	block := screenshotBlock(html)
	if block == "" {
		return 0
	}

	if m := stickyScreenshotPattern.FindStringSubmatch(block); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
			return id
		}
	}

	rows, err := decodeRows(block, block)
	if err != nil {
		return 0
	}

	first := 0
	for _, row := range rows {
		id := intField(row["id"])
		if id <= 0 {
			continue
		}
		if intField(row["sticky"]) == 1 {
			return id
		}
		if first == 0 {
			first = id
		}
	}
	return first
}

// screenshotBlock returns the screenshot array literal with its brackets
// balanced, or "" when the page has none or it never closes
func screenshotBlock(html string) string {
	loc := screenshotStartPattern.FindStringIndex(html)
	if loc == nil {
		return ""
	}

	start := loc[1] - 1
	depth := 0
	var quote byte
	for i := start; i < len(html); i++ {
		c := html[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return html[start : i+1]
			}
		}
	}
	return ""
}
