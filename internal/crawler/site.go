package crawler

import (
	"fmt"
	"strings"

	"sjsage522/immunescraper/helpers"
)

// Site builds page URLs for the game-data site
type Site struct {
	BaseURL string
}

// NewSite trims trailing slashes off baseURL
func NewSite(baseURL string) Site {
	return Site{BaseURL: strings.TrimRight(baseURL, "/")}
}

// ZoneURL is the instance page listing its NPCs
func (s Site) ZoneURL(id int) string {
	return fmt.Sprintf("%s/zone=%d", s.BaseURL, id)
}

// AbilitiesURL is the NPC page anchored on its ability tab
func (s Site) AbilitiesURL(npcID int) string {
	return fmt.Sprintf("%s/npc=%d#abilities;mode:m", s.BaseURL, npcID)
}

// SpellURL is the spell detail page
func (s Site) SpellURL(id int) string {
	return fmt.Sprintf("%s/spell=%d", s.BaseURL, id)
}

// NpcURL is the NPC detail page carrying meta tags and screenshots
func (s Site) NpcURL(id int, name string) string {
	slug := helpers.Slugify(name)
	if slug == "" {
		return fmt.Sprintf("%s/npc=%d", s.BaseURL, id)
	}
	return fmt.Sprintf("%s/npc=%d/%s", s.BaseURL, id, slug)
}
