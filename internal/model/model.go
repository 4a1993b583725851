// Package model holds the instance → NPC → spell tree shared by the scraper,
// the refiner and the collaborators consuming instances.json.
package model

import "sort"

// Kind separates raids from dungeons. Its value doubles as the JSON group key.
type Kind string

const (
	KindRaid    Kind = "raids"
	KindDungeon Kind = "dungeons"
)

// Kinds lists the groups in output order
var Kinds = []Kind{KindRaid, KindDungeon}

// ImmunityBypassFlag marks spells that ignore invulnerability effects
const ImmunityBypassFlag = "Unaffected by invulnerability"

// PhysicalSchool is the damage school that immunities never block
const PhysicalSchool = "Physical"

// UnknownSchool is used when a spell page carries no school row
const UnknownSchool = "Unknown"

// Spell is an ability used by an NPC
type Spell struct {
	Name   string   `json:"name"`
	ID     int      `json:"id"`
	School string   `json:"school"`
	Flags  []string `json:"flags"`
	// CanImmune stays nil until the refiner derives it
	CanImmune *bool `json:"can_immune,omitempty"`
}

// HasFlag reports whether the spell carries flag
func (s *Spell) HasFlag(flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Npc is a hostile creature inside an instance
type Npc struct {
	Name     string   `json:"name"`
	ID       int      `json:"id"`
	IsBoss   bool     `json:"is_boss"`
	Spells   []*Spell `json:"spells"`
	ImageURL string   `json:"image_url"`
}

// Instance is a raid or a dungeon. Name and Kind come from the map it lives in.
type Instance struct {
	ID   int    `json:"id"`
	Npcs []*Npc `json:"npcs"`

	Name string `json:"-"`
	Kind Kind   `json:"-"`
}

// Instances groups instances by kind, keyed by display name
type Instances struct {
	Raids    map[string]*Instance `json:"raids"`
	Dungeons map[string]*Instance `json:"dungeons"`
}

// Document is the canonical instances.json layout
type Document struct {
	Instances Instances `json:"instances"`
}

// NewDocument returns a document with both groups allocated
func NewDocument() *Document {
	return &Document{Instances: Instances{
		Raids:    map[string]*Instance{},
		Dungeons: map[string]*Instance{},
	}}
}

// Group returns the instance map for kind
func (d *Document) Group(kind Kind) map[string]*Instance {
	switch kind {
	case KindRaid:
		if d.Instances.Raids == nil {
			d.Instances.Raids = map[string]*Instance{}
		}
		return d.Instances.Raids
	default:
		if d.Instances.Dungeons == nil {
			d.Instances.Dungeons = map[string]*Instance{}
		}
		return d.Instances.Dungeons
	}
}

// Each visits every instance of every group in a stable order: raids first,
// then dungeons, names sorted. Name and Kind are filled in before fn runs.
func (d *Document) Each(fn func(inst *Instance)) {
	for _, kind := range Kinds {
		group := d.Group(kind)
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			inst := group[name]
			if inst == nil {
				continue
			}
			inst.Name = name
			inst.Kind = kind
			fn(inst)
		}
	}
}

// Counts summarises the size of a document
type Counts struct {
	Raids    int
	Dungeons int
	Npcs     int
	Spells   int
}

// Count walks the document and tallies instances, NPCs and spells
func (d *Document) Count() Counts {
	var c Counts
	d.Each(func(inst *Instance) {
		if inst.Kind == KindRaid {
			c.Raids++
		} else {
			c.Dungeons++
		}
		for _, npc := range inst.Npcs {
			if npc == nil {
				continue
			}
			c.Npcs++
			for _, spell := range npc.Spells {
				if spell != nil {
					c.Spells++
				}
			}
		}
	})
	return c
}
