// Package refine turns a raw crawl into the published instances document:
// denylisted and invalid records are dropped, duplicate spell names collapse,
// can_immune is derived and NPCs without spells are pruned.
package refine

import (
	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/logger"
)

// Options configures the denylists
type Options struct {
	// SpellDenylist holds exact spell names removed from every NPC
	SpellDenylist []string
	// NpcDenylist holds exact NPC names removed from dungeons
	NpcDenylist []string
}

// Stats counts what a refinement pass changed
type Stats struct {
	DeniedSpells    int
	DeniedNpcs      int
	InvalidSpells   int
	DuplicateSpells int
	PrunedNpcs      int
	DerivedImmunity int
	KeptImmunity    int
}

// Changed reports whether the pass modified the document at all
func (s Stats) Changed() bool {
	return s != Stats{KeptImmunity: s.KeptImmunity}
}

// Refiner applies the normalisation rules to a document in place
type Refiner struct {
	spellDeny map[string]struct{}
	npcDeny   map[string]struct{}
	log       *logger.Logger
}

// New creates a refiner
func New(opts Options) *Refiner {
	return &Refiner{
		spellDeny: toSet(opts.SpellDenylist),
		npcDeny:   toSet(opts.NpcDenylist),
		log:       logger.ForRefiner(),
	}
}

// FromManifest creates a refiner using the ignore lists of m
func FromManifest(m *manifest.Manifest) *Refiner {
	return New(Options{SpellDenylist: m.Ignore.Spells, NpcDenylist: m.Ignore.Npcs})
}

// CanImmune reports whether an immunity effect blocks spell
func CanImmune(spell *model.Spell) bool {
	return spell.School != model.PhysicalSchool && !spell.HasFlag(model.ImmunityBypassFlag)
}

// Refine normalises doc in place. Running it again on its own output changes nothing.
func (r *Refiner) Refine(doc *model.Document) Stats {
	var stats Stats

	doc.Each(func(inst *model.Instance) {
		npcs := make([]*model.Npc, 0, len(inst.Npcs))
		for _, npc := range inst.Npcs {
			if npc == nil {
				continue
			}
			if inst.Kind == model.KindDungeon && r.denied(r.npcDeny, npc.Name) {
				stats.DeniedNpcs++
				continue
			}

			npc.Spells = r.refineSpells(npc.Spells, &stats)
			if len(npc.Spells) == 0 {
				stats.PrunedNpcs++
				continue
			}
			npcs = append(npcs, npc)
		}
		inst.Npcs = npcs
	})

	r.log.Info().
		Int("denied_spells", stats.DeniedSpells).
		Int("denied_npcs", stats.DeniedNpcs).
		Int("invalid_spells", stats.InvalidSpells).
		Int("duplicate_spells", stats.DuplicateSpells).
		Int("pruned_npcs", stats.PrunedNpcs).
		Int("derived", stats.DerivedImmunity).
		Int("kept", stats.KeptImmunity).
		Msg("Refinement complete")
	return stats
}

// refineSpells filters one NPC's spells. Duplicates are detected by name and
// the first record wins, even when the ids differ.
func (r *Refiner) refineSpells(spells []*model.Spell, stats *Stats) []*model.Spell {
	out := make([]*model.Spell, 0, len(spells))
	seen := make(map[string]struct{}, len(spells))

	for _, spell := range spells {
		if spell == nil {
			continue
		}
		if r.denied(r.spellDeny, spell.Name) {
			stats.DeniedSpells++
			continue
		}
		if spell.Name == "" || spell.ID == 0 {
			stats.InvalidSpells++
			continue
		}
		if _, dup := seen[spell.Name]; dup {
			stats.DuplicateSpells++
			continue
		}
		seen[spell.Name] = struct{}{}

		if spell.Flags == nil {
			spell.Flags = []string{}
		}
		if spell.CanImmune == nil {
			canImmune := CanImmune(spell)
			spell.CanImmune = &canImmune
			stats.DerivedImmunity++
		} else {
			stats.KeptImmunity++
		}
		out = append(out, spell)
	}
	return out
}

func (r *Refiner) denied(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
