package refine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/model"
)

const rawCrawl = `{
  "instances": {
    "raids": {
      "Liberation of Undermine": {
        "id": 15522,
        "npcs": [
          {"name": "Vexie Fullthrottle", "id": 225821, "is_boss": true, "image_url": "", "spells": [
            {"name": "Fireball", "id": 133, "school": "Fire", "flags": []},
            {"name": "Cleave", "id": 15284, "school": "Physical", "flags": []},
            {"name": "Widow's Embrace", "id": 1220001, "school": "Shadow", "flags": ["Unaffected by invulnerability"]},
            {"name": "Melee", "id": 1, "school": "Physical", "flags": []}
          ]},
          {"name": "Silent Sentry", "id": 225822, "is_boss": true, "image_url": "", "spells": []}
        ]
      }
    },
    "dungeons": {
      "The Rookery": {
        "id": 14938,
        "npcs": [
          {"name": "Kyrioss", "id": 209230, "is_boss": true, "image_url": "https://img.example/kyrioss.jpg", "spells": [
            {"name": "Lightning Torrent", "id": 420739, "school": "Nature", "flags": ["Channeled"]},
            {"name": "Lightning Torrent", "id": 444123, "school": "Nature", "flags": []},
            {"name": "", "id": 1000, "school": "Nature", "flags": []},
            {"name": "Wild Lightning", "id": 0, "school": "Nature", "flags": []}
          ]},
          {"name": "Invisible Stalker", "id": 15214, "is_boss": false, "image_url": "", "spells": [
            {"name": "Stalk", "id": 5, "school": "Shadow", "flags": []}
          ]},
          {"name": "Melee Only", "id": 209231, "is_boss": false, "image_url": "", "spells": [
            {"name": "Melee", "id": 1, "school": "Physical", "flags": []}
          ]}
        ]
      }
    }
  }
}`

func testRefiner() *Refiner {
	return New(Options{
		SpellDenylist: []string{"Melee"},
		NpcDenylist:   []string{"Invisible Stalker"},
	})
}

func decodeRaw(t *testing.T) *model.Document {
	t.Helper()
	doc, wrapped, err := DecodeDocument([]byte(rawCrawl))
	require.NoError(t, err)
	require.False(t, wrapped)
	return doc
}

func spellNames(npc *model.Npc) []string {
	var names []string
	for _, s := range npc.Spells {
		names = append(names, s.Name)
	}
	return names
}

func TestRefine(t *testing.T) {
	doc := decodeRaw(t)
	stats := testRefiner().Refine(doc)

	raid := doc.Instances.Raids["Liberation of Undermine"]
	require.Len(t, raid.Npcs, 1)
	assert.Equal(t, []string{"Fireball", "Cleave", "Widow's Embrace"}, spellNames(raid.Npcs[0]))

	dungeon := doc.Instances.Dungeons["The Rookery"]
	require.Len(t, dungeon.Npcs, 1)
	assert.Equal(t, "Kyrioss", dungeon.Npcs[0].Name)

	assert.Equal(t, Stats{
		DeniedSpells:    2,
		DeniedNpcs:      1,
		InvalidSpells:   2,
		DuplicateSpells: 1,
		PrunedNpcs:      2,
		DerivedImmunity: 4,
	}, stats)
	assert.True(t, stats.Changed())
}

func TestCanImmuneDerivation(t *testing.T) {
	doc := decodeRaw(t)
	testRefiner().Refine(doc)

	spells := doc.Instances.Raids["Liberation of Undermine"].Npcs[0].Spells
	want := map[string]bool{
		"Fireball":        true,
		"Cleave":          false,
		"Widow's Embrace": false,
	}
	for _, spell := range spells {
		require.NotNil(t, spell.CanImmune, spell.Name)
		assert.Equal(t, want[spell.Name], *spell.CanImmune, spell.Name)
	}

	doc.Each(func(inst *model.Instance) {
		for _, npc := range inst.Npcs {
			for _, spell := range npc.Spells {
				require.NotNil(t, spell.CanImmune)
				if spell.School == model.PhysicalSchool || spell.HasFlag(model.ImmunityBypassFlag) {
					assert.False(t, *spell.CanImmune)
				} else {
					assert.True(t, *spell.CanImmune)
				}
			}
		}
	})
}

func TestRefineKeepsExplicitCanImmune(t *testing.T) {
	explicit := true
	doc := model.NewDocument()
	doc.Group(model.KindRaid)["Old Raid"] = &model.Instance{ID: 1, Npcs: []*model.Npc{{
		Name: "Legacy Boss", ID: 2, IsBoss: true,
		Spells: []*model.Spell{{Name: "Old Strike", ID: 3, School: model.PhysicalSchool, CanImmune: &explicit}},
	}}}

	stats := testRefiner().Refine(doc)

	spell := doc.Instances.Raids["Old Raid"].Npcs[0].Spells[0]
	assert.True(t, *spell.CanImmune)
	assert.Equal(t, 1, stats.KeptImmunity)
	assert.Zero(t, stats.DerivedImmunity)
	assert.NotNil(t, spell.Flags)
}

// Two different spell ids sharing a name collapse into the first record
func TestRefineDedupesByName(t *testing.T) {
	doc := decodeRaw(t)
	testRefiner().Refine(doc)

	spells := doc.Instances.Dungeons["The Rookery"].Npcs[0].Spells
	require.Len(t, spells, 1)
	assert.Equal(t, "Lightning Torrent", spells[0].Name)
	assert.Equal(t, 420739, spells[0].ID)
	assert.Equal(t, []string{"Channeled"}, spells[0].Flags)
}

func TestRefinePrunesEmptyNpcs(t *testing.T) {
	doc := decodeRaw(t)
	testRefiner().Refine(doc)

	doc.Each(func(inst *model.Instance) {
		for _, npc := range inst.Npcs {
			assert.NotEmpty(t, npc.Spells, npc.Name)
		}
	})
}

func TestRefineNpcDenylistOnlyAppliesToDungeons(t *testing.T) {
	stalker := func() *model.Npc {
		return &model.Npc{Name: "Invisible Stalker", ID: 15214, Spells: []*model.Spell{{Name: "Stalk", ID: 5, School: "Shadow"}}}
	}
	doc := model.NewDocument()
	doc.Group(model.KindRaid)["Raid"] = &model.Instance{ID: 1, Npcs: []*model.Npc{stalker()}}
	doc.Group(model.KindDungeon)["Dungeon"] = &model.Instance{ID: 2, Npcs: []*model.Npc{stalker()}}

	testRefiner().Refine(doc)

	assert.Len(t, doc.Instances.Raids["Raid"].Npcs, 1)
	assert.Empty(t, doc.Instances.Dungeons["Dungeon"].Npcs)
}

func TestRefineIdempotent(t *testing.T) {
	doc := decodeRaw(t)
	r := testRefiner()
	r.Refine(doc)

	once, err := EncodeDocument(doc)
	require.NoError(t, err)

	stats := r.Refine(doc)
	assert.False(t, stats.Changed())

	twice, err := EncodeDocument(doc)
	require.NoError(t, err)

	first, _, err := DecodeDocument(once)
	require.NoError(t, err)
	second, _, err := DecodeDocument(twice)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second refinement changed the document (-first +second):\n%s", diff)
	}
}

func TestRefineBossFilterSurvives(t *testing.T) {
	doc := decodeRaw(t)
	testRefiner().Refine(doc)

	for _, inst := range doc.Instances.Raids {
		for _, npc := range inst.Npcs {
			assert.True(t, npc.IsBoss, npc.Name)
		}
	}
}

func TestFromManifest(t *testing.T) {
	m, err := manifest.Default()
	require.NoError(t, err)

	doc := decodeRaw(t)
	stats := FromManifest(m).Refine(doc)
	assert.Equal(t, 1, stats.DeniedNpcs)
	assert.Equal(t, 2, stats.DeniedSpells)
}
