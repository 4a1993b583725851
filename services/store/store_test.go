package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/internal/refine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "instances.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func boolPtr(b bool) *bool { return &b }

// The same NPC appears in two dungeons and shares a spell with another NPC
func testDocument() *model.Document {
	shared := &model.Npc{Name: "Venture Co. Patron", ID: 130435, Spells: []*model.Spell{
		{Name: "Blunt Weapon", ID: 280604, School: model.PhysicalSchool, Flags: []string{}, CanImmune: boolPtr(false)},
	}}

	doc := model.NewDocument()
	doc.Group(model.KindRaid)["Liberation of Undermine"] = &model.Instance{ID: 15522, Npcs: []*model.Npc{
		{Name: "Vexie Fullthrottle", ID: 225821, IsBoss: true, ImageURL: "https://img.example/vexie.jpg", Spells: []*model.Spell{
			{Name: "Exhaust Fumes", ID: 468147, School: "Fire", Flags: []string{}, CanImmune: boolPtr(true)},
			{Name: "Blunt Weapon", ID: 280604, School: model.PhysicalSchool, Flags: []string{}, CanImmune: boolPtr(false)},
		}},
	}}
	doc.Group(model.KindDungeon)["The MOTHERLODE!!"] = &model.Instance{ID: 8064, Npcs: []*model.Npc{shared}}
	doc.Group(model.KindDungeon)["Operation: Floodgate"] = &model.Instance{ID: 15452, Npcs: []*model.Npc{shared}}
	return doc
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Populate(ctx, testDocument()))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Instances: 3, Npcs: 2, Spells: 2, InstanceNpcs: 3, NpcSpells: 3}, c)

	var kind string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT type FROM instances WHERE id = ?", 8064).Scan(&kind))
	assert.Equal(t, "dungeons", kind)

	var isBoss int
	var imageURL string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT is_boss, image_url FROM npcs WHERE id = ?", 225821).Scan(&isBoss, &imageURL))
	assert.Equal(t, 1, isBoss)
	assert.Equal(t, "https://img.example/vexie.jpg", imageURL)
}

func TestPopulateFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Populate(ctx, testDocument()))

	renamed := testDocument()
	renamed.Instances.Raids["Liberation of Undermine"].Npcs[0].Spells[0].Name = "Renamed Fumes"
	require.NoError(t, s.Populate(ctx, renamed))

	var name string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT name FROM spells WHERE id = ?", 468147).Scan(&name))
	assert.Equal(t, "Exhaust Fumes", name)

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Spells)
}

func TestPopulateNullCanImmune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := model.NewDocument()
	doc.Group(model.KindRaid)["Raw"] = &model.Instance{ID: 1, Npcs: []*model.Npc{{Name: "Boss", ID: 2, IsBoss: true, Spells: []*model.Spell{{Name: "Zap", ID: 3, School: "Arcane"}}}}}
	require.NoError(t, s.Populate(ctx, doc))

	var canImmune *int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT can_immune FROM spells WHERE id = 3").Scan(&canImmune))
	assert.Nil(t, canImmune)
}

func TestPopulateSkipsNullEntries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Counts
	}{
		{
			name:  "null npc",
			input: `{"instances":{"raids":{"Raw":{"id":1,"npcs":[null,{"name":"Boss","id":2,"is_boss":true,"spells":[],"image_url":""}]}},"dungeons":{}}}`,
			want:  Counts{Instances: 1, Npcs: 1, InstanceNpcs: 1},
		},
		{
			name:  "null spell",
			input: `{"instances":{"raids":{},"dungeons":{"Raw":{"id":1,"npcs":[{"name":"Trash","id":2,"is_boss":false,"spells":[null,{"name":"Zap","id":3,"school":"Nature","flags":[]}],"image_url":""}]}}}}`,
			want:  Counts{Instances: 1, Npcs: 1, Spells: 1, InstanceNpcs: 1, NpcSpells: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t)

			doc, _, err := refine.DecodeDocument([]byte(tt.input))
			require.NoError(t, err)
			require.NoError(t, s.Populate(ctx, doc))

			c, err := s.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Populate(ctx, testDocument()))

	require.NoError(t, s.Reset(ctx))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "instances.db"))
	assert.Error(t, err)
}
