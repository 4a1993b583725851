// Package store exports a refined instances document into SQLite. NPCs and
// spells are shared across instances through link tables.
package store

import (
	"context"
	"database/sql"
	_ "embed"

	_ "modernc.org/sqlite"

	"sjsage522/immunescraper/internal/model"
	"sjsage522/immunescraper/logger"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

//go:embed schema.sql
var schema string

var tables = []string{"npc_spells", "instance_npcs", "spells", "npcs", "instances"}

// Counts holds the row count of every table
type Counts struct {
	Instances    int
	Npcs         int
	Spells       int
	InstanceNpcs int
	NpcSpells    int
}

// Store wraps the SQLite database
type Store struct {
	db   *sql.DB
	path string
	log  *logger.Logger
}

// Open opens (creating when needed) the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, scrapeerrors.NewStorage(path, "failed to open database", err)
	}
	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, scrapeerrors.NewStorage(path, "failed to apply schema", err)
	}

	return &Store{db: db, path: path, log: logger.ForStore()}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset drops every table and recreates the empty schema
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return scrapeerrors.NewStorage(s.path, "failed to drop "+table, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return scrapeerrors.NewStorage(s.path, "failed to recreate schema", err)
	}

	s.log.Info().Str("path", s.path).Msg("Database reset")
	return nil
}

// Populate inserts doc in one transaction. Rows that already exist keep
// their first-written values; links are always recorded.
func (s *Store) Populate(ctx context.Context, doc *model.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scrapeerrors.NewStorage(s.path, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmts, err := prepare(ctx, tx)
	if err != nil {
		return scrapeerrors.NewStorage(s.path, "failed to prepare statements", err)
	}
	defer stmts.close()

	var populateErr error
	doc.Each(func(inst *model.Instance) {
		if populateErr != nil {
			return
		}
		populateErr = stmts.insertInstance(ctx, inst)
	})
	if populateErr != nil {
		return scrapeerrors.NewStorage(s.path, "failed to insert rows", populateErr)
	}

	if err := tx.Commit(); err != nil {
		return scrapeerrors.NewStorage(s.path, "failed to commit", err)
	}

	c := doc.Count()
	s.log.Info().Int("instances", c.Raids+c.Dungeons).Int("npcs", c.Npcs).Int("spells", c.Spells).Msg("Database populated")
	return nil
}

// Counts returns the row count of every table
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := map[string]*int{
		"instances":     &c.Instances,
		"npcs":          &c.Npcs,
		"spells":        &c.Spells,
		"instance_npcs": &c.InstanceNpcs,
		"npc_spells":    &c.NpcSpells,
	}
	for table, dst := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(dst); err != nil {
			return Counts{}, scrapeerrors.NewStorage(s.path, "failed to count "+table, err)
		}
	}
	return c, nil
}

type statements struct {
	instance, npc, spell, instanceNpc, npcSpell *sql.Stmt
}

func prepare(ctx context.Context, tx *sql.Tx) (*statements, error) {
	st := &statements{}
	queries := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&st.instance, "INSERT OR IGNORE INTO instances (id, name, type) VALUES (?, ?, ?)"},
		{&st.npc, "INSERT OR IGNORE INTO npcs (id, name, is_boss, image_url) VALUES (?, ?, ?, ?)"},
		{&st.spell, "INSERT OR IGNORE INTO spells (id, name, school, can_immune) VALUES (?, ?, ?, ?)"},
		{&st.instanceNpc, "INSERT OR IGNORE INTO instance_npcs (instance_id, npc_id) VALUES (?, ?)"},
		{&st.npcSpell, "INSERT OR IGNORE INTO npc_spells (npc_id, spell_id) VALUES (?, ?)"},
	}

	for _, q := range queries {
		stmt, err := tx.PrepareContext(ctx, q.query)
		if err != nil {
			st.close()
			return nil, err
		}
		*q.dst = stmt
	}
	return st, nil
}

func (st *statements) close() {
	for _, stmt := range []*sql.Stmt{st.instance, st.npc, st.spell, st.instanceNpc, st.npcSpell} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (st *statements) insertInstance(ctx context.Context, inst *model.Instance) error {
	if _, err := st.instance.ExecContext(ctx, inst.ID, inst.Name, string(inst.Kind)); err != nil {
		return err
	}

	for _, npc := range inst.Npcs {
		if npc == nil {
			continue
		}
		if _, err := st.npc.ExecContext(ctx, npc.ID, npc.Name, boolInt(npc.IsBoss), npc.ImageURL); err != nil {
			return err
		}
		if _, err := st.instanceNpc.ExecContext(ctx, inst.ID, npc.ID); err != nil {
			return err
		}

		for _, spell := range npc.Spells {
			if spell == nil {
				continue
			}
			var canImmune any
			if spell.CanImmune != nil {
				canImmune = boolInt(*spell.CanImmune)
			}
			if _, err := st.spell.ExecContext(ctx, spell.ID, spell.Name, spell.School, canImmune); err != nil {
				return err
			}
			if _, err := st.npcSpell.ExecContext(ctx, npc.ID, spell.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
