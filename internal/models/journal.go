package models

import (
	"encoding/json"
	"errors"
)

// Default journal metadata used when a plugin's journal is created implicitly
// by the first appended entry.
const (
	DefaultJournalVersion = "0.0.1"
	DefaultJournalDialect = "postgresql"
)

// Journal is the per-plugin ledger of applied migration tags. Entries is a
// JSON array of JournalEntry, sorted ascending by idx with no gaps, mirroring
// the plugin's snapshot sequence.
type Journal struct {
	PluginName string          `gorm:"primaryKey" json:"plugin_name"`
	Version    string          `gorm:"not null" json:"version"`
	Dialect    string          `gorm:"not null" json:"dialect"`
	Entries    json.RawMessage `gorm:"type:jsonb;not null" json:"entries"`
}

// TableName places the journal in the shared migrations schema
func (Journal) TableName() string {
	return "migrations._journal"
}

// JournalEntry is one applied migration tag inside a journal
type JournalEntry struct {
	Idx         int    `json:"idx"`
	Version     string `json:"version"`
	Breakpoints bool   `json:"breakpoints"`
}

// DecodeEntries unmarshals the journal's entries column
func (j *Journal) DecodeEntries() ([]JournalEntry, error) {
	if len(j.Entries) == 0 {
		return nil, nil
	}
	var entries []JournalEntry
	if err := json.Unmarshal(j.Entries, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EncodeEntries marshals entries into the journal's entries column. A nil
// slice is stored as an empty JSON array, never as SQL NULL.
func (j *Journal) EncodeEntries(entries []JournalEntry) error {
	if entries == nil {
		entries = []JournalEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	j.Entries = raw
	return nil
}

// Validate checks journal invariants before persisting
func (j *Journal) Validate() error {
	if j.PluginName == "" {
		return errors.New("plugin name cannot be empty")
	}
	entries, err := j.DecodeEntries()
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if entry.Idx != i {
			return errors.New("journal entries must be contiguous and sorted by idx")
		}
	}
	return nil
}
