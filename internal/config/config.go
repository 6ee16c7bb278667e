package config

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyParameters  = "parameters"
	keyContempt    = "contempt_file"
	keyBookWeights = "book_weights"
	keyPendingSet  = "book_pending_hashes"
)

// Parameters is the UCI-tunable knob registry of spec.md 9: every
// setoption name the front end exposes, persisted so a restart resumes
// with the previous session's tuning rather than hardcoded defaults.
type Parameters struct {
	HashMB           int     `json:"hash_mb"`
	Threads          int     `json:"threads"`
	MultiPV          int     `json:"multi_pv"`
	MinProbeDepth    int     `json:"min_probe_depth"`
	Strength         int     `json:"strength"` // 0-100, 100 = full strength
	LimitStrength    bool    `json:"limit_strength"`
	UCIElo           int     `json:"uci_elo"`
	MaxNPS           int     `json:"max_nps"`
	OwnBook          bool    `json:"own_book"`
	Contempt         int     `json:"contempt"`
	AnalyzeContempt  string  `json:"analyze_contempt"` // "white", "black", "both"
	AutoContempt     bool    `json:"auto_contempt"`
	Opponent         string  `json:"opponent"`
	AnalysisAgeHash  bool    `json:"analysis_age_hash"`
	ContemptFilePath string `json:"contempt_file_path"`
}

// DefaultParameters returns the engine's out-of-the-box tuning.
func DefaultParameters() *Parameters {
	return &Parameters{
		HashMB:        64,
		Threads:       1,
		MultiPV:       1,
		MinProbeDepth: 0,
		Strength:      100,
		MaxNPS:        0,
		AnalyzeContempt: "both",
	}
}

// ContemptEntry is one opponent-specific contempt value (spec.md 9's
// ContemptFile: a small per-opponent override table).
type ContemptEntry struct {
	Opponent string `json:"opponent"`
	Contempt int    `json:"contempt"`
}

// Store wraps BadgerDB for persisting Parameters, the contempt file and
// the book builder's BookData weights/pending-hash set.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the config database under the
// platform data directory.
func Open() (*Store, error) {
	dir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveParameters persists the tunable registry.
func (s *Store) SaveParameters(p *Parameters) error {
	return s.put(keyParameters, p)
}

// LoadParameters loads the tunable registry, returning defaults if unset.
func (s *Store) LoadParameters() (*Parameters, error) {
	p := DefaultParameters()
	found, err := s.get(keyParameters, p)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultParameters(), nil
	}
	return p, nil
}

// SaveContemptFile persists the opponent-keyed contempt override table.
func (s *Store) SaveContemptFile(entries []ContemptEntry) error {
	return s.put(keyContempt, entries)
}

// LoadContemptFile loads the contempt override table.
func (s *Store) LoadContemptFile() ([]ContemptEntry, error) {
	var entries []ContemptEntry
	if _, err := s.get(keyContempt, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// BookWeights are the builder's tunable expansion-cost/negamax weights
// (spec.md 4.K-M's BookData), persisted so successive builder runs don't
// restart tuning from scratch.
type BookWeights struct {
	BookDepthCost     float64 `json:"book_depth_cost"`
	OwnPathErrorCost  float64 `json:"own_path_error_cost"`
	OtherPathErrorCost float64 `json:"other_path_error_cost"`
	MinExpandDepth    int     `json:"min_expand_depth"`
}

// DefaultBookWeights returns the builder's starting weights.
func DefaultBookWeights() BookWeights {
	return BookWeights{BookDepthCost: 1.0, OwnPathErrorCost: 0.5, OtherPathErrorCost: 0.25, MinExpandDepth: 8}
}

// SaveBookWeights persists the builder's tunable weights.
func (s *Store) SaveBookWeights(w BookWeights) error {
	return s.put(keyBookWeights, w)
}

// LoadBookWeights loads the builder's tunable weights.
func (s *Store) LoadBookWeights() (BookWeights, error) {
	w := DefaultBookWeights()
	if _, err := s.get(keyBookWeights, &w); err != nil {
		return w, err
	}
	return w, nil
}

// SavePendingHashes persists the set of book-node hashes awaiting
// expansion, so an interrupted builder run resumes where it left off.
func (s *Store) SavePendingHashes(hashes []uint64) error {
	return s.put(keyPendingSet, hashes)
}

// LoadPendingHashes loads the pending-expansion hash set.
func (s *Store) LoadPendingHashes() ([]uint64, error) {
	var hashes []uint64
	if _, err := s.get(keyPendingSet, &hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) get(key string, out any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	return found, err
}
