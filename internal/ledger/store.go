package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store persists one ledger file per ranch and serializes every
// read-modify-write per ranch, so that two accrual events arriving
// at the same time cannot lose an update
type Store struct {
	files map[string]string
	locks map[string]*sync.Mutex
}

// CreateStore creates a store for the given ranch -> data file mapping
func CreateStore(files map[string]string) *Store {

	store := Store{files: map[string]string{}, locks: map[string]*sync.Mutex{}}
	for ranch, file := range files {
		store.files[ranch] = file
		store.locks[ranch] = &sync.Mutex{}
	}
	return &store
}

// Load reads the persisted ledger for a ranch. It never fails the caller:
// a missing or corrupt file yields an empty ledger, which is persisted
// right away so the next load finds a valid file
func (store *Store) Load(ranch string) Ledger {

	store.lock(ranch)
	defer store.unlock(ranch)
	return store.load(ranch)
}

// Save persists the full ledger for a ranch, overwriting any prior file
func (store *Store) Save(ranch string, ldg Ledger) error {

	store.lock(ranch)
	defer store.unlock(ranch)
	return store.save(ranch, ldg)
}

// Apply runs the load -> accrue -> save critical section for one event
// and returns the updated ledger for rendering
func (store *Store) Apply(ranch string, identity string, resource Resource, amount int) (Ledger, error) {

	store.lock(ranch)
	defer store.unlock(ranch)

	ldg := store.load(ranch)
	if err := ldg.Accrue(identity, resource, amount); err != nil {
		return nil, err
	}
	if err := store.save(ranch, ldg); err != nil {
		return nil, err
	}
	return ldg, nil
}

// Reset replaces the persisted ledger of a ranch with an empty one
func (store *Store) Reset(ranch string) error {

	store.lock(ranch)
	defer store.unlock(ranch)
	return store.save(ranch, Ledger{})
}

func (store *Store) load(ranch string) Ledger {

	file, ok := store.files[ranch]
	if !ok {
		log.Error().Str("ranch", ranch).Msg("No data file configured for ranch")
		return Ledger{}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Str("ranch", ranch).Msg("Could not read data file")
		} else {
			log.Info().Str("ranch", ranch).Str("file", file).Msg("No data file found, creating a new one")
		}
		ldg := Ledger{}
		if err := store.save(ranch, ldg); err != nil {
			log.Error().Err(err).Str("ranch", ranch).Msg("Could not create data file")
		}
		return ldg
	}

	var ldg Ledger
	if err := json.Unmarshal(data, &ldg); err != nil {
		log.Error().Err(err).Str("ranch", ranch).Msg("Data file is corrupt, starting from an empty ledger")
		ldg = Ledger{}
		if err := store.save(ranch, ldg); err != nil {
			log.Error().Err(err).Str("ranch", ranch).Msg("Could not rewrite data file")
		}
		return ldg
	}
	if ldg == nil {
		ldg = Ledger{}
	}
	return ldg
}

func (store *Store) save(ranch string, ldg Ledger) error {

	file, ok := store.files[ranch]
	if !ok {
		return fmt.Errorf("no data file configured for ranch %s", ranch)
	}

	data, err := json.MarshalIndent(ldg, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode ledger for ranch %s: %w", ranch, err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("could not write data file for ranch %s: %w", ranch, err)
	}
	return nil
}

func (store *Store) lock(ranch string) {
	if mutex, ok := store.locks[ranch]; ok {
		mutex.Lock()
	}
}

func (store *Store) unlock(ranch string) {
	if mutex, ok := store.locks[ranch]; ok {
		mutex.Unlock()
	}
}
