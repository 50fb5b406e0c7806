package settlement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotStore persists one file per active payout batch. The absence
// of a file means the cycle is closed or was never started; the two are
// indistinguishable on purpose, a new cycle always starts from the ledger
type SnapshotStore struct {
	dir string
}

func CreateSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Load reads the active batch of a ranch, (nil, nil) if there is none
func (store *SnapshotStore) Load(ranch string) (*Batch, error) {

	data, err := os.ReadFile(store.path(ranch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read payout file for ranch %s: %w", ranch, err)
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("payout file for ranch %s is corrupt: %w", ranch, err)
	}
	return &batch, nil
}

// Save persists the batch, overwriting any prior file for the ranch
func (store *SnapshotStore) Save(batch *Batch) error {

	if err := os.MkdirAll(store.dir, 0755); err != nil {
		return fmt.Errorf("could not create payout directory: %w", err)
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode payout batch for ranch %s: %w", batch.Ranch, err)
	}
	if err := os.WriteFile(store.path(batch.Ranch), data, 0644); err != nil {
		return fmt.Errorf("could not write payout file for ranch %s: %w", batch.Ranch, err)
	}
	return nil
}

// Delete removes the persisted batch of a ranch, closing the cycle.
// Deleting an absent file is not an error
func (store *SnapshotStore) Delete(ranch string) error {

	if err := os.Remove(store.path(ranch)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete payout file for ranch %s: %w", ranch, err)
	}
	return nil
}

func (store *SnapshotStore) path(ranch string) string {
	name := strings.ReplaceAll(ranch, " ", "_")
	return filepath.Join(store.dir, fmt.Sprintf("payout_%s.json", name))
}
