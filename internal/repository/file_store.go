package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Lixing-Zhang/storefront/internal/models"
)

const (
	productsFile = "products.json"
	ordersFile   = "orders.json"
	usersFile    = "users.json"
	metaFile     = "meta.json"
	commitFile   = "commit.json"
)

// FileStore persists the three collections as whole-file JSON documents in a
// directory, next to meta.json holding the id counters. A mutation writes
// every changed document to a temp file, then records the pending renames in
// commit.json. Once that record is in place the change is durable: the
// renames are applied, and replayed on the next write or open if they were
// interrupted. The in-memory copy only changes once the record is written.
type FileStore struct {
	*MemoryStore
	dir string
}

type storeMeta struct {
	NextIDs sequences `json:"next_ids"`
}

// commitRecord lists temp files to rename over the documents, by base name
type commitRecord struct {
	Renames []pendingRename `json:"renames"`
}

type pendingRename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewFileStore opens (or initializes) the JSON documents under dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	fsStore := &FileStore{dir: dir}
	if err := fsStore.recover(); err != nil {
		return nil, err
	}
	if err := fsStore.removeStaleTemps(); err != nil {
		return nil, err
	}

	var products []models.Product
	if err := readDocument(filepath.Join(dir, productsFile), &products); err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := readDocument(filepath.Join(dir, ordersFile), &orders); err != nil {
		return nil, err
	}
	var users []models.User
	if err := readDocument(filepath.Join(dir, usersFile), &users); err != nil {
		return nil, err
	}
	var meta storeMeta
	if err := readDocument(filepath.Join(dir, metaFile), &meta); err != nil {
		return nil, err
	}

	st := state{
		products: make(map[int64]models.Product, len(products)),
		orders:   orders,
		users:    users,
		next:     meta.NextIDs,
	}
	for _, p := range products {
		if _, dup := st.products[p.ID]; dup {
			return nil, fmt.Errorf("malformed %s: duplicate product id %d", productsFile, p.ID)
		}
		st.products[p.ID] = p
	}

	fsStore.MemoryStore = newMemoryStore(st, fsStore.write)

	// Make sure every document exists on disk, as a fresh install expects.
	if err := fsStore.write(docProducts|docOrders|docUsers, fsStore.current()); err != nil {
		return nil, err
	}
	return fsStore, nil
}

// Dir returns the directory holding the documents
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) write(changed document, st state) error {
	// finish an interrupted commit before its documents are superseded
	if err := f.recover(); err != nil {
		return err
	}

	var record commitRecord
	cleanup := func() {
		for _, r := range record.Renames {
			os.Remove(filepath.Join(f.dir, r.From))
		}
	}

	stage := func(name string, v any) error {
		tmp, err := writeTemp(f.dir, name, v)
		if err != nil {
			return err
		}
		record.Renames = append(record.Renames, pendingRename{From: filepath.Base(tmp), To: name})
		return nil
	}

	if changed&docProducts != 0 {
		products := make([]models.Product, 0, len(st.products))
		for _, id := range sortedIDs(st.products) {
			products = append(products, st.products[id])
		}
		if err := stage(productsFile, products); err != nil {
			cleanup()
			return err
		}
	}
	if changed&docOrders != 0 {
		orders := st.orders
		if orders == nil {
			orders = []models.Order{}
		}
		if err := stage(ordersFile, orders); err != nil {
			cleanup()
			return err
		}
	}
	if changed&docUsers != 0 {
		users := st.users
		if users == nil {
			users = []models.User{}
		}
		if err := stage(usersFile, users); err != nil {
			cleanup()
			return err
		}
	}
	if err := stage(metaFile, storeMeta{NextIDs: st.next}); err != nil {
		cleanup()
		return err
	}

	tmp, err := writeTemp(f.dir, commitFile, record)
	if err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp, filepath.Join(f.dir, commitFile)); err != nil {
		os.Remove(tmp)
		cleanup()
		return fmt.Errorf("failed to record commit: %w", err)
	}

	// The commit is durable from here on; a failed rename is replayed by recover.
	_ = f.apply(record)
	return nil
}

// apply renames the staged documents into place and drops the commit record.
// Renames already done by an earlier attempt are skipped.
func (f *FileStore) apply(record commitRecord) error {
	for _, r := range record.Renames {
		err := os.Rename(filepath.Join(f.dir, r.From), filepath.Join(f.dir, r.To))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to replace %s: %w", r.To, err)
		}
	}
	if err := os.Remove(filepath.Join(f.dir, commitFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear commit record: %w", err)
	}
	return nil
}

// recover completes a commit whose renames were interrupted
func (f *FileStore) recover() error {
	var record commitRecord
	data, err := os.ReadFile(filepath.Join(f.dir, commitFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read commit record: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("malformed %s: %w", commitFile, err)
	}
	return f.apply(record)
}

// removeStaleTemps deletes temp files left by writes that never committed
func (f *FileStore) removeStaleTemps() error {
	stale, err := filepath.Glob(filepath.Join(f.dir, "*.tmp"))
	if err != nil {
		return err
	}
	for _, name := range stale {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func writeTemp(dir, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return tmp.Name(), nil
}

func readDocument(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed %s: %w", path, err)
	}
	return nil
}
