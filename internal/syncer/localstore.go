package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/store"
	"qms/counter-service/internal/store/filestore"
)

const (
	queueFileName   = "queue.json"
	historyFileName = "history.json"
	dateFileName    = "date"
)

// LocalStore keeps the device's copy of the queue, its date marker and the
// order history in separate files under one directory.
type LocalStore struct {
	Queue    *filestore.Store
	History  *FileRepository
	datePath string
}

func OpenLocalStore(dir string) *LocalStore {
	return &LocalStore{
		Queue:    filestore.NewStore(filepath.Join(dir, queueFileName), filestore.Options{}),
		History:  NewFileRepository(filepath.Join(dir, historyFileName)),
		datePath: filepath.Join(dir, dateFileName),
	}
}

// DateMarker returns the YYYY-MM-DD day the local queue belongs to, or "".
func (s *LocalStore) DateMarker() string {
	data, err := os.ReadFile(s.datePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *LocalStore) SetDateMarker(day string) error {
	return filestore.WriteFileAtomic(s.datePath, []byte(day+"\n"))
}

// FileRepository is an upsert-by-id order log stored as one JSON array.
type FileRepository struct {
	mu     sync.Mutex
	path   string
	loaded bool
	orders map[string]models.OrderTicket
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path, orders: make(map[string]models.OrderTicket)}
}

func (r *FileRepository) Upsert(ctx context.Context, order models.OrderTicket) error {
	return r.UpsertMany(ctx, []models.OrderTicket{order})
}

func (r *FileRepository) UpsertMany(ctx context.Context, orders []models.OrderTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return err
	}
	for _, order := range orders {
		r.orders[order.ID] = order
	}
	return r.writeLocked()
}

func (r *FileRepository) Get(ctx context.Context, orderID string) (models.OrderTicket, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return models.OrderTicket{}, false, err
	}
	order, ok := r.orders[orderID]
	return order, ok, nil
}

func (r *FileRepository) List(ctx context.Context) ([]models.OrderTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	return r.listLocked(), nil
}

func (r *FileRepository) listLocked() []models.OrderTicket {
	orders := make([]models.OrderTicket, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}
	store.SortNewestFirst(orders)
	return orders
}

func (r *FileRepository) loadLocked() error {
	if r.loaded {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	var orders []models.OrderTicket
	if err := json.Unmarshal(data, &orders); err != nil {
		// An unreadable log is kept aside and a fresh one started.
		aside := r.path + ".corrupt"
		log.Printf("history log unreadable path=%s moved_to=%s: %v", r.path, aside, err)
		if err := os.Rename(r.path, aside); err != nil {
			log.Printf("history log move error path=%s: %v", r.path, err)
		}
		r.loaded = true
		return nil
	}
	for _, order := range orders {
		r.orders[order.ID] = order
	}
	r.loaded = true
	return nil
}

func (r *FileRepository) writeLocked() error {
	data, err := json.MarshalIndent(r.listLocked(), "", "  ")
	if err != nil {
		return err
	}
	return filestore.WriteFileAtomic(r.path, data)
}
