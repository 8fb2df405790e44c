package inmemdb

import (
	"sync"

	"github.com/skedutech/portal/core/franchise"
)

type (
	DB struct {
		franchise *franchiseTable
	}

	franchiseTable struct {
		sync.RWMutex
		table map[string]*franchise.Franchise
	}
)

func Open() (*DB, error) {
	db := &DB{
		franchise: &franchiseTable{table: make(map[string]*franchise.Franchise)},
	}
	return db, nil
}
