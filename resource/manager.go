// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

import (
	"reflect"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
)

// managed is the kind independent surface of a Store.
type managed interface {
	Kind() string
	Len() int
	Pending() (uploads, destroys int)
	UnloadUnused() int
	Clear()
}

// NewManager creates an empty registry.
func NewManager(logger log.FieldLogger) *Manager {
	return &Manager{
		log:    core.OrDiscard(logger),
		stores: make(map[reflect.Type]managed),
	}
}

// Manager is a registry holding one Store per resource kind, created
// on first use and kept for the life of the Manager. Kinds are told
// apart by their Go types, so unrelated kinds never share state even
// when they use the same identities.
//
// Methods on a concrete kind are package functions since Go methods
// cannot take type parameters.
type Manager struct {
	log log.FieldLogger

	mutex  sync.Mutex
	stores map[reflect.Type]managed
}

// StoreFor returns the store of the kind described by P, C and G,
// creating it on first use.
func StoreFor[P Properties[P], C, G any](m *Manager) *Store[P, C, G] {
	key := reflect.TypeOf((*Store[P, C, G])(nil))

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if s, ok := m.stores[key]; ok {
		return s.(*Store[P, C, G])
	}
	s := NewStore[P, C, G](m.log)
	m.stores[key] = s
	m.log.WithField("kind", s.Kind()).Debug("resource store created")
	return s
}

// LoadAsync forwards to the store of the kind io belongs to.
func LoadAsync[P Properties[P], C, G any](m *Manager, id string, io IO[P, C, G], props P) *Resource[P, G] {
	return StoreFor[P, C, G](m).LoadAsync(id, io, props)
}

// LoadSync forwards to the store of the kind io belongs to.
func LoadSync[P Properties[P], C, G any](m *Manager, id string, io IO[P, C, G], props P) *Resource[P, G] {
	return StoreFor[P, C, G](m).LoadSync(id, io, props)
}

// ProcessUploads forwards to the store of the kind io belongs to.
func ProcessUploads[P Properties[P], C, G any](m *Manager, io IO[P, C, G], maxUploads, maxDestroys int) bool {
	return StoreFor[P, C, G](m).ProcessUploads(io, maxUploads, maxDestroys)
}

// Find forwards to the store of kind P, C, G.
func Find[P Properties[P], C, G any](m *Manager, id string) (*Resource[P, G], bool) {
	return StoreFor[P, C, G](m).Find(id)
}

// GetState forwards to the store of kind P, C, G.
func GetState[P Properties[P], C, G any](m *Manager, id string) State {
	return StoreFor[P, C, G](m).State(id)
}

// GetError forwards to the store of kind P, C, G.
func GetError[P Properties[P], C, G any](m *Manager, id string) string {
	return StoreFor[P, C, G](m).Error(id)
}

// UnloadUnused evicts unreferenced resources in every store and
// returns the total evicted.
func (m *Manager) UnloadUnused() int {
	var removed int
	for _, s := range m.snapshot() {
		removed += s.UnloadUnused()
	}
	return removed
}

// Clear clears every store.
func (m *Manager) Clear() {
	for _, s := range m.snapshot() {
		s.Clear()
	}
}

// Kinds returns the kinds with a store, sorted.
func (m *Manager) Kinds() []string {
	var kinds []string
	for _, s := range m.snapshot() {
		kinds = append(kinds, s.Kind())
	}
	sort.Strings(kinds)
	return kinds
}

// Stats reports entries and queue lengths per kind.
func (m *Manager) Stats() map[string]StoreStats {
	stats := make(map[string]StoreStats)
	for _, s := range m.snapshot() {
		uploads, destroys := s.Pending()
		stats[s.Kind()] = StoreStats{
			Entries:  s.Len(),
			Uploads:  uploads,
			Destroys: destroys,
		}
	}
	return stats
}

// StoreStats is a point in time view of one store.
type StoreStats struct {
	Entries  int
	Uploads  int
	Destroys int
}

func (m *Manager) snapshot() []managed {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stores := make([]managed, 0, len(m.stores))
	for _, s := range m.stores {
		stores = append(stores, s)
	}
	return stores
}
