package dictionary

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryDictionary keeps every dump in memory. It is safe for concurrent
// use.
type MemoryDictionary struct {
	mu      sync.RWMutex
	objects map[string]Dump     // lower(object) -> dump
	classes map[string][]string // lower(class) -> lower(object), sorted
}

// NewMemory returns a dictionary holding dumps.
func NewMemory(dumps ...Dump) *MemoryDictionary {
	m := &MemoryDictionary{
		objects: make(map[string]Dump),
		classes: make(map[string][]string),
	}
	for _, d := range dumps {
		m.Add(d)
	}
	return m
}

// Add stores d, replacing any earlier dump of the same object.
func (m *MemoryDictionary) Add(d Dump) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(d.Object)
	if old, ok := m.objects[key]; ok {
		oc := strings.ToLower(old.Class)
		m.classes[oc] = slices.DeleteFunc(m.classes[oc], func(s string) bool { return s == key })
	}
	m.objects[key] = d
	class := strings.ToLower(d.Class)
	list := m.classes[class]
	i, _ := slices.BinarySearch(list, key)
	m.classes[class] = slices.Insert(list, i, key)
}

// AddClass registers a class that has no dumps yet.
func (m *MemoryDictionary) AddClass(class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[strings.ToLower(class)]; !ok {
		m.classes[strings.ToLower(class)] = nil
	}
}

// ObjectClass implements Dictionary.
func (m *MemoryDictionary) ObjectClass(_ context.Context, object string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.objects[strings.ToLower(object)]
	return d.Class, ok, nil
}

// StreamDumpsOfClass implements Dictionary.
func (m *MemoryDictionary) StreamDumpsOfClass(ctx context.Context, class string, fn func(Dump) error) error {
	m.mu.RLock()
	keys := slices.Clone(m.classes[strings.ToLower(class)])
	dumps := make([]Dump, len(keys))
	for i, k := range keys {
		dumps[i] = m.objects[k]
	}
	m.mu.RUnlock()

	for _, d := range dumps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// IsClass implements Dictionary.
func (m *MemoryDictionary) IsClass(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.classes[strings.ToLower(name)]
	return ok, nil
}

// Len returns the number of objects.
func (m *MemoryDictionary) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Dictionary = (*MemoryDictionary)(nil)
