package persistence

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cmunell/featurespace/codec"
)

// Document is a set of named, codec-encoded sections. It is safe for
// concurrent use.
type Document struct {
	mu       sync.RWMutex
	codec    codec.Codec
	sections map[string][]byte
}

// NewDocument creates an empty document. A nil codec selects codec.Default.
func NewDocument(c codec.Codec) *Document {
	if c == nil {
		c = codec.Default
	}
	return &Document{codec: c, sections: make(map[string][]byte)}
}

// Codec returns the section codec.
func (d *Document) Codec() codec.Codec { return d.codec }

// Put encodes v into section name, replacing any previous content.
func (d *Document) Put(name string, v any) error {
	if name == "" {
		return fmt.Errorf("persistence: empty section name")
	}
	b, err := d.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: encode section %q: %w", name, err)
	}
	d.mu.Lock()
	d.sections[name] = b
	d.mu.Unlock()
	return nil
}

// Get decodes section name into v. It returns false, and leaves v untouched,
// if the section is absent.
func (d *Document) Get(name string, v any) (bool, error) {
	d.mu.RLock()
	b, ok := d.sections[name]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := d.codec.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("%w: section %q: %v", ErrCorrupt, name, err)
	}
	return true, nil
}

// Has reports whether section name is present.
func (d *Document) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sections[name]
	return ok
}

// Raw returns the encoded bytes of section name.
func (d *Document) Raw(name string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.sections[name]
	return b, ok
}

// Delete removes section name.
func (d *Document) Delete(name string) {
	d.mu.Lock()
	delete(d.sections, name)
	d.mu.Unlock()
}

// Sections returns the sorted section names.
func (d *Document) Sections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sections))
	for n := range d.sections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Size returns the total encoded size of all sections.
func (d *Document) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var n int
	for name, b := range d.sections {
		n += len(name) + len(b)
	}
	return n
}
