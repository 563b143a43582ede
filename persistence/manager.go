package persistence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cmunell/featurespace/blobstore"
	"github.com/cmunell/featurespace/codec"
	"github.com/cmunell/featurespace/resource"
)

// Extension is appended to document names that have none.
const Extension = ".fsd"

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCompression sets the compression of saved documents (default zstd).
func WithCompression(c codec.Compression) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.comp = c
		}
	}
}

// WithResourceController throttles document IO by rc's IO limit.
func WithResourceController(rc *resource.Controller) ManagerOption {
	return func(m *Manager) { m.rc = rc }
}

// WithLogger sets the logger. If nil, logging is discarded.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager saves and loads documents on a blob store. It is safe for
// concurrent use when the store is.
type Manager struct {
	store  blobstore.Store
	comp   codec.Compression
	rc     *resource.Controller
	logger *slog.Logger
}

// NewManager creates a manager over store.
func NewManager(store blobstore.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		comp:   codec.Zstd,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying blob store.
func (m *Manager) Store() blobstore.Store { return m.store }

// Compression returns the compression of saved documents.
func (m *Manager) Compression() codec.Compression { return m.comp }

func blobName(name string) string {
	if strings.Contains(name[strings.LastIndex(name, "/")+1:], ".") {
		return name
	}
	return name + Extension
}

// Save encodes doc and writes it under name.
func (m *Manager) Save(ctx context.Context, name string, doc *Document) error {
	start := time.Now()
	var buf bytes.Buffer
	if err := Encode(resource.NewRateLimitedWriter(ctx, &buf, m.rc), doc, m.comp); err != nil {
		return fmt.Errorf("persistence: save %q: %w", name, err)
	}
	if err := m.store.Put(ctx, blobName(name), buf.Bytes()); err != nil {
		return fmt.Errorf("persistence: save %q: %w", name, err)
	}
	m.logger.InfoContext(ctx, "document saved",
		"name", blobName(name),
		"sections", len(doc.Sections()),
		"bytes", buf.Len(),
		"codec", doc.Codec().Name(),
		"compression", m.comp.Name(),
		"duration", time.Since(start),
	)
	return nil
}

// Load reads and decodes the document saved under name.
func (m *Manager) Load(ctx context.Context, name string) (*Document, error) {
	start := time.Now()
	data, err := m.store.Get(ctx, blobName(name))
	if err != nil {
		return nil, fmt.Errorf("persistence: load %q: %w", name, err)
	}
	doc, err := Decode(resource.NewRateLimitedReader(ctx, bytes.NewReader(data), m.rc))
	if err != nil {
		return nil, fmt.Errorf("persistence: load %q: %w", name, err)
	}
	m.logger.DebugContext(ctx, "document loaded",
		"name", blobName(name),
		"sections", len(doc.Sections()),
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return doc, nil
}

// List returns the names of stored documents under prefix.
func (m *Manager) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, Extension) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Delete removes the document saved under name.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.store.Delete(ctx, blobName(name))
}
