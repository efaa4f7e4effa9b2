package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/metrics"
)

// ServiceConfig configures NewService.
type ServiceConfig struct {
	// StudentsCollection defaults to StudentsCollection.
	StudentsCollection   string
	MaxConcurrentImports int
	ImportWait           time.Duration
	Metrics              *metrics.Metrics
	Clock                Clock
}

// Service wires the directory, the importer and the import limiter over
// one store.
type Service struct {
	Directory *Directory
	Importer  *Importer
	Limiter   *ImportLimiter
}

// NewService builds a Service over store.
func NewService(store docstore.Store, cfg ServiceConfig) *Service {
	name := cfg.StudentsCollection
	if name == "" {
		name = StudentsCollection
	}
	dir := NewDirectory(store.Collection(name), cfg.Clock)
	return &Service{
		Directory: dir,
		Importer:  NewImporter(dir, cfg.Clock, cfg.Metrics),
		Limiter:   NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWait),
	}
}

// Import runs one import under the concurrency limit.
func (s *Service) Import(ctx context.Context, name string, r io.Reader) (ImportResult, error) {
	if err := s.Limiter.Acquire(ctx); err != nil {
		return ImportResult{}, err
	}
	defer s.Limiter.Release()
	return s.Importer.Import(ctx, name, r)
}
