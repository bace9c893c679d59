package stores

import (
	"context"
	"io"
	"time"

	"github.com/openfroyo/nifictl/pkg/rdf"
)

// Document records one parsed input document.
type Document struct {
	ID       string     `json:"id"`
	Source   string     `json:"source"`
	Scope    string     `json:"scope"`
	Format   rdf.Format `json:"format"`
	Triples  int        `json:"triples"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// GraphStore is the full surface of a triple store used by the CLI.
type GraphStore interface {
	Load(ctx context.Context, r io.Reader, format rdf.Format, source string) (*Document, error)
	LoadFile(ctx context.Context, path string) (*Document, error)
	Insert(ctx context.Context, tr rdf.Triple) error
	Query(ctx context.Context, p rdf.Pattern) ([]rdf.Solution, error)
	Triples(ctx context.Context) ([]rdf.Triple, error)
	Export(ctx context.Context, w io.Writer, format rdf.Format) error
	Count(ctx context.Context) (int, error)
	Documents(ctx context.Context) ([]*Document, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

var _ GraphStore = (*SQLiteStore)(nil)
