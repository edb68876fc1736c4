package catalog

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"smartfinder_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Provider supplies the loaded document.
type Provider interface {
	Get(ctx context.Context) (*Document, error)
}

type staticProvider struct {
	doc *Document
}

// NewStaticProvider serves an already-loaded document without any I/O.
func NewStaticProvider(doc *Document) Provider {
	return staticProvider{doc: doc}
}

func (p staticProvider) Get(context.Context) (*Document, error) {
	if p.doc == nil {
		return nil, unavailable("catalog.Get", errors.New("no document supplied"))
	}
	return p.doc, nil
}

// SourceProvider loads the document from a file or URL on first use and
// caches it. Concurrent first calls share one load. A failed load is not
// retried in the background; the next Get tries again.
type SourceProvider struct {
	source   string
	endpoint string
	client   *http.Client
	log      *logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	doc   *Document
}

// NewSourceProvider creates a provider for source. A non-empty endpoint
// overrides the document's api.endpoint.
func NewSourceProvider(source, endpoint string, client *http.Client, log *logger.Logger) *SourceProvider {
	return &SourceProvider{source: source, endpoint: endpoint, client: client, log: log}
}

func (p *SourceProvider) Get(ctx context.Context) (*Document, error) {
	p.mu.RLock()
	doc := p.doc
	p.mu.RUnlock()
	if doc != nil {
		return doc, nil
	}

	v, err, _ := p.group.Do(p.source, func() (interface{}, error) {
		loaded, err := Load(ctx, p.client, p.source)
		if err != nil {
			if p.log != nil {
				p.log.Error("smart finder config load failed", "source", p.source, "error", err)
			}
			return nil, err
		}
		if p.endpoint != "" {
			loaded.API.Endpoint = p.endpoint
		}
		if loaded.API.Endpoint == "" {
			return nil, unavailable("catalog.Get", errors.New("api.endpoint is not configured"))
		}

		p.mu.Lock()
		p.doc = loaded
		p.mu.Unlock()
		if p.log != nil {
			p.log.Info("smart finder config loaded", "source", p.source, "apps", loaded.Apps.Len(), "questions", len(loaded.Questions))
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}
