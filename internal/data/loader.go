// Package data loads the SE polygon and concession point datasets once per
// process and keeps them for its lifetime.
package data

import (
	"context"
	"log"
	"time"

	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/data/concession"
	"github.com/se-atlas/server/internal/data/sezone"
	"github.com/se-atlas/server/internal/metrics"
)

// Source provides raw dataset bytes for a URL.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Loader memoizes parsed datasets by source URL. A restart (or an explicit
// Invalidate) is required to pick up upstream changes.
type Loader struct {
	src         Source
	pointOpts   concession.Options
	zones       *cache.Memo[*sezone.Dataset]
	concessions *cache.Memo[*concession.Dataset]
}

// NewLoader creates a loader reading through src.
func NewLoader(src Source, pointOpts concession.Options) *Loader {
	return &Loader{
		src:         src,
		pointOpts:   pointOpts,
		zones:       cache.NewMemo[*sezone.Dataset](),
		concessions: cache.NewMemo[*concession.Dataset](),
	}
}

// Zones returns the polygon dataset behind url.
func (l *Loader) Zones(ctx context.Context, url string) (*sezone.Dataset, error) {
	return l.zones.Get(ctx, url, func(ctx context.Context) (*sezone.Dataset, error) {
		start := time.Now()
		ds, err := sezone.Load(ctx, l.src, url)
		metrics.ObserveLoad("zones", start, err)
		if err != nil {
			return nil, err
		}
		metrics.DatasetRecords.WithLabelValues("zones").Set(float64(len(ds.Zones)))
		metrics.DroppedRecords.WithLabelValues("zones").Add(float64(ds.Dropped))
		log.Printf("[Loader] zones: %d loaded, %d dropped from %s", len(ds.Zones), ds.Dropped, url)
		return ds, nil
	})
}

// Concessions returns the point dataset behind url.
func (l *Loader) Concessions(ctx context.Context, url string) (*concession.Dataset, error) {
	return l.concessions.Get(ctx, url, func(ctx context.Context) (*concession.Dataset, error) {
		start := time.Now()
		ds, err := concession.Load(ctx, l.src, url, l.pointOpts)
		metrics.ObserveLoad("concessions", start, err)
		if err != nil {
			return nil, err
		}
		metrics.DatasetRecords.WithLabelValues("concessions").Set(float64(len(ds.Concessions)))
		metrics.DroppedRecords.WithLabelValues("concessions").Add(float64(ds.Dropped))
		log.Printf("[Loader] concessions: %d loaded, %d dropped from %s", len(ds.Concessions), ds.Dropped, url)
		return ds, nil
	})
}

// Invalidate forgets any dataset cached for url.
func (l *Loader) Invalidate(url string) {
	l.zones.Invalidate(url)
	l.concessions.Invalidate(url)
}

// Cached lists the URLs currently held, per dataset kind.
func (l *Loader) Cached() map[string][]string {
	return map[string][]string{
		"zones":       l.zones.Keys(),
		"concessions": l.concessions.Keys(),
	}
}
