// Package reproject brings a feature collection into the display CRS.
package reproject

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

const stage = "reproject"

// Normalizer converts collections to a canonical CRS. Collections without a
// declared CRS are assumed to already be in the default CRS.
type Normalizer struct {
	canonical crs.CRS
	fallback  crs.CRS
}

// New builds a Normalizer from CRS identifiers such as "EPSG:4326".
func New(canonical, fallback string) (*Normalizer, error) {
	c, err := crs.Parse(canonical)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: canonical crs")
	}
	if !crs.Supported(c) {
		return nil, eris.Errorf("reproject: canonical crs %s is not supported", c)
	}
	f, err := crs.Parse(fallback)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: default crs")
	}
	return &Normalizer{canonical: c, fallback: f}, nil
}

// Canonical returns the target CRS.
func (n *Normalizer) Canonical() crs.CRS {
	return n.canonical
}

// Normalize returns a collection in the canonical CRS. The input is left
// untouched. When fc has no CRS its coordinates are read in the default CRS,
// projected to the canonical one if the two differ, and a notice is recorded.
func (n *Normalizer) Normalize(fc *dataset.FeatureCollection, notices *geoerr.Notices) (*dataset.FeatureCollection, error) {
	log := zap.L().With(zap.String("component", "reproject"), zap.String("source", fc.Source))

	src := fc.CRS
	if src.IsZero() {
		src = n.fallback
		msg := "dataset has no .prj; assuming " + n.fallback.String()
		log.Warn("crs absent, assigning default", zap.String("default_crs", n.fallback.String()))
		if notices != nil {
			notices.Add(geoerr.Notice{Stage: stage, Kind: geoerr.UnsupportedProjection, Feature: -1, Message: msg})
		}
	}

	if !src.Known() {
		return nil, geoerr.Errorf(geoerr.UnsupportedProjection, stage,
			"reproject: cannot identify source crs %s", src)
	}

	proj, err := crs.Transformer(src, n.canonical)
	if err != nil {
		return nil, geoerr.New(geoerr.UnsupportedProjection, stage, err)
	}

	if proj == nil {
		out := fc.WithFeatures(fc.Features)
		out.CRS = n.canonical
		log.Debug("crs already canonical", zap.String("crs", n.canonical.String()))
		return out, nil
	}

	features := make([]dataset.Feature, len(fc.Features))
	for i, f := range fc.Features {
		features[i] = dataset.Feature{
			Index:      f.Index,
			Geometry:   crs.Geometry(f.Geometry, proj),
			Properties: f.Properties,
		}
	}

	out := fc.WithFeatures(features)
	out.CRS = n.canonical
	log.Info("reprojected features",
		zap.String("from", src.String()),
		zap.String("to", n.canonical.String()),
		zap.Int("features", len(features)),
	)
	return out, nil
}
