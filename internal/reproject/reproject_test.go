package reproject

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/crs"
	"github.com/sells-group/geomap/internal/dataset"
	"github.com/sells-group/geomap/internal/geoerr"
)

func collection(c crs.CRS, geoms ...orb.Geometry) *dataset.FeatureCollection {
	fc := &dataset.FeatureCollection{CRS: c, Source: "units.shp"}
	for i, g := range geoms {
		fc.Features = append(fc.Features, dataset.Feature{Index: i, Geometry: g, Properties: map[string]any{"GLG": "Qal"}})
	}
	return fc
}

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New("EPSG:4326", "EPSG:4326")
	require.NoError(t, err)
	return n
}

func TestNew_RejectsBadIdentifiers(t *testing.T) {
	_, err := New("EPSG:nope", "EPSG:4326")
	assert.Error(t, err)

	_, err = New("EPSG:2056", "EPSG:4326")
	assert.Error(t, err, "unsupported canonical crs")

	_, err = New("EPSG:4326", "")
	assert.Error(t, err)
}

func TestNormalize_SameCRSIsPassThrough(t *testing.T) {
	poly := orb.Polygon{{{-122.4, 37.7}, {-122.4, 37.8}, {-122.3, 37.8}, {-122.4, 37.7}}}
	fc := collection(crs.WGS84, poly, nil)

	var notices geoerr.Notices
	out, err := newNormalizer(t).Normalize(fc, &notices)
	require.NoError(t, err)

	assert.Equal(t, 4326, out.CRS.EPSG)
	assert.Equal(t, poly, out.Features[0].Geometry)
	assert.Nil(t, out.Features[1].Geometry)
	assert.Equal(t, 0, notices.Len())

	// Running twice changes nothing.
	again, err := newNormalizer(t).Normalize(out, &notices)
	require.NoError(t, err)
	assert.Equal(t, out.Features, again.Features)
}

func TestNormalize_UTMToWGS84(t *testing.T) {
	// Central meridian of zone 33 on the equator.
	fc := collection(crs.FromEPSG(32633), orb.Point{500000, 0}, orb.LineString{{500000, 0}, {500000, 1000}})

	out, err := newNormalizer(t).Normalize(fc, nil)
	require.NoError(t, err)

	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 15.0, p.Lon(), 1e-9)
	assert.InDelta(t, 0.0, p.Lat(), 1e-9)
	assert.Equal(t, 4326, out.CRS.EPSG)
	assert.Equal(t, "Qal", out.Features[0].Properties["GLG"])

	// Input untouched.
	assert.Equal(t, orb.Point{500000, 0}, fc.Features[0].Geometry)
	assert.Equal(t, 32633, fc.CRS.EPSG)
}

func TestNormalize_WebMercator(t *testing.T) {
	fc := collection(crs.FromEPSG(3857), orb.Point{0, 0})

	out, err := newNormalizer(t).Normalize(fc, nil)
	require.NoError(t, err)
	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 0, p.Lon(), 1e-9)
	assert.InDelta(t, 0, p.Lat(), 1e-9)
}

func TestNormalize_AbsentCRSAssignsDefault(t *testing.T) {
	n, err := New("EPSG:4326", "EPSG:4326")
	require.NoError(t, err)

	pt := orb.Point{10, 20}
	var notices geoerr.Notices
	out, err := n.Normalize(collection(crs.CRS{}, pt), &notices)
	require.NoError(t, err)

	assert.Equal(t, pt, out.Features[0].Geometry, "coordinates are not moved")
	assert.Equal(t, 4326, out.CRS.EPSG)
	require.Equal(t, 1, notices.Len())
	notice := notices.List()[0]
	assert.Equal(t, -1, notice.Feature)
	assert.Equal(t, "reproject", notice.Stage)
	assert.Contains(t, notice.Message, "EPSG:4326")
}

func TestNormalize_AbsentCRSWithProjectedDefault(t *testing.T) {
	n, err := New("EPSG:4326", "EPSG:3857")
	require.NoError(t, err)

	// Coordinates are read as EPSG:3857 metres and projected to degrees.
	var notices geoerr.Notices
	out, err := n.Normalize(collection(crs.CRS{}, orb.Point{111319.49079327357, 0}), &notices)
	require.NoError(t, err)
	assert.Equal(t, 1, notices.Len())
	assert.Equal(t, 4326, out.CRS.EPSG)

	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 1.0, p[0], 1e-9)
	assert.InDelta(t, 0.0, p[1], 1e-9)
}

func TestNormalize_UnrecognizedWKT(t *testing.T) {
	fc := collection(crs.FromWKT(`PROJCS["Lambert_Conformal_Conic_Custom",GEOGCS["GCS_WGS_1984"]]`), orb.Point{1, 1})

	_, err := newNormalizer(t).Normalize(fc, nil)
	require.Error(t, err)
	assert.True(t, geoerr.Is(err, geoerr.UnsupportedProjection))
}

func TestNormalize_KnownButUnsupported(t *testing.T) {
	fc := collection(crs.FromEPSG(2056), orb.Point{2600000, 1200000})

	_, err := newNormalizer(t).Normalize(fc, nil)
	require.Error(t, err)
	assert.True(t, geoerr.Is(err, geoerr.UnsupportedProjection))
}
