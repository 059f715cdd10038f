package crs

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const esriUTM33N = `PROJCS["WGS_1984_UTM_Zone_33N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",15.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

const ogcNAD83UTM15 = `PROJCS["NAD83 / UTM zone 15N",GEOGCS["NAD83",DATUM["North_American_Datum_1983",SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6269"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4269"]],PROJECTION["Transverse_Mercator"],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AUTHORITY["EPSG","26915"]]`

const esriGCSWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const esriWebMercator = `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Mercator_Auxiliary_Sphere"],UNIT["Meter",1.0]]`

const lambert = `PROJCS["NAD_1983_StatePlane_California_III_FIPS_0403",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],UNIT["Meter",1.0]]`

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"EPSG:4326", 4326},
		{"epsg:3857", 3857},
		{"32633", 32633},
		{"urn:ogc:def:crs:EPSG::26915", 26915},
		{"CRS84", 4326},
		{esriUTM33N, 32633},
	}
	for _, tt := range tests {
		c, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.EPSG, tt.in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "EPSG:", "EPSG:abc", "-4", lambert} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestFromWKT(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want int
	}{
		{"esri utm", esriUTM33N, 32633},
		{"ogc authority beats nested", ogcNAD83UTM15, 26915},
		{"esri geographic", esriGCSWGS84, 4326},
		{"web mercator", esriWebMercator, 3857},
		{"unsupported projection", lambert, 0},
		{"garbage", "not a wkt", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromWKT(tt.wkt)
			assert.Equal(t, tt.want, c.EPSG)
			assert.False(t, c.IsZero())
		})
	}
}

func TestFromWKT_Empty(t *testing.T) {
	assert.True(t, FromWKT("  ").IsZero())
}

func TestCRS_String(t *testing.T) {
	assert.Equal(t, "EPSG:4326", WGS84.String())
	assert.Equal(t, "absent", CRS{}.String())
	assert.Equal(t, "NAD_1983_StatePlane_California_III_FIPS_0403", FromWKT(lambert).String())
	assert.Equal(t, "WGS 84 / UTM zone 33N", FromEPSG(32633).Name)
}

func TestTransformer_SameSystemIsNil(t *testing.T) {
	proj, err := Transformer(WGS84, FromEPSG(4326))
	require.NoError(t, err)
	assert.Nil(t, proj)
}

func TestTransformer_Unresolvable(t *testing.T) {
	_, err := Transformer(FromWKT(lambert), WGS84)
	assert.Error(t, err)

	_, err = Transformer(FromEPSG(2154), WGS84)
	assert.Error(t, err)
	assert.False(t, Supported(FromEPSG(2154)))
	assert.True(t, Supported(FromEPSG(32633)))
}

func TestTransformer_UTMCentralMeridian(t *testing.T) {
	proj, err := Transformer(FromEPSG(32633), WGS84)
	require.NoError(t, err)

	p := proj(orb.Point{500000, 0})
	assert.InDelta(t, 15.0, p[0], 1e-9)
	assert.InDelta(t, 0.0, p[1], 1e-9)

	south, err := Transformer(FromEPSG(32733), WGS84)
	require.NoError(t, err)
	p = south(orb.Point{500000, 10000000})
	assert.InDelta(t, 15.0, p[0], 1e-9)
	assert.InDelta(t, 0.0, p[1], 1e-6)
}

func TestTransformer_UTMRoundTrip(t *testing.T) {
	fwd, err := Transformer(WGS84, FromEPSG(32631))
	require.NoError(t, err)
	inv, err := Transformer(FromEPSG(32631), WGS84)
	require.NoError(t, err)

	// Eiffel Tower, UTM zone 31N.
	in := orb.Point{2.2945, 48.8584}
	utm := fwd(in)
	assert.InDelta(t, 448252.00, utm[0], 0.5)
	assert.InDelta(t, 5411954.91, utm[1], 0.5)

	back := inv(utm)
	assert.InDelta(t, in[0], back[0], 1e-7)
	assert.InDelta(t, in[1], back[1], 1e-7)
}

func TestTransformer_WebMercator(t *testing.T) {
	proj, err := Transformer(FromEPSG(3857), WGS84)
	require.NoError(t, err)

	p := proj(orb.Point{0, 0})
	assert.InDelta(t, 0, p[0], 1e-9)
	assert.InDelta(t, 0, p[1], 1e-9)

	p = proj(orb.Point{20037508.342789244, 0})
	assert.InDelta(t, 180, p[0], 1e-6)
}

func TestTransformer_GeographicDatumsAreIdentity(t *testing.T) {
	proj, err := Transformer(FromEPSG(4269), WGS84)
	require.NoError(t, err)
	require.NotNil(t, proj)

	p := orb.Point{-93.25, 44.97}
	assert.Equal(t, p, proj(p))
}

func TestGeometry_DoesNotMutateInput(t *testing.T) {
	proj, err := Transformer(FromEPSG(3857), WGS84)
	require.NoError(t, err)

	ring := orb.Ring{{0, 0}, {100000, 0}, {100000, 100000}, {0, 0}}
	poly := orb.Polygon{ring}

	out := Geometry(poly, proj).(orb.Polygon)
	assert.Equal(t, orb.Point{100000, 0}, poly[0][1])
	assert.NotEqual(t, poly[0][1], out[0][1])

	assert.Nil(t, Geometry(nil, proj))
	assert.Equal(t, orb.Geometry(poly), Geometry(poly, nil))
}
