package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
)

type family int

const (
	familyUnsupported family = iota
	familyGeographic
	familyWebMercator
	familyUTM
)

// system describes how a supported EPSG code relates to WGS84.
type system struct {
	family family
	name   string
	zone   int
	south  bool
	ellps  ellipsoid
}

type ellipsoid struct {
	a float64 // semi-major axis, metres
	f float64 // flattening
}

var (
	wgs84Ellipsoid = ellipsoid{a: 6378137, f: 1 / 298.257223563}
	grs80Ellipsoid = ellipsoid{a: 6378137, f: 1 / 298.257222101}
)

// lookup resolves a code to a supported system. NAD83 and ETRS89 geographic
// coordinates are treated as WGS84: their offset is below display precision.
func lookup(code int) (system, bool) {
	switch code {
	case 4326:
		return system{family: familyGeographic, name: "WGS 84"}, true
	case 4269:
		return system{family: familyGeographic, name: "NAD83"}, true
	case 4258:
		return system{family: familyGeographic, name: "ETRS89"}, true
	case 3857, 900913, 3785, 102100, 102113:
		return system{family: familyWebMercator, name: "WGS 84 / Pseudo-Mercator"}, true
	}

	switch {
	case code > 32600 && code <= 32660:
		z := code - 32600
		return system{family: familyUTM, zone: z, ellps: wgs84Ellipsoid,
			name: fmt.Sprintf("WGS 84 / UTM zone %dN", z)}, true
	case code > 32700 && code <= 32760:
		z := code - 32700
		return system{family: familyUTM, zone: z, south: true, ellps: wgs84Ellipsoid,
			name: fmt.Sprintf("WGS 84 / UTM zone %dS", z)}, true
	case code > 26900 && code <= 26923:
		z := code - 26900
		return system{family: familyUTM, zone: z, ellps: grs80Ellipsoid,
			name: fmt.Sprintf("NAD83 / UTM zone %dN", z)}, true
	case code >= 25828 && code <= 25838:
		z := code - 25800
		return system{family: familyUTM, zone: z, ellps: grs80Ellipsoid,
			name: fmt.Sprintf("ETRS89 / UTM zone %dN", z)}, true
	}
	return system{}, false
}

func nameOf(code int) string {
	if s, ok := lookup(code); ok {
		return s.name
	}
	return ""
}

// Supported reports whether transforms to and from c are available.
func Supported(c CRS) bool {
	_, ok := lookup(c.EPSG)
	return c.Known() && ok
}

// Transformer returns the point projection from src to dst. It returns a nil
// projection when src and dst are the same system.
func Transformer(src, dst CRS) (orb.Projection, error) {
	if !src.Known() {
		return nil, eris.Errorf("crs: source %s is not resolvable", src)
	}
	if !dst.Known() {
		return nil, eris.Errorf("crs: target %s is not resolvable", dst)
	}
	if src.EPSG == dst.EPSG {
		return nil, nil
	}

	from, ok := lookup(src.EPSG)
	if !ok {
		return nil, eris.Errorf("crs: no transform from %s", src)
	}
	to, ok := lookup(dst.EPSG)
	if !ok {
		return nil, eris.Errorf("crs: no transform to %s", dst)
	}

	toWGS := from.toWGS84()
	fromWGS := to.fromWGS84()

	switch {
	case toWGS == nil && fromWGS == nil:
		return identity, nil
	case toWGS == nil:
		return fromWGS, nil
	case fromWGS == nil:
		return toWGS, nil
	}
	return func(p orb.Point) orb.Point { return fromWGS(toWGS(p)) }, nil
}

func identity(p orb.Point) orb.Point { return p }

// Geometry applies proj to a copy of g. The input is never modified.
func Geometry(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if g == nil || proj == nil {
		return g
	}
	return project.Geometry(orb.Clone(g), proj)
}

// toWGS84 returns nil for geographic systems.
func (s system) toWGS84() orb.Projection {
	switch s.family {
	case familyWebMercator:
		return project.Mercator.ToWGS84
	case familyUTM:
		tm := newTransverseMercator(s.ellps, s.zone, s.south)
		return tm.inverse
	}
	return nil
}

// fromWGS84 returns nil for geographic systems.
func (s system) fromWGS84() orb.Projection {
	switch s.family {
	case familyWebMercator:
		return project.WGS84.ToMercator
	case familyUTM:
		tm := newTransverseMercator(s.ellps, s.zone, s.south)
		return tm.forward
	}
	return nil
}

// transverseMercator implements the UTM projection using the series
// expansions in Snyder, "Map Projections: A Working Manual" (1987), pp. 60-64.
type transverseMercator struct {
	a, e2, ep2 float64
	k0         float64
	lon0       float64 // radians
	falseEast  float64
	falseNorth float64
}

func newTransverseMercator(el ellipsoid, zone int, south bool) transverseMercator {
	e2 := el.f * (2 - el.f)
	tm := transverseMercator{
		a:         el.a,
		e2:        e2,
		ep2:       e2 / (1 - e2),
		k0:        0.9996,
		lon0:      float64(zone*6-183) * math.Pi / 180,
		falseEast: 500000,
	}
	if south {
		tm.falseNorth = 10000000
	}
	return tm
}

// meridianArc is the distance along the meridian from the equator to lat.
func (tm transverseMercator) meridianArc(lat float64) float64 {
	e2 := tm.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return tm.a * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))
}

// forward maps (lon, lat) degrees to (easting, northing) metres.
func (tm transverseMercator) forward(p orb.Point) orb.Point {
	lat := p[1] * math.Pi / 180
	lon := p[0] * math.Pi / 180

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	tanLat := math.Tan(lat)

	n := tm.a / math.Sqrt(1-tm.e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := tm.ep2 * cosLat * cosLat
	a := (lon - tm.lon0) * cosLat
	m := tm.meridianArc(lat)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := tm.k0*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*tm.ep2)*a5/120) + tm.falseEast
	y := tm.k0*(m+n*tanLat*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*tm.ep2)*a6/720)) + tm.falseNorth

	return orb.Point{x, y}
}

// inverse maps (easting, northing) metres to (lon, lat) degrees.
func (tm transverseMercator) inverse(p orb.Point) orb.Point {
	e2 := tm.e2
	e4 := e2 * e2
	e6 := e4 * e2

	m := (p[1] - tm.falseNorth) / tm.k0
	mu := m / (tm.a * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	e12 := e1 * e1
	e13 := e12 * e1
	e14 := e13 * e1

	lat1 := mu +
		(3*e1/2-27*e13/32)*math.Sin(2*mu) +
		(21*e12/16-55*e14/32)*math.Sin(4*mu) +
		(151*e13/96)*math.Sin(6*mu) +
		(1097*e14/512)*math.Sin(8*mu)

	sinLat1, cosLat1 := math.Sin(lat1), math.Cos(lat1)
	tanLat1 := math.Tan(lat1)

	c1 := tm.ep2 * cosLat1 * cosLat1
	t1 := tanLat1 * tanLat1
	denom := 1 - e2*sinLat1*sinLat1
	n1 := tm.a / math.Sqrt(denom)
	r1 := tm.a * (1 - e2) / math.Pow(denom, 1.5)
	d := (p[0] - tm.falseEast) / (n1 * tm.k0)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	lat := lat1 - (n1*tanLat1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*tm.ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*tm.ep2-3*c1*c1)*d6/720)
	lon := tm.lon0 + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*tm.ep2+24*t1*t1)*d5/120)/cosLat1

	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}
