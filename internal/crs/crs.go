// Package crs identifies coordinate reference systems from EPSG identifiers
// and .prj WKT, and builds point transforms between the supported ones.
package crs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// WGS84 is the geographic CRS used for display.
var WGS84 = CRS{EPSG: 4326, Name: "WGS 84"}

// CRS identifies a coordinate reference system. The zero value means the CRS
// is absent. A CRS with WKT but no EPSG code was declared but not recognized.
type CRS struct {
	EPSG int    `json:"epsg,omitempty" yaml:"epsg,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	WKT  string `json:"-" yaml:"-"`
}

// IsZero reports whether no CRS was declared.
func (c CRS) IsZero() bool {
	return c.EPSG == 0 && c.WKT == "" && c.Name == ""
}

// Known reports whether the CRS resolved to an EPSG code.
func (c CRS) Known() bool {
	return c.EPSG != 0
}

// Equal compares by EPSG code; unresolved CRSs are never equal.
func (c CRS) Equal(o CRS) bool {
	return c.Known() && c.EPSG == o.EPSG
}

func (c CRS) String() string {
	switch {
	case c.Known():
		return fmt.Sprintf("EPSG:%d", c.EPSG)
	case c.Name != "":
		return c.Name
	case c.WKT != "":
		return "unrecognized WKT"
	default:
		return "absent"
	}
}

// FromEPSG builds a CRS from a code, filling in the name of supported systems.
func FromEPSG(code int) CRS {
	return CRS{EPSG: code, Name: nameOf(code)}
}

// Parse resolves an identifier such as "EPSG:4326", "4326",
// "urn:ogc:def:crs:EPSG::32633", "CRS84" or a WKT definition.
func Parse(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CRS{}, eris.New("crs: empty identifier")
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "GEOGCS[") || strings.HasPrefix(upper, "PROJCS[") ||
		strings.HasPrefix(upper, "GEOGCRS[") || strings.HasPrefix(upper, "PROJCRS[") {
		c := FromWKT(s)
		if !c.Known() {
			return c, eris.Errorf("crs: unrecognized WKT %q", abbreviate(s))
		}
		return c, nil
	}

	switch upper {
	case "CRS84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84", "WGS84":
		return WGS84, nil
	}

	code := upper
	for _, prefix := range []string{"URN:OGC:DEF:CRS:EPSG::", "URN:OGC:DEF:CRS:EPSG:", "EPSG:"} {
		if strings.HasPrefix(code, prefix) {
			code = strings.TrimPrefix(code, prefix)
			break
		}
	}

	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return CRS{}, eris.Errorf("crs: cannot parse identifier %q", s)
	}
	return FromEPSG(n), nil
}

var (
	authorityRe = regexp.MustCompile(`(?i)^(?:AUTHORITY|ID)\[\s*"EPSG"\s*,\s*"?(\d+)"?`)
	utmZoneRe   = regexp.MustCompile(`(?i)UTM[ _]+zone[ _]+(\d{1,2})\s*([NS])?`)
	rootNameRe  = regexp.MustCompile(`^\s*([A-Za-z]+)\[\s*"([^"]*)"`)
)

// FromWKT identifies the CRS described by a .prj WKT string. The result
// always carries the WKT; EPSG is 0 when the definition is not recognized.
func FromWKT(wkt string) CRS {
	wkt = strings.TrimSpace(strings.TrimPrefix(wkt, "\ufeff"))
	c := CRS{WKT: wkt}
	if wkt == "" {
		return c
	}

	m := rootNameRe.FindStringSubmatch(wkt)
	if m == nil {
		return c
	}
	root, name := strings.ToUpper(m[1]), m[2]
	c.Name = name

	if code := topLevelAuthority(wkt); code != 0 {
		c.EPSG = code
		return c
	}

	upperAll := strings.ToUpper(wkt)
	switch root {
	case "GEOGCS", "GEOGCRS", "GEODCRS":
		c.EPSG = geographicCode(upperAll)
	case "PROJCS", "PROJCRS":
		upperName := strings.ToUpper(name)
		switch {
		case strings.Contains(upperAll, "MERCATOR_AUXILIARY_SPHERE"),
			strings.Contains(upperName, "PSEUDO-MERCATOR"),
			strings.Contains(upperName, "POPULAR VISUALISATION"),
			strings.Contains(upperName, "GOOGLE MAPS GLOBAL MERCATOR"),
			strings.Contains(upperName, "WEB_MERCATOR"):
			c.EPSG = 3857
		default:
			c.EPSG = utmCode(name, upperAll)
		}
	}
	return c
}

// topLevelAuthority returns the EPSG code attached directly to the root
// element, ignoring authorities of nested datum or GEOGCS nodes.
func topLevelAuthority(wkt string) int {
	depth := 0
	for i := 0; i < len(wkt); i++ {
		switch wkt[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case '"':
			// Skip quoted names; they may contain brackets.
			if j := strings.IndexByte(wkt[i+1:], '"'); j >= 0 {
				i += j + 1
			}
		default:
			if depth != 1 || (i > 0 && isLetter(wkt[i-1])) {
				continue
			}
			if m := authorityRe.FindStringSubmatch(wkt[i:]); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}

func geographicCode(upper string) int {
	switch {
	case strings.Contains(upper, "WGS_1984"), strings.Contains(upper, "WGS 84"), strings.Contains(upper, "WGS84"):
		return 4326
	case strings.Contains(upper, "NORTH_AMERICAN_1983"), strings.Contains(upper, "NAD83"), strings.Contains(upper, "NAD_1983"):
		return 4269
	case strings.Contains(upper, "ETRS89"), strings.Contains(upper, "ETRS_1989"),
		strings.Contains(upper, "EUROPEAN_TERRESTRIAL_REFERENCE_SYSTEM_1989"):
		return 4258
	}
	return 0
}

func utmCode(name, upperAll string) int {
	m := utmZoneRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	zone, _ := strconv.Atoi(m[1])
	if zone < 1 || zone > 60 {
		return 0
	}
	south := strings.EqualFold(m[2], "S")

	switch geographicCode(upperAll) {
	case 4326:
		if south {
			return 32700 + zone
		}
		return 32600 + zone
	case 4269:
		if !south && zone <= 23 {
			return 26900 + zone
		}
	case 4258:
		if !south && zone >= 28 && zone <= 38 {
			return 25800 + zone
		}
	}
	return 0
}

func abbreviate(s string) string {
	if len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}
