package models

import "math"

const kmPerDegree = 111.32

// BoundingBox is a lat/lng rectangle centred on a query point. Longitude
// bounds may extend past ±180; Contains and LngRanges handle the wrap.
type BoundingBox struct {
	CenterLat float64
	CenterLng float64
	DeltaLat  float64
	DeltaLng  float64
}

// NewBoundingBox returns the box whose half side is halfSideKm, measured
// along the meridian for latitude and along the parallel of lat for
// longitude.
func NewBoundingBox(lat, lng, halfSideKm float64) BoundingBox {
	dLat := halfSideKm / kmPerDegree
	dLng := 180.0
	if cos := math.Cos(lat * math.Pi / 180); cos > 1e-9 {
		dLng = math.Min(180, halfSideKm/(kmPerDegree*cos))
	}
	return BoundingBox{CenterLat: lat, CenterLng: lng, DeltaLat: dLat, DeltaLng: dLng}
}

func (b BoundingBox) MinLat() float64 { return math.Max(-90, b.CenterLat-b.DeltaLat) }
func (b BoundingBox) MaxLat() float64 { return math.Min(90, b.CenterLat+b.DeltaLat) }

// Contains reports whether (lat, lng) lies inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat() || lat > b.MaxLat() {
		return false
	}
	if b.DeltaLng >= 180 {
		return true
	}
	return lngDistance(lng, b.CenterLng) <= b.DeltaLng
}

// LngRanges splits the longitude span into at most two [min, max] ranges
// inside [-180, 180]. A nil result means every longitude matches.
func (b BoundingBox) LngRanges() [][2]float64 {
	if b.DeltaLng >= 180 {
		return nil
	}
	min, max := b.CenterLng-b.DeltaLng, b.CenterLng+b.DeltaLng
	switch {
	case min < -180:
		return [][2]float64{{-180, max}, {min + 360, 180}}
	case max > 180:
		return [][2]float64{{min, 180}, {-180, max - 360}}
	default:
		return [][2]float64{{min, max}}
	}
}

// WidthKm and HeightKm give the box extent for backends that search in
// kilometres. The width is taken along the widest parallel the box covers.
func (b BoundingBox) WidthKm() float64 {
	widest := 0.0
	if b.MinLat() > 0 {
		widest = b.MinLat()
	} else if b.MaxLat() < 0 {
		widest = -b.MaxLat()
	}
	return 2 * b.DeltaLng * kmPerDegree * math.Cos(widest*math.Pi/180)
}

func (b BoundingBox) HeightKm() float64 {
	return 2 * b.DeltaLat * kmPerDegree
}

func lngDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
