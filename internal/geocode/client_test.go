package geocode

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// zippopotamBody is a real-shaped provider response for 10001. Note the
// string coordinates and the space in "state abbreviation" — the decoder
// must handle both.
const zippopotamBody = `{
	"post code": "10001",
	"country": "United States",
	"places": [
		{"place name": "New York", "latitude": "40.7484",
		 "longitude": "-73.9967", "state": "New York", "state abbreviation": "NY"}
	]
}`

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/us/10001" {
			t.Errorf("request path = %q, want /us/10001", r.URL.Path)
		}
		w.Write([]byte(zippopotamBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	loc, err := client.Lookup(context.Background(), "10001")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if loc.Latitude != 40.7484 {
		t.Errorf("Latitude = %v, want 40.7484", loc.Latitude)
	}
	if loc.Longitude != -73.9967 {
		t.Errorf("Longitude = %v, want -73.9967", loc.Longitude)
	}
	if loc.State != "NY" {
		t.Errorf("State = %q, want %q", loc.State, "NY")
	}
}

func TestClientLookup_UnknownZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zippopotam answers 404 with an empty body for unknown zips
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	_, err := client.Lookup(context.Background(), "00000")
	if !errors.Is(err, ErrZipNotFound) {
		t.Errorf("Lookup() error = %v, want ErrZipNotFound", err)
	}
}

func TestClientLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	_, err := client.Lookup(context.Background(), "10001")
	if err == nil {
		t.Fatal("Lookup() should fail on a 500")
	}
	// A provider outage is NOT the same as an unknown zip — the cache layer
	// caches ErrZipNotFound but never transport errors.
	if errors.Is(err, ErrZipNotFound) {
		t.Error("a 500 must not be reported as ErrZipNotFound")
	}
}

func TestClientLookup_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places": [{"latitude": "not-a-number"`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	if _, err := client.Lookup(context.Background(), "10001"); err == nil {
		t.Fatal("Lookup() should fail on a truncated body")
	}
}

func TestClientLookup_EmptyPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"post code": "10001", "places": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	_, err := client.Lookup(context.Background(), "10001")
	if !errors.Is(err, ErrZipNotFound) {
		t.Errorf("Lookup() error = %v, want ErrZipNotFound for a 200 with no places", err)
	}
}

func TestClientLookup_NonNumericCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"places": [{"latitude": "forty", "longitude": "-73.9", "state abbreviation": "NY"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	if _, err := client.Lookup(context.Background(), "10001"); err == nil {
		t.Fatal("Lookup() should fail on non-numeric coordinates")
	}
}

func TestClientLookup_EscapesZipInPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, quietLogger())

	// A zip containing a slash must not become an extra path segment
	client.Lookup(context.Background(), "10001/evil")
	if gotPath != "/us/10001%2Fevil" {
		t.Errorf("request path = %q, want the slash escaped", gotPath)
	}
}

// =========================================================================
// DISTANCE AND BOUNDING BOX TESTS
// =========================================================================

func TestDistanceMiles(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // miles
		tolerance              float64
	}{
		{"same point", 40.7484, -73.9857, 40.7484, -73.9857, 0, 0.001},
		{"midtown to jersey city", 40.7484, -73.9857, 40.7178, -74.0431, 3.7, 0.5},
		{"nyc to la", 40.7128, -74.0060, 34.0522, -118.2437, 2445, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMiles(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if diff := got - tt.want; diff < -tt.tolerance || diff > tt.tolerance {
				t.Errorf("DistanceMiles() = %v, want %v ± %v", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	// Every point at exactly the radius must land inside the box.
	// Walk the circle in 30° steps and check.
	const (
		lat    = 40.7484
		lng    = -73.9857
		radius = 20.0
	)
	minLat, maxLat, minLng, maxLng := BoundingBox(lat, lng, radius)

	for deg := 0; deg < 360; deg += 30 {
		// Move ~radius miles in direction deg using the same flat-earth
		// approximation the box uses — close enough at 20 miles.
		bearing := float64(deg) * math.Pi / 180
		pLat := lat + (radius/69.0)*math.Cos(bearing)
		pLng := lng + (radius/(69.0*math.Cos(lat*math.Pi/180)))*math.Sin(bearing)

		if pLat < minLat || pLat > maxLat || pLng < minLng || pLng > maxLng {
			t.Errorf("point at bearing %d° (%f, %f) escaped box [%f,%f]x[%f,%f]",
				deg, pLat, pLng, minLat, maxLat, minLng, maxLng)
		}
	}
}

func TestBoundingBox_ClampsAtPoles(t *testing.T) {
	minLat, maxLat, _, maxLng := BoundingBox(89.9, 0, 100)
	if maxLat > 90 {
		t.Errorf("maxLat = %v, want clamped to 90", maxLat)
	}
	if minLat >= maxLat {
		t.Errorf("degenerate box: minLat %v >= maxLat %v", minLat, maxLat)
	}
	// Near the pole the box must span all longitudes
	if maxLng != 180 {
		t.Errorf("maxLng = %v, want 180 near the pole", maxLng)
	}
}
