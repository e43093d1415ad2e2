package earthengine

import "testing"

func TestParseBoundingBox(t *testing.T) {
	b, err := ParseBoundingBox("-60, -5, -59, -4")
	if err != nil {
		t.Fatalf("ParseBoundingBox failed: %v", err)
	}
	want := BoundingBox{MinLon: -60, MinLat: -5, MaxLon: -59, MaxLat: -4}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestParseBoundingBoxErrors(t *testing.T) {
	for _, s := range []string{
		"1,2,3",
		"a,2,3,4",
		"-60,-95,-59,-4",
		"-181,-5,-59,-4",
		"-59,-5,-60,-4",
	} {
		if _, err := ParseBoundingBox(s); err == nil {
			t.Errorf("%q: expected error, got nil", s)
		}
	}
}

func TestDataSourcesCopies(t *testing.T) {
	ds := DataSources(nil)
	ds[0] = "changed"
	if DefaultDataSources[0] != "COPERNICUS/S2_SR" {
		t.Error("DataSources must not alias the defaults")
	}
	if got := DataSources([]string{"USGS/SRTMGL1_003"}); len(got) != 1 {
		t.Errorf("Expected configured list, got %v", got)
	}
}
