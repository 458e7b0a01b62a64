package checksum

import "testing"

func TestOf_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"id": "1", "status": "vip", "points": 10.0}
	b := map[string]any{"points": 10.0, "status": "vip", "id": "1"}
	if Of(a) != Of(b) {
		t.Error("checksum should not depend on map insertion order")
	}
}

func TestOf_ChangesWithContent(t *testing.T) {
	a := map[string]any{"id": "1", "status": "vip"}
	b := map[string]any{"id": "1", "status": "active"}
	if Of(a) == Of(b) {
		t.Error("different rows should have different checksums")
	}
}

func TestSum_Known(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %q", got)
	}
}
