package pkguid

import "testing"

func TestGenerateRandomNodeIDRange(t *testing.T) {
	id, err := generateRandomNodeID()
	if err != nil {
		t.Fatalf("generateRandomNodeID: %v", err)
	}
	if id < 0 || id > MaxNodeID {
		t.Fatalf("expected id within 0..%d, got %d", MaxNodeID, id)
	}
}

func TestSnowflakeGenerateIncreasing(t *testing.T) {
	gen, err := NewSnowflake(-1)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	prev := gen.Generate()
	for i := 0; i < 1000; i++ {
		next := gen.Generate()
		if next <= prev {
			t.Fatalf("expected increasing ids, got %d after %d", next, prev)
		}
		prev = next
	}
}

func TestSnowflakeRejectsOutOfRangeNode(t *testing.T) {
	if _, err := NewSnowflake(MaxNodeID + 1); err == nil {
		t.Fatal("expected error for node id beyond the node bits")
	}
	if _, err := NewSnowflake(MaxNodeID); err != nil {
		t.Fatalf("NewSnowflake(%d): %v", MaxNodeID, err)
	}
}

func TestSnowflakeFitsJSONNumber(t *testing.T) {
	gen, err := NewSnowflake(MaxNodeID)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	const maxSafeInteger = 1<<53 - 1
	for i := 0; i < 500; i++ {
		id := gen.Generate()
		if id <= 0 || id > maxSafeInteger {
			t.Fatalf("id %d outside 1..2^53-1", id)
		}
		if int64(float64(id)) != id {
			t.Fatalf("id %d is not exact as float64", id)
		}
	}
}
