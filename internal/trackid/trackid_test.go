package trackid

import "testing"

func TestComputeDeterministic(t *testing.T) {
	id1 := Compute("lofi beats", 42, 30, "musicgen-small-fp16-v1", "musicgen")
	id2 := Compute("lofi beats", 42, 30, "musicgen-small-fp16-v1", "musicgen")

	if id1 != id2 {
		t.Fatalf("Compute is not deterministic: %q != %q", id1, id2)
	}

	if len(id1) != 16 {
		t.Fatalf("expected 16 hex characters, got %d (%q)", len(id1), id1)
	}
}

func TestComputeVariesWithParams(t *testing.T) {
	base := Compute("lofi beats", 42, 30, "musicgen-small-fp16-v1", "musicgen")

	cases := map[string]string{
		"seed":     Compute("lofi beats", 43, 30, "musicgen-small-fp16-v1", "musicgen"),
		"prompt":   Compute("jazz", 42, 30, "musicgen-small-fp16-v1", "musicgen"),
		"duration": Compute("lofi beats", 42, 31, "musicgen-small-fp16-v1", "musicgen"),
		"model":    Compute("lofi beats", 42, 30, "musicgen-small-fp16-v2", "musicgen"),
		"backend":  Compute("lofi beats", 42, 30, "musicgen-small-fp16-v1", "ace_step"),
	}

	for name, got := range cases {
		if got == base {
			t.Errorf("%s: expected track id to differ from base, both were %q", name, got)
		}
	}
}

func TestComputeHexFormat(t *testing.T) {
	id := Compute("test", 0, 10, "v1", "musicgen")
	for _, c := range id {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			t.Fatalf("track id %q contains non-hex character %q", id, c)
		}
	}
}
