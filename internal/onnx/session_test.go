package onnx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewSessionManagerLoadsManifest(t *testing.T) {
	tmp := t.TempDir()

	for _, name := range []string{"text_encoder.onnx", "decoder_with_past.onnx"} {
		err := os.WriteFile(filepath.Join(tmp, name), []byte("fake"), 0o644)
		if err != nil {
			t.Fatalf("write fake onnx file: %v", err)
		}
	}

	manifest := `{
  "graphs": [
    {
      "name": "text_encoder",
      "filename": "text_encoder.onnx",
      "inputs": [{"name":"tokens","dtype":"int64","shape":[1,"text_tokens"]}],
      "outputs": [{"name":"last_hidden_state","dtype":"float","shape":[1,"text_tokens",1024]}]
    },
    {
      "name": "decoder_with_past",
      "filename": "decoder_with_past.onnx",
      "inputs": [{"name":"input_ids","dtype":"int64","shape":[8,1]}],
      "outputs": [{"name":"logits","dtype":"float","shape":[8,1,2048]}]
    }
  ]
}`

	manifestPath := filepath.Join(tmp, "manifest.json")

	err := os.WriteFile(manifestPath, []byte(manifest), 0o644)
	if err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	sm, err := NewSessionManager(manifestPath)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	all := sm.Sessions()
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	s, ok := sm.Session("text_encoder")
	if !ok {
		t.Fatal("expected text_encoder session")
	}

	if s.Path != filepath.Join(tmp, "text_encoder.onnx") {
		t.Fatalf("unexpected session path: %s", s.Path)
	}

	if len(s.Inputs) != 1 || s.Inputs[0].Name != "tokens" {
		t.Fatalf("unexpected inputs: %+v", s.Inputs)
	}
}

func TestNewSessionManagerRejectsMissingFile(t *testing.T) {
	tmp := t.TempDir()
	manifest := `{
  "graphs": [
    {"name": "missing", "filename": "missing.onnx", "inputs": [], "outputs": []}
  ]
}`

	manifestPath := filepath.Join(tmp, "manifest.json")

	err := os.WriteFile(manifestPath, []byte(manifest), 0o644)
	if err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	_, err = NewSessionManager(manifestPath)
	if err == nil {
		t.Fatal("expected error for missing onnx file")
	}
}

func TestNewSessionManagerIsIndependentPerManifest(t *testing.T) {
	tmp := t.TempDir()

	for _, name := range []string{"a.onnx", "b.onnx"} {
		if err := os.WriteFile(filepath.Join(tmp, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	firstManifest := filepath.Join(tmp, "first.json")
	secondManifest := filepath.Join(tmp, "second.json")

	if err := os.WriteFile(firstManifest, []byte(`{"graphs":[{"name":"a","filename":"a.onnx","inputs":[],"outputs":[]}]}`), 0o644); err != nil {
		t.Fatalf("write first manifest: %v", err)
	}

	if err := os.WriteFile(secondManifest, []byte(`{"graphs":[{"name":"b","filename":"b.onnx","inputs":[],"outputs":[]}]}`), 0o644); err != nil {
		t.Fatalf("write second manifest: %v", err)
	}

	// Backend hot-swap loads a fresh manager per bundle; the two must not
	// share session sets.
	one, err := NewSessionManager(firstManifest)
	if err != nil {
		t.Fatalf("load first: %v", err)
	}

	two, err := NewSessionManager(secondManifest)
	if err != nil {
		t.Fatalf("load second: %v", err)
	}

	if _, ok := one.Session("b"); ok {
		t.Fatal("first manager must not see the second manifest's graphs")
	}

	if _, ok := two.Session("a"); ok {
		t.Fatal("second manager must not see the first manifest's graphs")
	}
}
