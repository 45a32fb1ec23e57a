package judge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeQuestions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadQuestionsFileList(t *testing.T) {
	path := writeQuestions(t, "- How does sparse attention scale?\n- What about retrieval?\n")
	qs, err := ReadQuestionsFile(path)
	if err != nil {
		t.Fatalf("ReadQuestionsFile: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0] != "How does sparse attention scale?" {
		t.Errorf("qs[0] = %q", qs[0])
	}
}

func TestReadQuestionsFileMap(t *testing.T) {
	path := writeQuestions(t, "questions:\n  - Only one question here.\nmodel: gpt-4o-mini\n")
	qs, err := ReadQuestionsFile(path)
	if err != nil {
		t.Fatalf("ReadQuestionsFile: %v", err)
	}
	if len(qs) != 1 || qs[0] != "Only one question here." {
		t.Errorf("qs = %v", qs)
	}
}

func TestReadQuestionsFileSkipsBlank(t *testing.T) {
	path := writeQuestions(t, "- \"  \"\n- Real question?\n- \"\"\n")
	qs, err := ReadQuestionsFile(path)
	if err != nil {
		t.Fatalf("ReadQuestionsFile: %v", err)
	}
	if len(qs) != 1 || qs[0] != "Real question?" {
		t.Errorf("qs = %v", qs)
	}
}

func TestReadQuestionsFileEmpty(t *testing.T) {
	path := writeQuestions(t, "questions: []\n")
	if _, err := ReadQuestionsFile(path); err == nil {
		t.Error("expected error for empty questions list")
	}
}

func TestReadQuestionsFileMissing(t *testing.T) {
	if _, err := ReadQuestionsFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
