package corpus

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func writeZstFixture(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.zst")

	var raw bytes.Buffer
	for _, l := range lines {
		raw.WriteString(l)
		raw.WriteByte('\n')
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("creating zstd writer: %v", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		t.Fatalf("writing compressed fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zstd writer: %v", err)
	}
	return path
}

func TestSourceParsesTextAndMeta(t *testing.T) {
	path := writeZstFixture(t, []string{
		`{"text": "hello world", "meta": {"pile_set_name": "TestSet"}}`,
	})
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	s, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if s.Text != "hello world" {
		t.Fatalf("Text = %q, want %q", s.Text, "hello world")
	}
	if s.Meta.PileSetName != "TestSet" {
		t.Fatalf("PileSetName = %q, want %q", s.Meta.PileSetName, "TestSet")
	}

	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("second Next() error = %v, want io.EOF", err)
	}
}

func TestSourceDeduplicatesIdenticalLines(t *testing.T) {
	line := `{"text": "dup", "meta": {"pile_set_name": "S"}}`
	path := writeZstFixture(t, []string{line, line, `{"text": "unique", "meta": {}}`})
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	var texts []string
	for {
		s, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		texts = append(texts, s.Text)
	}
	if len(texts) != 2 {
		t.Fatalf("texts = %v, want exactly 2 (duplicate collapsed)", texts)
	}
}

func TestSourceFiltersRTLWhenEnabled(t *testing.T) {
	path := writeZstFixture(t, []string{
		`{"text": "hello", "meta": {}}`,
		`{"text": "` + "אבג" + `", "meta": {}}`,
	})
	src, err := Open(path, WithRemoveRTL(true))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	s, err := src.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if s.Text != "hello" {
		t.Fatalf("Text = %q, want %q", s.Text, "hello")
	}
	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("second Next() error = %v, want io.EOF (RTL sample filtered)", err)
	}
}

func TestOpenFactoryReopensFromStart(t *testing.T) {
	path := writeZstFixture(t, []string{`{"text": "one", "meta": {}}`})
	factory := OpenFactory(path)

	src1, err := factory()
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	s, err := src1.Next()
	if err != nil || s.Text != "one" {
		t.Fatalf("Next() = %+v, %v", s, err)
	}
	src1.(*Source).Close()

	src2, err := factory()
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	defer src2.(*Source).Close()
	s, err = src2.Next()
	if err != nil || s.Text != "one" {
		t.Fatalf("second factory invocation Next() = %+v, %v, want fresh read of 'one'", s, err)
	}
}
