package extract

import (
	"context"
	"strings"
	"testing"
)

func TestPlainTextExtract(t *testing.T) {
	text, meta, err := NewPlainText().Extract(context.Background(), []byte("hello corpus"), "note.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "hello corpus" {
		t.Fatalf("unexpected text %q", text)
	}
	if meta["source"] != "note.txt" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestPlainTextRejectsEmpty(t *testing.T) {
	if _, _, err := NewPlainText().Extract(context.Background(), nil, "empty.txt"); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestPlainTextRejectsBinary(t *testing.T) {
	if _, _, err := NewPlainText().Extract(context.Background(), []byte{0xff, 0xfe, 0x01}, "blob.bin"); err == nil {
		t.Fatalf("expected error for non-utf8 payload")
	}
}

func TestChunkCoversFullText(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "token")
	}
	text := strings.Join(words, " ")

	chunks := Chunk(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds window: %d runes", i, len([]rune(c)))
		}
	}
	if !strings.HasPrefix(text, chunks[0]) {
		t.Fatalf("first chunk must open the text")
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1]) {
		t.Fatalf("last chunk must close the text")
	}
}

func TestChunkWindowsOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 30)
	chunks := Chunk(text, 50, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-4:]
		if !strings.Contains(chunks[i], tail) {
			t.Fatalf("chunk %d does not overlap its predecessor: %q / %q", i, chunks[i-1], chunks[i])
		}
	}
}

func TestChunkShortText(t *testing.T) {
	chunks := Chunk("short note", 100, 10)
	if len(chunks) != 1 || chunks[0] != "short note" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestChunkZeroSize(t *testing.T) {
	if got := Chunk("anything", 0, 0); got != nil {
		t.Fatalf("expected nil for zero window, got %+v", got)
	}
}
