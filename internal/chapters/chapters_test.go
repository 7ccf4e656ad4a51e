package chapters

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"90", 90, false},
		{"12.5", 12.5, false},
		{"1:30", 90, false},
		{"01:02:03", 3723, false},
		{"1:02:03.5", 3723.5, false},
		{"", 0, true},
		{"1:2:3:4", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseTimestamp(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q) expected error, got %v", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		input float64
		want  string
	}{
		{0, "00:00:00.000"},
		{90, "00:01:30.000"},
		{3723.5, "01:02:03.500"},
		{-1, "00:00:00.000"},
		{59.9999, "00:01:00.000"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.input); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, seconds := range []float64{0, 1.25, 61, 3600.75} {
		got, err := ParseTimestamp(FormatTimestamp(seconds))
		if err != nil {
			t.Fatalf("round trip %v: %v", seconds, err)
		}
		if got != seconds {
			t.Errorf("round trip %v = %v", seconds, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	list, err := Normalize([]Chapter{
		{Start: 120, Title: "Ending"},
		{Start: 30},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	// A missing zero chapter is prepended, entries are sorted, empty titles
	// get a positional fallback.
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Start != 0 || list[0].Title != "Chapter 01" {
		t.Fatalf("first = %+v", list[0])
	}
	if list[1].Start != 30 || list[1].Title != "Chapter 02" {
		t.Fatalf("second = %+v", list[1])
	}
	if list[2].Title != "Ending" {
		t.Fatalf("third = %+v", list[2])
	}
}

func TestNormalizeRejections(t *testing.T) {
	if _, err := Normalize(nil); err == nil {
		t.Fatal("empty list should be rejected")
	}
	if _, err := Normalize([]Chapter{{Start: 10}, {Start: 10}}); err == nil {
		t.Fatal("duplicate offsets should be rejected")
	}
}

func TestParseSpec(t *testing.T) {
	list, err := ParseSpec([]string{"0=Intro", "1:30=Verse", "3:00"})
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if len(list) != 3 || list[0].Title != "Intro" || list[1].Start != 90 {
		t.Fatalf("list = %+v", list)
	}
	if list[2].Title != "Chapter 03" {
		t.Fatalf("untitled chapter = %+v", list[2])
	}

	if _, err := ParseSpec([]string{"bogus=X"}); err == nil {
		t.Fatal("expected error for bad timestamp")
	}
}

func TestWriteFFMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.ffmeta")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	list := []Chapter{
		{Start: 0, Title: "In=tro; part #1"},
		{Start: 90.5, Title: "Outro"},
	}
	if err := writeFFMetadata(file, list, 200); err != nil {
		t.Fatalf("writeFFMetadata: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, ";FFMETADATA1\n") {
		t.Fatalf("missing header: %q", content)
	}
	for _, want := range []string{
		"START=0",
		"END=90500",
		"START=90500",
		"END=200000",
		`title=In\=tro\; part \#1`,
		"title=Outro",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("metadata missing %q:\n%s", want, content)
		}
	}
}

func TestCodecSelection(t *testing.T) {
	for _, path := range []string{"a.mkv", "b.mp4", "c.webm", "d.m4a"} {
		codec, err := codecFor(nil, nil, path)
		if err != nil {
			t.Errorf("codecFor(%s): %v", path, err)
			continue
		}
		if _, ok := codec.(*atomCodec); !ok {
			t.Errorf("codecFor(%s) = %T, want atomCodec", path, codec)
		}
	}
	for _, path := range []string{"a.ogg", "b.opus", "c.flac"} {
		codec, err := codecFor(nil, nil, path)
		if err != nil {
			t.Errorf("codecFor(%s): %v", path, err)
			continue
		}
		if _, ok := codec.(*cueTagCodec); !ok {
			t.Errorf("codecFor(%s) = %T, want cueTagCodec", path, codec)
		}
	}

	_, err := codecFor(nil, nil, "notes.txt")
	var formatErr *ChapterFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected ChapterFormatError, got %v", err)
	}
	if formatErr.Ext != ".txt" {
		t.Fatalf("ext = %q", formatErr.Ext)
	}
}
