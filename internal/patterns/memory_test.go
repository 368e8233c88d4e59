package patterns

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"sift/internal/risk"
	"sift/internal/services"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newMemory(t *testing.T, path string, clock *testClock) *Memory {
	t.Helper()
	m, err := Open(Options{Path: path, DecayRate: 0.1, SimilarityThreshold: 0.7, Clock: clock.Now})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestKey(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"/home/u/Quarterly_Report_2024.pdf", ".pdf:Quarterly_"},
		{"Photo.JPG", ".jpg:Photo"},
		{".bashrc", ":.bashrc"},
		{"archive.tar.gz", ".gz:archive.ta"},
		{"überlangerdateiname.txt", ".txt:überlanger"},
		{"remote:docs/notes.md", ".md:notes"},
	}
	for _, tc := range tests {
		if got := Key(tc.file); got != tc.want {
			t.Errorf("Key(%q) = %q, want %q", tc.file, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "bcde", 0.75},
		{"The quick brown fox", "The quick brown dog", 34.0 / 38.0},
		{"invoice_april.pdf", ".pdf:invoice_ma", 0.5625},
		{"same", "same", 1},
		{"", "", 1},
		{"abc", "", 0},
	}
	for _, tc := range tests {
		if got := Similarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCorrectionMonotonicity(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newMemory(t, "", clock)

	prev := 0.0
	for i := 1; i <= 7; i++ {
		p, err := m.RecordCorrection("/tmp/report.pdf", risk.ActionDeleteImmediate, risk.ActionKeepActive, "important")
		if err != nil {
			t.Fatalf("RecordCorrection: %v", err)
		}
		if p.Count != i {
			t.Fatalf("count = %d, want %d", p.Count, i)
		}
		if p.Confidence < prev {
			t.Fatalf("confidence decreased: %v -> %v", prev, p.Confidence)
		}
		if p.Confidence > 0.99 {
			t.Fatalf("confidence exceeds cap: %v", p.Confidence)
		}
		prev = p.Confidence
	}
	if prev != 0.99 {
		t.Fatalf("expected saturation at 0.99, got %v", prev)
	}
}

func TestFirstCorrectionFixesAction(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newMemory(t, "", clock)

	if _, err := m.RecordCorrection("/in/scratch_output_01.tmp", risk.ActionKeepActive, risk.ActionDeleteImmediate, ""); err != nil {
		t.Fatal(err)
	}
	p, err := m.RecordCorrection("/in/scratch_output_02.tmp", risk.ActionKeepActive, risk.ActionBackupCloud, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Action != risk.ActionDeleteImmediate || p.Count != 2 {
		t.Fatalf("pattern = %+v, want DELETE_IMMEDIATE counted twice", p)
	}
	if n := len(m.Corrections()); n != 2 {
		t.Fatalf("corrections logged = %d, want 2", n)
	}

	if err := m.Forget(p.Key); err != nil {
		t.Fatal(err)
	}
	p, err = m.RecordCorrection("/in/scratch_output_03.tmp", risk.ActionKeepActive, risk.ActionBackupCloud, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Action != risk.ActionBackupCloud || p.Count != 1 {
		t.Fatalf("relearned pattern = %+v", p)
	}
}

func TestLookupDecay(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &testClock{now: start}
	m := newMemory(t, "", clock)
	if _, err := m.RecordCorrection("/data/report.pdf", risk.ActionDeleteImmediate, risk.ActionMoveCorrect, ""); err != nil {
		t.Fatal(err)
	}

	clock.now = start.AddDate(0, 0, 30)
	p, ok := m.Lookup("/elsewhere/report.pdf")
	if !ok {
		t.Fatal("expected exact hit")
	}
	if math.Abs(p.Confidence-0.6) > 1e-9 {
		t.Fatalf("30 days should not decay, got %v", p.Confidence)
	}

	clock.now = start.AddDate(0, 0, 31)
	p, ok = m.Lookup("/elsewhere/report.pdf")
	if !ok {
		t.Fatal("expected exact hit")
	}
	want := 0.6 * math.Pow(0.1, 31.0/30.0)
	if math.Abs(p.Confidence-want) > 1e-9 {
		t.Fatalf("decayed confidence = %v, want %v", p.Confidence, want)
	}

	raw := m.Patterns()[0]
	if raw.Confidence != 0.6 {
		t.Fatalf("decay must not be written back, raw = %v", raw.Confidence)
	}
}

func TestLookupFuzzyFallback(t *testing.T) {
	clock := &testClock{now: time.Now()}
	m := newMemory(t, "", clock)
	if _, err := m.RecordCorrection("/src/Makefile", risk.ActionDeleteImmediate, risk.ActionKeepActive, ""); err != nil {
		t.Fatal(err)
	}

	p, ok := m.Lookup("/other/Makefile.am")
	if !ok {
		t.Fatal("expected fuzzy hit for Makefile.am")
	}
	if p.Key != ":Makefile" || p.Action != risk.ActionKeepActive {
		t.Fatalf("unexpected pattern: %+v", p)
	}

	if _, ok := m.Lookup("/other/zzz.bin"); ok {
		t.Fatal("dissimilar name must not match")
	}

	key, ratio := m.BestMatch("/other/Makefile.am")
	if key != ":Makefile" || math.Abs(ratio-0.8) > 1e-9 {
		t.Fatalf("BestMatch = %q %v", key, ratio)
	}
}

func TestNegativeFeedbackNudges(t *testing.T) {
	clock := &testClock{now: time.Now()}
	m := newMemory(t, "", clock)
	for range 2 {
		if _, err := m.RecordCorrection("/in/invoice_march.pdf", risk.ActionKeepActive, risk.ActionMoveCorrect, ""); err != nil {
			t.Fatal(err)
		}
	}

	p, changed, err := m.RecordFeedback("/in/invoice_march.pdf", "/archive/invoice_march.pdf", "/finance/2026/invoice_march.pdf", false)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected pattern to be adjusted")
	}
	if p.Destination != "/finance/2026" || p.Count != 1 {
		t.Fatalf("unexpected nudge result: %+v", p)
	}
	if math.Abs(p.Confidence-0.6) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.6", p.Confidence)
	}

	for range 3 {
		p, _, err = m.RecordFeedback("/in/invoice_march.pdf", "", "/finance/invoice_march.pdf", false)
		if err != nil {
			t.Fatalf("feedback on exhausted pattern should not error: %v", err)
		}
	}
	if p.Count != 0 {
		t.Fatalf("count must floor at zero, got %d", p.Count)
	}

	_, changed, err = m.RecordFeedback("/in/invoice_march.pdf", "/x", "/x/invoice_march.pdf", true)
	if err != nil || changed {
		t.Fatalf("accepted feedback should only be recorded, changed=%v err=%v", changed, err)
	}
	stats := m.Stats()
	if stats.TotalFeedback != 5 || stats.AcceptedFeedback != 1 {
		t.Fatalf("unexpected feedback stats: %+v", stats)
	}
}

func TestFeedbackWithoutPattern(t *testing.T) {
	m := newMemory(t, "", &testClock{now: time.Now()})
	_, changed, err := m.RecordFeedback("/a/b.txt", "/c", "/d/b.txt", false)
	if err != nil || changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
}

func TestRecordCorrectionValidation(t *testing.T) {
	m := newMemory(t, "", &testClock{now: time.Now()})
	if _, err := m.RecordCorrection("", risk.ActionKeepActive, risk.ActionKeepActive, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := m.RecordCorrection("/a.txt", risk.ActionKeepActive, risk.Action("SHRED"), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	clock := &testClock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	m := newMemory(t, path, clock)
	if _, err := m.RecordCorrection("/x/setup.exe", risk.ActionKeepActive, risk.ActionDeleteImmediate, "installer"); err != nil {
		t.Fatal(err)
	}

	reopened := newMemory(t, path, clock)
	p, ok := reopened.Lookup("/y/setup.exe")
	if !ok {
		t.Fatal("pattern did not survive reopen")
	}
	if p.Action != risk.ActionDeleteImmediate || p.Count != 1 {
		t.Fatalf("unexpected pattern: %+v", p)
	}
	if got := reopened.Corrections(); len(got) != 1 || got[0].Reason != "installer" {
		t.Fatalf("corrections not persisted: %+v", got)
	}

	if err := reopened.Forget(p.Key); err != nil {
		t.Fatal(err)
	}
	if err := reopened.Forget(p.Key); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportImport(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			clock := &testClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
			src := newMemory(t, "", clock)
			err := src.BatchLearn([]Correction{
				{File: "/a/budget.xlsx", Original: risk.ActionDeleteImmediate, Corrected: risk.ActionKeepActive},
				{File: "/a/budget.xlsx", Original: risk.ActionDeleteImmediate, Corrected: risk.ActionKeepActive},
				{File: "/b/tmp_dump.log", Original: risk.ActionKeepActive, Corrected: risk.ActionDeleteImmediate},
			})
			if err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := src.Export(&buf, format); err != nil {
				t.Fatalf("Export: %v", err)
			}

			dst := newMemory(t, "", clock)
			n, err := dst.Import(&buf, format)
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if n != 2 {
				t.Fatalf("imported %d patterns, want 2", n)
			}
			p, ok := dst.Lookup("/c/budget.xlsx")
			if !ok || p.Count != 2 || p.Action != risk.ActionKeepActive {
				t.Fatalf("unexpected imported pattern: %+v ok=%v", p, ok)
			}
			if got := dst.Stats().TotalCorrections; got != 3 {
				t.Fatalf("imported corrections = %d", got)
			}
		})
	}
}

func TestImportRejectsInvalidPattern(t *testing.T) {
	m := newMemory(t, "", &testClock{now: time.Now()})
	input := `{"patterns":[{"key":".txt:a","action":"EXPLODE","count":1,"confidence":0.6}]}`
	if _, err := m.Import(bytes.NewBufferString(input), FormatJSON); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(m.Patterns()) != 0 {
		t.Fatal("invalid import must not modify memory")
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("share.YAML") != FormatYAML || FormatFromPath("x.yml") != FormatYAML {
		t.Fatal("expected yaml")
	}
	if FormatFromPath("x.json") != FormatJSON || FormatFromPath("x") != FormatJSON {
		t.Fatal("expected json")
	}
}

func TestStatsMostCommonAction(t *testing.T) {
	m := newMemory(t, "", &testClock{now: time.Now()})
	_ = m.BatchLearn([]Correction{
		{File: "/a.txt", Corrected: risk.ActionKeepActive},
		{File: "/b.txt", Corrected: risk.ActionDeleteImmediate},
		{File: "/c.txt", Corrected: risk.ActionDeleteImmediate},
	})
	stats := m.Stats()
	if stats.PatternCount != 3 || stats.MostCommonAction != risk.ActionDeleteImmediate {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if math.Abs(stats.AverageConfidence-0.6) > 1e-9 {
		t.Fatalf("average confidence = %v", stats.AverageConfidence)
	}
}
