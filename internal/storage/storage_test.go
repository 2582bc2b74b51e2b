package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

func TestFSBlobStore(t *testing.T) {
	s, err := NewFSBlobStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Latest(".mat"); !errors.Is(err, ErrNoBlobs) {
		t.Errorf("Latest on empty store = %v, want ErrNoBlobs", err)
	}

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.mat", "b.mat", "c.mat", "notes.txt"} {
		path, err := s.Put(name, []byte(name))
		if err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Get("b.mat")
	if err != nil || string(got) != "b.mat" {
		t.Errorf("Get = %q, %v", got, err)
	}

	latest, err := s.Latest(".mat")
	if err != nil || latest.Name != "c.mat" {
		t.Errorf("Latest = %+v, %v", latest, err)
	}

	removed, err := s.Prune(".mat", 1)
	if err != nil || removed != 2 {
		t.Errorf("Prune = %d, %v", removed, err)
	}
	for name, want := range map[string]bool{"a.mat": false, "b.mat": false, "c.mat": true, "notes.txt": true} {
		_, err := os.Stat(s.Path(name))
		if (err == nil) != want {
			t.Errorf("%s exists = %v, want %v", name, err == nil, want)
		}
	}
}

func TestFSBlobStoreRejectsTraversal(t *testing.T) {
	s, err := NewFSBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"", "..", "../x.mat", "sub/x.mat"} {
		if _, err := s.Put(name, nil); err == nil {
			t.Errorf("Put(%q) succeeded", name)
		}
	}
}

func TestNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	a, b := GeneratedName(now), GeneratedName(now)
	if a == b {
		t.Error("generated names collide")
	}
	if !strings.HasPrefix(a, "motor_signals_20260301_123045_") || !strings.HasSuffix(a, ".mat") {
		t.Errorf("GeneratedName = %q", a)
	}

	up := UploadName(now, "../../etc/run.mat")
	if !strings.HasSuffix(up, "_run.mat") || strings.Contains(up, "/") {
		t.Errorf("UploadName = %q", up)
	}
}

func sampleResult(label types.Label, pattern *types.SpectralPattern) types.PredictionResult {
	return types.PredictionResult{
		Label:              label,
		Confidence:         0.8,
		ClassProbabilities: types.Distribution{0.1, 0.8, 0.1}.Probabilities(),
		Pattern:            pattern,
	}
}

func TestSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	j, err := NewSQLiteJournal(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteJournal: %v", err)
	}
	defer j.Close()

	first := NewEntry(SourceUpload, "one.mat", sampleResult(types.LabelHealthy, nil))
	first.Time = time.Now().Add(-time.Minute).UTC()
	second := NewEntry(SourceMonitor, "two.mat", sampleResult(types.LabelHealthy, &types.SpectralPattern{BaseFreq: true, PhaseBalance: true}))
	second.Overridden = true
	second.Reason = "low confidence"

	for _, e := range []Entry{first, second} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("order = %s, %s", got[0].FileName, got[1].FileName)
	}
	if got[0].Pattern == nil || !got[0].Pattern.BaseFreq || got[0].Pattern.Mod25Hz {
		t.Errorf("pattern = %+v", got[0].Pattern)
	}
	if got[1].Pattern != nil {
		t.Errorf("missing pattern came back as %+v", got[1].Pattern)
	}
	if !got[0].Overridden || got[0].Reason != "low confidence" || got[0].Source != SourceMonitor {
		t.Errorf("entry = %+v", got[0])
	}
	if got[0].ClassProbabilities[types.LabelHealthy] != 0.8 {
		t.Errorf("probabilities = %v", got[0].ClassProbabilities)
	}
	if !got[1].Time.Equal(first.Time.Truncate(time.Millisecond)) {
		t.Errorf("time = %v, want %v", got[1].Time, first.Time)
	}

	limited, err := j.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Recent(1) = %d entries, %v", len(limited), err)
	}
}

func TestTimescaleRecordConversion(t *testing.T) {
	e := NewEntry(SourceUpload, "x.mat", sampleResult(types.LabelBrokenRotor, &types.SpectralPattern{Sideband100Hz: true}))
	back := fromRecord(toRecord(e))

	if back.ID != e.ID || back.Label != e.Label || back.FileName != e.FileName {
		t.Errorf("round trip = %+v", back)
	}
	if back.Pattern == nil || !back.Pattern.Sideband100Hz {
		t.Errorf("pattern = %+v", back.Pattern)
	}
	if back.ClassProbabilities[types.LabelBrokenRotor] != 0.1 {
		t.Errorf("probabilities = %v", back.ClassProbabilities)
	}
}

func TestNewJournal(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	j, err := NewJournal(ctx, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(NopJournal); !ok {
		t.Errorf("nil config gave %T", j)
	}

	j, err = NewJournal(ctx, &config.JournalData{Type: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if _, ok := j.(*SQLiteJournal); !ok {
		t.Errorf("sqlite config gave %T", j)
	}

	if _, err := NewJournal(ctx, &config.JournalData{Type: "timescaledb"}, logger); err == nil {
		t.Error("expected an error without a connection string")
	}
	if _, err := NewJournal(ctx, &config.JournalData{Type: "csv"}, logger); err == nil {
		t.Error("expected an error for an unknown type")
	}
}

type brokenJournal struct{ NopJournal }

func (brokenJournal) Recent(context.Context, int) ([]Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager()
	ctx := context.Background()

	if hm.IsHealthy("journal", time.Minute) {
		t.Error("unknown backend reported healthy")
	}

	hm.CheckJournal(ctx, "journal", NopJournal{})
	if !hm.IsHealthy("journal", time.Minute) {
		t.Error("nop journal unhealthy")
	}

	h := hm.CheckJournal(ctx, "journal", brokenJournal{})
	if h.Status != StatusUnhealthy || h.Error != "disk on fire" {
		t.Errorf("health = %+v", h)
	}
	if hm.IsHealthy("journal", time.Minute) {
		t.Error("broken journal reported healthy")
	}
	if len(hm.GetAllHealth()) != 1 {
		t.Errorf("GetAllHealth = %v", hm.GetAllHealth())
	}
}
