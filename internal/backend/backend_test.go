package backend

import (
	"path/filepath"
	"strings"
	"testing"

	"seisqc/internal/config"
	"seisqc/internal/fdsn"
	"seisqc/internal/metric"
	"seisqc/internal/store"
	"seisqc/internal/util"
)

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "seisqc.db")
	cfg.Services.Availability = config.SourceLocal
	cfg.Services.DataSelect = config.SourceLocal

	b, err := Open(cfg, util.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Availability.(*store.LocalArchive); !ok {
		t.Errorf("Availability is %T, want *store.LocalArchive", b.Availability)
	}
	if _, ok := b.DataSelect.(*store.LocalArchive); !ok {
		t.Errorf("DataSelect is %T, want *store.LocalArchive", b.DataSelect)
	}
	if b.Metrics == nil {
		t.Error("Metrics store not opened")
	}
	if b.Version != metric.Version {
		t.Errorf("Version = %q, want %q", b.Version, metric.Version)
	}
}

func TestOpenMixed(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Services.DataSelect = config.SourceLocal

	b, err := Open(cfg, util.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Availability.(*fdsn.Client); !ok {
		t.Errorf("Availability is %T, want *fdsn.Client", b.Availability)
	}
	if _, ok := b.DataSelect.(*store.LocalArchive); !ok {
		t.Errorf("DataSelect is %T, want *store.LocalArchive", b.DataSelect)
	}
	if b.Metrics != nil {
		t.Error("Metrics store opened without a sqlite path")
	}
}

func TestOpenLibraryVersionOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.LibraryVersion = "1.0.3"

	b, err := Open(cfg, util.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()
	if b.Version != "1.0.3" {
		t.Errorf("Version = %q, want 1.0.3", b.Version)
	}
}

func TestOpenRejectsUnknownSource(t *testing.T) {
	cfg := config.Default()
	cfg.Services.DataSelect = "s3"

	_, err := Open(cfg, util.Discard())
	if err == nil || !strings.Contains(err.Error(), "services.dataselect") {
		t.Errorf("Open error = %v, want a services.dataselect error", err)
	}

	cfg = config.Default()
	cfg.Services.Availability = config.SourceLocal
	if _, err := Open(cfg, util.Discard()); err == nil {
		t.Error("expected error for a local source without a data directory")
	}
}
