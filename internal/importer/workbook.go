package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/spreadsheet"
	"github.com/wolfeidau/payledger/internal/uploads"
)

// ErrBadUpload wraps every failure to store or read an uploaded workbook.
// No session is created for a bad upload.
var ErrBadUpload = errors.New("bad upload")

// WorkbookImporter runs an import from an uploaded xlsx workbook.
type WorkbookImporter struct {
	uploads     *uploads.Store
	profiles    *spreadsheet.Profiles
	coordinator *Coordinator
}

func NewWorkbookImporter(store *uploads.Store, profiles *spreadsheet.Profiles, coordinator *Coordinator) *WorkbookImporter {
	if profiles == nil {
		profiles = spreadsheet.DefaultProfiles()
	}
	return &WorkbookImporter{uploads: store, profiles: profiles, coordinator: coordinator}
}

// Import stores the workbook, reads it with the platform's column profile and
// runs the batch. A workbook without data rows still runs an empty batch.
func (w *WorkbookImporter) Import(ctx context.Context, tenant auth.Tenant, platform, name string, r io.Reader) (*Summary, error) {
	if platform == "" {
		return nil, ErrInvalidPlatform
	}

	source, err := w.uploads.Save(name, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadUpload, err)
	}

	f, err := w.uploads.Open(source.StoredLocation)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := spreadsheet.NewNormalizer(w.profiles.For(platform)).Rows(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadUpload, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("location", source.StoredLocation).
		Int("rows", len(rows)).
		Msg("Read workbook")

	return w.coordinator.RunImport(ctx, tenant, platform, *source, rows)
}
