package pointstore

import (
	"context"
	"fmt"

	"pact/internal/logging"
	"pact/internal/pointdata"
)

var _ pointdata.Source = (*Store)(nil)

// FileResult reports one ingested export file.
type FileResult struct {
	Path     string `json:"path"`
	SourceID string `json:"source_id"`
	Rows     int    `json:"rows"`
}

// IngestFile loads one point-data export into the store. The source
// identifier comes from the file name.
func (s *Store) IngestFile(ctx context.Context, path string) (FileResult, error) {
	sourceID, ok := pointdata.SourceIDFromFileName(path)
	if !ok {
		return FileResult{}, fmt.Errorf("%s: not a point-data export (want point-data_<ID>_<YYYY-MM>.csv)", path)
	}
	rows, err := pointdata.ReadFile(path, s.location, s.logger)
	if err != nil {
		return FileResult{}, err
	}
	n, err := s.Ingest(ctx, sourceID, rows)
	if err != nil {
		return FileResult{}, err
	}
	s.logger.Info("point-data file ingested",
		logging.String("path", path),
		logging.String("source_id", sourceID),
		logging.Int("rows", n),
	)
	return FileResult{Path: path, SourceID: sourceID, Rows: n}, nil
}
