package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

// ErrLookupMiss marks an identifier that resolved to nothing: the sheet or
// workspace behind a URL no longer exists (or never did). For rows already
// due for deletion this is the post-crash signature of a workspace that
// was deleted before its status cell got updated.
var ErrLookupMiss = errors.New("reaper: lookup miss")

// stripQuery removes the query string and fragment from a URL. Permalinks
// are compared without them.
func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}

	return s
}

// segmentSuffix extracts the "<segment>/..." tail of a URL, e.g.
// "sheets/AbC123" from "https://app.smartsheet.com/sheets/AbC123". Returns
// "" when the segment is absent.
func segmentSuffix(url, segment string) string {
	marker := segment + "/"

	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}

	return url[i:]
}

// permalinkMatches reports whether candidate identifies the same object as
// target, by exact comparison first and by shared "<segment>/..." suffix
// as the fallback. Suffix matching exists only because some identifiers
// arrive solely as pasted URLs whose host or scheme may differ from the
// API's canonical permalink.
func permalinkMatches(candidate, target, segment string) bool {
	candidate = stripQuery(candidate)
	target = stripQuery(target)

	if candidate == target {
		return true
	}

	suffix := segmentSuffix(candidate, segment)

	return suffix != "" && strings.Contains(target, suffix)
}

// findSheetByURL resolves a sheet URL to a sheet ID by scanning the sheet
// index. Returns ErrLookupMiss when nothing matches.
func (s *Service) findSheetByURL(ctx context.Context, url string) (int64, error) {
	sheets, err := s.sheetIndexOnce(ctx)
	if err != nil {
		return 0, err
	}

	for _, sheet := range sheets {
		if permalinkMatches(url, sheet.Permalink, "sheets") {
			s.logger.Debug("matched sheet by permalink",
				slog.Int64("sheet_id", sheet.ID),
				slog.String("url", url),
			)

			return sheet.ID, nil
		}
	}

	return 0, fmt.Errorf("%w: no sheet for URL %s", ErrLookupMiss, stripQuery(url))
}

// workspaceFromFolderURL resolves the intake row's folder URL to the
// workspace containing it. The URL points at a sheet inside the
// workspace; the sheet's workspace reference gives the exact ID: an ID
// lookup, not string matching, wherever the API allows it.
func (s *Service) workspaceFromFolderURL(ctx context.Context, folderURL string) (*smartsheet.ObjectRef, error) {
	sheetID, err := s.findSheetByURL(ctx, folderURL)
	if err != nil {
		return nil, err
	}

	sheet, err := s.api.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("reaper: fetching sheet %d: %w", sheetID, err)
	}

	if sheet.Workspace == nil || sheet.Workspace.ID == 0 {
		return nil, fmt.Errorf("reaper: sheet %d does not belong to a workspace", sheetID)
	}

	return sheet.Workspace, nil
}

// FindWorkspaceByURL resolves a workspace permalink to its ID by scanning
// the workspace list. Used by the inspect command when given a URL instead
// of a numeric ID.
func (s *Service) FindWorkspaceByURL(ctx context.Context, url string) (int64, error) {
	workspaces, err := s.api.ListWorkspaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("reaper: listing workspaces: %w", err)
	}

	for _, ws := range workspaces {
		if permalinkMatches(url, ws.Permalink, "workspaces") {
			return ws.ID, nil
		}
	}

	return 0, fmt.Errorf("%w: no workspace for URL %s", ErrLookupMiss, stripQuery(url))
}

// sheetIndexOnce lists all sheets the first time it is needed in a run and
// reuses the result for every subsequent row.
func (s *Service) sheetIndexOnce(ctx context.Context) ([]sheetRef, error) {
	if s.sheetIndex != nil {
		return s.sheetIndex, nil
	}

	sheets, err := s.api.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("reaper: listing sheets: %w", err)
	}

	s.sheetIndex = make([]sheetRef, 0, len(sheets))
	for _, sheet := range sheets {
		s.sheetIndex = append(s.sheetIndex, sheetRef{ID: sheet.ID, Permalink: sheet.Permalink})
	}

	return s.sheetIndex, nil
}

// sheetRef is the slim slice of the sheet index the resolver needs.
type sheetRef struct {
	ID        int64
	Permalink string
}
