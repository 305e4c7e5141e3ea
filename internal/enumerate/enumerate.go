// Package enumerate walks a workspace's folder tree and produces a
// flattened manifest of everything in it, classified by object type. The
// manifest drives deletion ordering: folders are recorded in top-down
// visitation order, so deleting them in reverse guarantees every folder is
// removed only after its own children.
package enumerate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

// ContainerLister fetches the typed direct children of workspaces and
// folders. Defined here at the consumer; *smartsheet.Client satisfies it.
type ContainerLister interface {
	GetWorkspaceChildren(ctx context.Context, workspaceID int64) (*smartsheet.ChildSet, error)
	GetFolderChildren(ctx context.Context, folderID int64) (*smartsheet.ChildSet, error)
}

// Entry is one classified object in the manifest.
type Entry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Permalink string `json:"permalink"`
}

// SkippedEntry is an object the enumerator could not classify or descend
// into, with the reason recorded for the run summary.
type SkippedEntry struct {
	Entry
	Reason string `json:"reason"`
}

// Manifest is the flattened, classified content of one workspace. It is
// built fresh per deletion attempt and discarded after use.
//
// Folders holds visitation (top-down) order. Callers that delete folders
// individually must iterate it in reverse so a folder goes only after all
// of its own children.
type Manifest struct {
	Sheets     []Entry        `json:"sheets"`
	Dashboards []Entry        `json:"dashboards"`
	Reports    []Entry        `json:"reports"`
	Folders    []Entry        `json:"folders"`
	Skipped    []SkippedEntry `json:"skipped"`
}

// Total returns the number of classified (non-skipped) objects.
func (m *Manifest) Total() int {
	return len(m.Sheets) + len(m.Dashboards) + len(m.Reports) + len(m.Folders)
}

// Enumerator performs the depth-first traversal.
type Enumerator struct {
	api    ContainerLister
	logger *slog.Logger
}

// New creates an Enumerator over the given API client.
func New(api ContainerLister, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Enumerator{api: api, logger: logger}
}

// Enumerate walks the workspace depth-first and returns the manifest.
//
// A failure fetching one folder's children abandons that subtree but keeps
// everything gathered so far: the partial manifest is returned alongside
// the first error, and the failed folder is recorded in Skipped. Callers
// decide whether a partial manifest is good enough for their purpose.
func (e *Enumerator) Enumerate(ctx context.Context, workspaceID int64) (*Manifest, error) {
	e.logger.Info("enumerating workspace", slog.Int64("workspace_id", workspaceID))

	manifest := &Manifest{}

	children, err := e.api.GetWorkspaceChildren(ctx, workspaceID)
	if err != nil {
		return manifest, fmt.Errorf("enumerate: workspace %d children: %w", workspaceID, err)
	}

	// Folder hierarchies are acyclic in practice, but the provider does not
	// contractually guarantee it. The visited set turns a back-reference
	// into a skipped entry instead of an infinite descent.
	visited := map[int64]bool{}

	err = e.descend(ctx, children, manifest, visited)

	e.logger.Info("enumeration complete",
		slog.Int64("workspace_id", workspaceID),
		slog.Int("sheets", len(manifest.Sheets)),
		slog.Int("dashboards", len(manifest.Dashboards)),
		slog.Int("reports", len(manifest.Reports)),
		slog.Int("folders", len(manifest.Folders)),
		slog.Int("skipped", len(manifest.Skipped)),
	)

	return manifest, err
}

// descend classifies one container's children into the manifest and
// recurses into folders. Returns the first subtree error encountered;
// siblings of a failed folder are still visited.
func (e *Enumerator) descend(
	ctx context.Context,
	children *smartsheet.ChildSet,
	manifest *Manifest,
	visited map[int64]bool,
) error {
	manifest.Sheets = append(manifest.Sheets, toEntries(children.Sheets)...)
	manifest.Dashboards = append(manifest.Dashboards, toEntries(children.Dashboards)...)
	manifest.Reports = append(manifest.Reports, toEntries(children.Reports)...)

	var firstErr error

	for _, folder := range children.Folders {
		if visited[folder.ID] {
			e.logger.Warn("folder cycle detected, skipping",
				slog.Int64("folder_id", folder.ID),
				slog.String("name", folder.Name),
			)

			manifest.Skipped = append(manifest.Skipped, SkippedEntry{
				Entry:  Entry(folder),
				Reason: "folder cycle",
			})

			continue
		}

		visited[folder.ID] = true
		manifest.Folders = append(manifest.Folders, Entry(folder))

		sub, err := e.api.GetFolderChildren(ctx, folder.ID)
		if err != nil {
			e.logger.Warn("folder fetch failed, abandoning subtree",
				slog.Int64("folder_id", folder.ID),
				slog.String("error", err.Error()),
			)

			manifest.Skipped = append(manifest.Skipped, SkippedEntry{
				Entry:  Entry(folder),
				Reason: fmt.Sprintf("fetch failed: %v", err),
			})

			if firstErr == nil {
				firstErr = fmt.Errorf("enumerate: folder %d children: %w", folder.ID, err)
			}

			continue
		}

		if err := e.descend(ctx, sub, manifest, visited); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func toEntries(refs []smartsheet.ObjectRef) []Entry {
	entries := make([]Entry, 0, len(refs))
	for _, r := range refs {
		entries = append(entries, Entry(r))
	}

	return entries
}
