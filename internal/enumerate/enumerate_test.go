package enumerate

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

// fakeLister serves canned children per container ID. Folder IDs share the
// workspace namespace in these fixtures for simplicity.
type fakeLister struct {
	workspaces map[int64]*smartsheet.ChildSet
	folders    map[int64]*smartsheet.ChildSet
	folderErrs map[int64]error

	folderCalls []int64
}

func (f *fakeLister) GetWorkspaceChildren(_ context.Context, id int64) (*smartsheet.ChildSet, error) {
	cs, ok := f.workspaces[id]
	if !ok {
		return nil, smartsheet.ErrNotFound
	}

	return cs, nil
}

func (f *fakeLister) GetFolderChildren(_ context.Context, id int64) (*smartsheet.ChildSet, error) {
	f.folderCalls = append(f.folderCalls, id)

	if err, ok := f.folderErrs[id]; ok {
		return nil, err
	}

	cs, ok := f.folders[id]
	if !ok {
		return nil, smartsheet.ErrNotFound
	}

	return cs, nil
}

func ref(id int64, name string) smartsheet.ObjectRef {
	return smartsheet.ObjectRef{ID: id, Name: name}
}

func TestEnumerate_FlatWorkspace(t *testing.T) {
	api := &fakeLister{
		workspaces: map[int64]*smartsheet.ChildSet{
			900: {
				Sheets:     []smartsheet.ObjectRef{ref(1, "sheet-a")},
				Folders:    []smartsheet.ObjectRef{ref(2, "empty-folder")},
				Dashboards: []smartsheet.ObjectRef{ref(3, "dash")},
			},
		},
		folders: map[int64]*smartsheet.ChildSet{
			2: {},
		},
	}

	e := New(api, slog.Default())
	manifest, err := e.Enumerate(context.Background(), 900)
	require.NoError(t, err)

	assert.Len(t, manifest.Sheets, 1)
	assert.Len(t, manifest.Folders, 1)
	assert.Len(t, manifest.Dashboards, 1)
	assert.Empty(t, manifest.Reports)
	assert.Empty(t, manifest.Skipped)
	assert.Equal(t, 3, manifest.Total())
}

func TestEnumerate_NestedFoldersTopDownOrder(t *testing.T) {
	// ws 900 -> folder 10 -> folder 20 -> folder 30 (holds sheet 99)
	api := &fakeLister{
		workspaces: map[int64]*smartsheet.ChildSet{
			900: {Folders: []smartsheet.ObjectRef{ref(10, "top")}},
		},
		folders: map[int64]*smartsheet.ChildSet{
			10: {Folders: []smartsheet.ObjectRef{ref(20, "mid")}},
			20: {Folders: []smartsheet.ObjectRef{ref(30, "leaf")}},
			30: {Sheets: []smartsheet.ObjectRef{ref(99, "nested-sheet")}},
		},
	}

	e := New(api, slog.Default())
	manifest, err := e.Enumerate(context.Background(), 900)
	require.NoError(t, err)

	require.Len(t, manifest.Folders, 3)
	assert.Equal(t, int64(10), manifest.Folders[0].ID)
	assert.Equal(t, int64(20), manifest.Folders[1].ID)
	assert.Equal(t, int64(30), manifest.Folders[2].ID)

	require.Len(t, manifest.Sheets, 1)
	assert.Equal(t, "nested-sheet", manifest.Sheets[0].Name)
}

func TestEnumerate_CycleGuard(t *testing.T) {
	// folder 10 contains folder 20, which points back at folder 10.
	api := &fakeLister{
		workspaces: map[int64]*smartsheet.ChildSet{
			900: {Folders: []smartsheet.ObjectRef{ref(10, "a")}},
		},
		folders: map[int64]*smartsheet.ChildSet{
			10: {Folders: []smartsheet.ObjectRef{ref(20, "b")}},
			20: {Folders: []smartsheet.ObjectRef{ref(10, "a-again")}},
		},
	}

	e := New(api, slog.Default())
	manifest, err := e.Enumerate(context.Background(), 900)
	require.NoError(t, err)

	// Each folder fetched exactly once; the back-reference becomes a skip.
	assert.Equal(t, []int64{10, 20}, api.folderCalls)
	assert.Len(t, manifest.Folders, 2)
	require.Len(t, manifest.Skipped, 1)
	assert.Equal(t, "folder cycle", manifest.Skipped[0].Reason)
	assert.Equal(t, int64(10), manifest.Skipped[0].ID)
}

func TestEnumerate_PartialManifestOnSubtreeFailure(t *testing.T) {
	boom := errors.New("boom")
	api := &fakeLister{
		workspaces: map[int64]*smartsheet.ChildSet{
			900: {
				Sheets:  []smartsheet.ObjectRef{ref(1, "kept")},
				Folders: []smartsheet.ObjectRef{ref(10, "broken"), ref(20, "fine")},
			},
		},
		folders: map[int64]*smartsheet.ChildSet{
			20: {Sheets: []smartsheet.ObjectRef{ref(2, "sibling-sheet")}},
		},
		folderErrs: map[int64]error{10: boom},
	}

	e := New(api, slog.Default())
	manifest, err := e.Enumerate(context.Background(), 900)

	// The error surfaces, but everything reachable is still in the manifest.
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, manifest.Sheets, 2)
	assert.Len(t, manifest.Folders, 2)
	require.Len(t, manifest.Skipped, 1)
	assert.Contains(t, manifest.Skipped[0].Reason, "fetch failed")
}

func TestEnumerate_WorkspaceFetchFailure(t *testing.T) {
	api := &fakeLister{workspaces: map[int64]*smartsheet.ChildSet{}}

	e := New(api, slog.Default())
	manifest, err := e.Enumerate(context.Background(), 123)

	require.Error(t, err)
	assert.ErrorIs(t, err, smartsheet.ErrNotFound)
	require.NotNil(t, manifest)
	assert.Equal(t, 0, manifest.Total())
}

func TestManifest_Total(t *testing.T) {
	m := &Manifest{
		Sheets:     []Entry{{ID: 1}},
		Dashboards: []Entry{{ID: 2}},
		Reports:    []Entry{{ID: 3}},
		Folders:    []Entry{{ID: 4}},
		Skipped:    []SkippedEntry{{Entry: Entry{ID: 5}, Reason: "x"}},
	}

	// Skipped entries do not count toward the total.
	assert.Equal(t, 4, m.Total())
}
