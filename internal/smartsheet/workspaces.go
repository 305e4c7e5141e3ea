package smartsheet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// workspacePage is the GET /workspaces/{id} response: the workspace fields
// plus typed child lists and the pagination envelope.
type workspacePage struct {
	ObjectRef
	ChildSet
	TotalPages int `json:"totalPages"`
}

// ListWorkspaces returns every workspace the token can see, exhausting
// pagination before returning.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	c.logger.Info("listing workspaces")

	var all []Workspace

	page := 1

	for {
		var res indexResult[Workspace]
		path := fmt.Sprintf("/workspaces?pageSize=%d&page=%d", listPageSize, page)

		if err := c.getJSON(ctx, path, &res); err != nil {
			return nil, err
		}

		all = append(all, res.Data...)

		if page >= totalPagesOrOne(res.TotalPages) {
			break
		}

		page++
	}

	c.logger.Info("listed workspaces complete", slog.Int("total_workspaces", len(all)))

	return all, nil
}

// GetWorkspaceChildren returns the typed direct children of a workspace,
// merging all pages before returning so callers never see a partial node.
func (c *Client) GetWorkspaceChildren(ctx context.Context, workspaceID int64) (*ChildSet, error) {
	return c.fetchChildren(ctx, "workspace", fmt.Sprintf("/workspaces/%d", workspaceID), workspaceID)
}

// GetFolderChildren returns the typed direct children of a folder,
// merging all pages before returning.
func (c *Client) GetFolderChildren(ctx context.Context, folderID int64) (*ChildSet, error) {
	return c.fetchChildren(ctx, "folder", fmt.Sprintf("/folders/%d", folderID), folderID)
}

// fetchChildren pages through a container endpoint and accumulates its
// typed child lists. Shared by workspace and folder listing.
func (c *Client) fetchChildren(ctx context.Context, kind, basePath string, id int64) (*ChildSet, error) {
	c.logger.Info("listing container children",
		slog.String("kind", kind),
		slog.Int64("id", id),
	)

	var children ChildSet

	page := 1

	for {
		var res workspacePage
		path := fmt.Sprintf("%s?pageSize=%d&page=%d", basePath, listPageSize, page)

		if err := c.getJSON(ctx, path, &res); err != nil {
			return nil, err
		}

		children.Sheets = append(children.Sheets, res.Sheets...)
		children.Folders = append(children.Folders, res.Folders...)
		children.Reports = append(children.Reports, res.Reports...)
		children.Dashboards = append(children.Dashboards, res.Dashboards...)

		c.logger.Debug("fetched children page",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.Int("page", page),
		)

		if page >= totalPagesOrOne(res.TotalPages) {
			break
		}

		page++
	}

	return &children, nil
}

// DeleteWorkspace deletes a workspace and everything in it.
func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID int64) error {
	c.logger.Info("deleting workspace", slog.Int64("workspace_id", workspaceID))

	return c.deleteContainer(ctx, fmt.Sprintf("/workspaces/%d", workspaceID))
}

// DeleteFolder deletes a folder and everything in it.
func (c *Client) DeleteFolder(ctx context.Context, folderID int64) error {
	c.logger.Info("deleting folder", slog.Int64("folder_id", folderID))

	return c.deleteContainer(ctx, fmt.Sprintf("/folders/%d", folderID))
}

// deleteContainer issues a DELETE and verifies the SUCCESS envelope.
func (c *Client) deleteContainer(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("smartsheet: decoding delete response: %w", err)
	}

	if env.Message != "SUCCESS" {
		return fmt.Errorf("smartsheet: delete returned %q (resultCode %d)", env.Message, env.ResultCode)
	}

	return nil
}
