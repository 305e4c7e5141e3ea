package smartsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// listPageSize is the page size for index endpoints. 100 is the maximum
// the Smartsheet API allows per page.
const listPageSize = 100

// ListSheets returns every sheet the token can see, exhausting pagination
// before returning.
func (c *Client) ListSheets(ctx context.Context) ([]ObjectRef, error) {
	c.logger.Info("listing sheets")

	var all []ObjectRef

	page := 1

	for {
		var res indexResult[ObjectRef]
		path := fmt.Sprintf("/sheets?pageSize=%d&page=%d", listPageSize, page)

		if err := c.getJSON(ctx, path, &res); err != nil {
			return nil, err
		}

		all = append(all, res.Data...)

		c.logger.Debug("fetched sheets page",
			slog.Int("page", page),
			slog.Int("count", len(res.Data)),
		)

		if page >= totalPagesOrOne(res.TotalPages) {
			break
		}

		page++
	}

	c.logger.Info("listed sheets complete", slog.Int("total_sheets", len(all)))

	return all, nil
}

// GetSheet retrieves a full sheet by ID, including rows and the parent
// workspace reference when the sheet lives in one.
func (c *Client) GetSheet(ctx context.Context, sheetID int64) (*Sheet, error) {
	c.logger.Info("getting sheet", slog.Int64("sheet_id", sheetID))

	var sheet Sheet
	if err := c.getJSON(ctx, fmt.Sprintf("/sheets/%d?include=workspace", sheetID), &sheet); err != nil {
		return nil, err
	}

	return &sheet, nil
}

// updateRowRequest is the body element for PUT /sheets/{id}/rows.
type updateRowRequest struct {
	ID    int64  `json:"id"`
	Cells []Cell `json:"cells"`
}

// UpdateRowCell sets a single cell of a row to the given string value.
// Uses strict=false so the API coerces the value to the column type.
func (c *Client) UpdateRowCell(ctx context.Context, sheetID, rowID, columnID int64, value string) error {
	c.logger.Info("updating row cell",
		slog.Int64("sheet_id", sheetID),
		slog.Int64("row_id", rowID),
		slog.Int64("column_id", columnID),
		slog.String("value", value),
	)

	strict := false
	body := []updateRowRequest{{
		ID:    rowID,
		Cells: []Cell{{ColumnID: columnID, Value: value, Strict: &strict}},
	}}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("smartsheet: marshaling row update: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPut, fmt.Sprintf("/sheets/%d/rows", sheetID), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("smartsheet: decoding row update response: %w", err)
	}

	if env.Message != "SUCCESS" {
		return fmt.Errorf("smartsheet: row update returned %q (resultCode %d)", env.Message, env.ResultCode)
	}

	return nil
}

// totalPagesOrOne normalizes the totalPages field: some endpoints omit it,
// which means a single page.
func totalPagesOrOne(totalPages int) int {
	if totalPages < 1 {
		return 1
	}

	return totalPages
}
