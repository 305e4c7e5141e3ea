package reaper

import "github.com/wsreaper/wsreaper/internal/smartsheet"

// StatusDeleted is the status-cell value marking a row as processed.
// Rows carrying it are never reprocessed.
const StatusDeleted = "Deleted"

// ColumnMap holds the intake sheet's column IDs for the fields the
// workflow reads and writes. Column IDs are stable per sheet and come from
// configuration.
type ColumnMap struct {
	FolderURL      int64
	DeletionDate   int64
	EMNotification int64
	DeletionStatus int64
}

// IntakeRow is the extracted view of one intake sheet row. It is read
// once per pass and never mutated locally; status updates go straight to
// the remote sheet.
type IntakeRow struct {
	RowID              int64
	RowNumber          int
	FolderURL          string
	DeletionDate       string
	EMNotificationDate string
	DeletionStatus     string
}

// extractIntakeRow pulls the workflow fields out of a sheet row. For the
// folder-URL cell the hyperlink target is the canonical identifier; the
// display value is only a fallback for rows where the link was pasted as
// plain text.
func extractIntakeRow(row *smartsheet.Row, cols ColumnMap) IntakeRow {
	out := IntakeRow{RowID: row.ID, RowNumber: row.RowNumber}

	if cell := row.Cell(cols.FolderURL); cell != nil {
		if cell.Hyperlink != nil && cell.Hyperlink.URL != "" {
			out.FolderURL = cell.Hyperlink.URL
		} else {
			out.FolderURL = cell.StringValue()
		}
	}

	if cell := row.Cell(cols.DeletionDate); cell != nil {
		out.DeletionDate = cell.StringValue()
	}

	if cell := row.Cell(cols.EMNotification); cell != nil {
		out.EMNotificationDate = cell.StringValue()
	}

	if cell := row.Cell(cols.DeletionStatus); cell != nil {
		out.DeletionStatus = cell.StringValue()
	}

	return out
}
