package smartsheet

// ObjectRef identifies a named Smartsheet container object (workspace,
// folder, sheet, report, or dashboard) by ID and permalink.
type ObjectRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Permalink string `json:"permalink"`
}

// ChildSet holds the typed direct children of a workspace or folder as the
// API returns them: one list per object type. Dashboards are "sights" on
// the wire for historical reasons.
type ChildSet struct {
	Sheets     []ObjectRef `json:"sheets"`
	Folders    []ObjectRef `json:"folders"`
	Reports    []ObjectRef `json:"reports"`
	Dashboards []ObjectRef `json:"sights"`
}

// Empty reports whether the child set contains no objects at all.
func (c *ChildSet) Empty() bool {
	return len(c.Sheets) == 0 && len(c.Folders) == 0 && len(c.Reports) == 0 && len(c.Dashboards) == 0
}

// Workspace is a top-level Smartsheet container.
type Workspace struct {
	ObjectRef
	AccessLevel string `json:"accessLevel"`
}

// Hyperlink is the structured link a cell may carry. The target URL is the
// canonical identifier for the linked object, distinct from the cell's
// display value.
type Hyperlink struct {
	URL string `json:"url"`
}

// Cell is a single sheet cell. Value is stringified by the API for TEXT and
// DATE columns; date cells carry ISO YYYY-MM-DD strings.
type Cell struct {
	ColumnID  int64      `json:"columnId"`
	Value     any        `json:"value,omitempty"`
	Strict    *bool      `json:"strict,omitempty"`
	Hyperlink *Hyperlink `json:"hyperlink,omitempty"`
}

// StringValue returns the cell value as a string, or "" when the cell is
// empty or holds a non-string value.
func (c *Cell) StringValue() string {
	s, ok := c.Value.(string)
	if !ok {
		return ""
	}

	return s
}

// Row is a sheet row with its cells.
type Row struct {
	ID        int64  `json:"id"`
	RowNumber int    `json:"rowNumber"`
	Cells     []Cell `json:"cells"`
}

// Cell returns the row's cell for the given column ID, or nil when the row
// has no cell in that column.
func (r *Row) Cell(columnID int64) *Cell {
	for i := range r.Cells {
		if r.Cells[i].ColumnID == columnID {
			return &r.Cells[i]
		}
	}

	return nil
}

// Sheet is a full sheet with rows. Workspace is present only when the sheet
// lives in a workspace; callers must nil-check instead of assuming it.
type Sheet struct {
	ObjectRef
	TotalRowCount int        `json:"totalRowCount"`
	Workspace     *ObjectRef `json:"workspace,omitempty"`
	Rows          []Row      `json:"rows"`
}

// User is the authenticated Smartsheet account.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// indexResult is the paged list envelope used by all Smartsheet index
// endpoints: {pageNumber, pageSize, totalPages, totalCount, data: [...]}.
type indexResult[T any] struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
	Data       []T `json:"data"`
}

// resultEnvelope is the mutation response envelope:
// {"message": "SUCCESS", "resultCode": 0}.
type resultEnvelope struct {
	Message    string `json:"message"`
	ResultCode int    `json:"resultCode"`
}
