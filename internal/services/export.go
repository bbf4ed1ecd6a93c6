package services

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/huangang/thesisdesk/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet is a table ready to be written as a workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

const (
	minColumnWidth = 10
	maxColumnWidth = 80
	// built-in number format "m/d/yy h:mm"
	dateTimeNumFmt = 22
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// WriteWorkbook renders sheet as xlsx: a bold white header on blue, thin
// borders on every cell, timestamps formatted as dates and columns sized to
// their content.
func WriteWorkbook(w io.Writer, sheet Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sheet.Name
	if name == "" {
		name = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"3B82F6"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder,
		NumFmt:    dateTimeNumFmt,
	})
	if err != nil {
		return err
	}

	widths := make([]int, len(sheet.Headers))
	for col, header := range sheet.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(name, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
			return err
		}
		widths[col] = max(minColumnWidth, utf8.RuneCountInString(header))
	}

	for r, row := range sheet.Rows {
		for col := range sheet.Headers {
			var value interface{}
			if col < len(row) {
				value = row[col]
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			style := cellStyle
			var width int

			switch v := value.(type) {
			case nil:
				value = ""
			case *string:
				if v == nil {
					value = ""
				} else {
					value = *v
				}
			case *time.Time:
				if v == nil {
					value = ""
				} else {
					value = *v
				}
			}
			if _, ok := value.(time.Time); ok {
				style = dateStyle
				width = len("2006-01-02 15:04")
			} else {
				width = utf8.RuneCountInString(fmt.Sprint(value))
			}

			if err := f.SetCellValue(name, cell, value); err != nil {
				return err
			}
			if err := f.SetCellStyle(name, cell, cell, style); err != nil {
				return err
			}
			if width > widths[col] {
				widths[col] = width
			}
		}
	}

	for col, width := range widths {
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(name, colName, colName, float64(min(width, maxColumnWidth)+2)); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// ExportUsers builds the user sheet, optionally restricted to one role.
func (s *UserService) ExportUsers(ctx context.Context, role models.Role) (*Sheet, error) {
	q := s.db.WithContext(ctx).Order("last_name ASC").Order("first_name ASC").Order("id ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}

	name := "Users"
	switch role {
	case models.RoleStudent:
		name = "Students"
	case models.RoleFaculty:
		name = "Faculty"
	case models.RoleStaff:
		name = "Staff"
	case models.RoleAdmin:
		name = "Admins"
	}

	sheet := &Sheet{
		Name:    name,
		Headers: []string{"ID Number", "First Name", "Middle Name", "Last Name", "Email", "Role", "Phone Number", "Created At"},
		Rows:    make([][]interface{}, 0, len(users)),
	}
	for i := range users {
		u := &users[i]
		sheet.Rows = append(sheet.Rows, []interface{}{
			u.IDNumber(), u.FirstName, u.MiddleName, u.LastName, u.Email, string(u.Role), u.PhoneNumber, u.CreatedAt,
		})
	}
	return sheet, nil
}
