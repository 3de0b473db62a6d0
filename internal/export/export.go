// Package export renders stored feedback as downloadable CSV or plain-text reports.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

// Form identifies an export representation.
type Form string

const (
	// FormCSV is a comma separated file with a header row.
	FormCSV Form = "CSV"
	// FormPlainText is a human readable report with pipe-delimited rows.
	FormPlainText Form = "PLAIN_TEXT"

	contentTypeCSV       = "text/csv; charset=utf-8"
	contentTypePlainText = "text/plain; charset=utf-8"
	fileExtensionCSV     = "csv"
	fileExtensionText    = "txt"

	columnID        = "id"
	columnGrade     = "grau"
	columnCreatedAt = "created_at"
	columnWeekday   = "weekday"

	plainTextTitle          = "Feedback export"
	plainTextGeneratedLabel = "Generated at: "
	plainTextDayLabel       = "Filtered by day: "
	plainTextTotalLabel     = "Total records: "
	plainTextSeparator      = " | "
	lineBreak               = "\n"

	errorMessageUnsupportedForm = "export: unsupported form"
	errorMessageWriteHeader     = "export: write header"
	errorMessageWriteRow        = "export: write row"
	errorMessageFlush           = "export: flush"
)

// ErrUnsupportedForm is returned for forms other than FormCSV and FormPlainText.
var ErrUnsupportedForm = errors.New(errorMessageUnsupportedForm)

var columnNames = []string{columnID, columnGrade, columnCreatedAt, columnWeekday}

// Metadata describes the exported selection for the plain-text header block.
type Metadata struct {
	Day         model.Day
	Total       int64
	GeneratedAt time.Time
}

// RowSource streams events to visit in export order and stops at the first visit error.
type RowSource func(visit func(model.FeedbackEvent) error) error

// ContentType returns the HTTP media type for form.
func (form Form) ContentType() string {
	if form == FormPlainText {
		return contentTypePlainText
	}
	return contentTypeCSV
}

// FileExtension returns the download file extension for form.
func (form Form) FileExtension() string {
	if form == FormPlainText {
		return fileExtensionText
	}
	return fileExtensionCSV
}

// Write renders the rows produced by source to destination in the requested form.
// Rows are written as they arrive; nothing is buffered beyond the writer's own buffer.
func Write(destination io.Writer, form Form, metadata Metadata, source RowSource) error {
	switch form {
	case FormCSV:
		return writeCSV(destination, source)
	case FormPlainText:
		return writePlainText(destination, metadata, source)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedForm, string(form))
	}
}

func writeCSV(destination io.Writer, source RowSource) error {
	csvWriter := csv.NewWriter(destination)
	if headerErr := csvWriter.Write(columnNames); headerErr != nil {
		return fmt.Errorf("%s: %w", errorMessageWriteHeader, headerErr)
	}

	sourceErr := source(func(event model.FeedbackEvent) error {
		if rowErr := csvWriter.Write(eventRecord(event)); rowErr != nil {
			return fmt.Errorf("%s: %w", errorMessageWriteRow, rowErr)
		}
		return nil
	})
	if sourceErr != nil {
		return sourceErr
	}

	csvWriter.Flush()
	if flushErr := csvWriter.Error(); flushErr != nil {
		return fmt.Errorf("%s: %w", errorMessageFlush, flushErr)
	}
	return nil
}

func writePlainText(destination io.Writer, metadata Metadata, source RowSource) error {
	bufferedWriter := bufio.NewWriter(destination)

	var header strings.Builder
	header.WriteString(plainTextTitle + lineBreak)
	header.WriteString(plainTextGeneratedLabel + metadata.GeneratedAt.Format(model.TimestampLayout) + lineBreak)
	if !metadata.Day.IsZero() {
		header.WriteString(plainTextDayLabel + metadata.Day.String() + lineBreak)
	}
	header.WriteString(plainTextTotalLabel + humanize.Comma(metadata.Total) + lineBreak)
	header.WriteString(lineBreak)
	header.WriteString(strings.Join(columnNames, plainTextSeparator) + lineBreak)
	if _, headerErr := bufferedWriter.WriteString(header.String()); headerErr != nil {
		return fmt.Errorf("%s: %w", errorMessageWriteHeader, headerErr)
	}

	sourceErr := source(func(event model.FeedbackEvent) error {
		line := strings.Join(eventRecord(event), plainTextSeparator) + lineBreak
		if _, rowErr := bufferedWriter.WriteString(line); rowErr != nil {
			return fmt.Errorf("%s: %w", errorMessageWriteRow, rowErr)
		}
		return nil
	})
	if sourceErr != nil {
		return sourceErr
	}

	if flushErr := bufferedWriter.Flush(); flushErr != nil {
		return fmt.Errorf("%s: %w", errorMessageFlush, flushErr)
	}
	return nil
}

func eventRecord(event model.FeedbackEvent) []string {
	return []string{
		strconv.FormatUint(uint64(event.ID), 10),
		event.Grade.String(),
		event.CreatedAt,
		event.Weekday,
	}
}

// FileName builds the attachment name for an export, scoped to day when one is selected.
func FileName(form Form, day model.Day) string {
	if day.IsZero() {
		return fmt.Sprintf("feedback.%s", form.FileExtension())
	}
	return fmt.Sprintf("feedback-%s.%s", day.String(), form.FileExtension())
}
