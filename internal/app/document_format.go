package app

import (
	"math"
	"strconv"
	"strings"

	"aria-chat/internal/model"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count in binary units, e.g. 1536 -> "1.5 KB".
func FormatFileSize(size *int64) string {
	if size == nil || *size <= 0 {
		return "Unknown"
	}

	value := float64(*size)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}

func StatusLabel(status model.DocumentStatus) string {
	switch status {
	case model.DocumentProcessing:
		return "Processing"
	case model.DocumentReady:
		return "Ready"
	case model.DocumentFailed:
		return "Failed"
	default:
		return string(status)
	}
}

// StatusVariant maps a status to the badge variant shown next to it.
func StatusVariant(status model.DocumentStatus) string {
	switch status {
	case model.DocumentReady:
		return "default"
	case model.DocumentFailed:
		return "destructive"
	case model.DocumentProcessing:
		return "secondary"
	default:
		return "outline"
	}
}

// FilterDocuments keeps documents whose name, file type or status contains
// query, ignoring case. A blank query returns docs unchanged.
func FilterDocuments(docs []model.Document, query string) []model.Document {
	if strings.TrimSpace(query) == "" {
		return docs
	}
	q := strings.ToLower(query)

	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		fileType := ""
		if doc.FileType != nil {
			fileType = *doc.FileType
		}
		if strings.Contains(strings.ToLower(doc.Name), q) ||
			strings.Contains(strings.ToLower(fileType), q) ||
			strings.Contains(strings.ToLower(string(doc.Status)), q) {
			out = append(out, doc)
		}
	}
	return out
}

// FileExtension returns "." plus the lowercased text after the last dot.
// A name without a dot yields "." plus the whole name.
func FileExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return "." + strings.ToLower(name[i+1:])
	}
	return "." + strings.ToLower(name)
}
