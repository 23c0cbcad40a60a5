// Package pdfextract pulls plain text out of uploaded PDF files.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const DefaultMaxBytes = 32 << 20

var ErrTooLarge = errors.New("pdf exceeds size limit")

// ExtractText is ExtractTextLimit with DefaultMaxBytes.
func ExtractText(r io.Reader) (string, error) {
	return ExtractTextLimit(r, DefaultMaxBytes)
}

// ExtractTextLimit reads at most maxBytes from r and returns the PDF's
// plain text with trailing spaces and repeated blank lines removed. An
// empty input yields "" and no error.
func ExtractTextLimit(r io.Reader, maxBytes int64) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf failed: %w", err)
	}
	if int64(len(b)) > maxBytes {
		return "", ErrTooLarge
	}
	if len(b) == 0 {
		return "", nil
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return tidy(string(out)), nil
}

func tidy(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
