package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxChars caps extracted text so one attachment cannot crowd the prompt.
const MaxChars = 100_000

// ExtractText pulls plain text out of a PDF held in memory. A PDF with no
// text layer yields "" and a nil error.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	out, err := io.ReadAll(io.LimitReader(plainReader, MaxChars*4))
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if r := []rune(text); len(r) > MaxChars {
		text = string(r[:MaxChars])
	}
	return text, nil
}
