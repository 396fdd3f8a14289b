package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTextEmptyInput(t *testing.T) {
	text, err := ExtractText(nil)
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("plain text, not a pdf"))
	require.Error(t, err)
}
