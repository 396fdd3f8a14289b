package gcs

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassifyMarksRetryableErrors(t *testing.T) {
	err := classify("write object", &googleapi.Error{Code: http.StatusServiceUnavailable})
	require.ErrorIs(t, err, ErrTransient)

	err = classify("write object", io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, ErrTransient)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestClassifyLeavesPermanentErrors(t *testing.T) {
	err := classify("write object", &googleapi.Error{Code: http.StatusForbidden})
	require.False(t, errors.Is(err, ErrTransient))

	err = classify("sign object url", errors.New("missing private key"))
	require.False(t, errors.Is(err, ErrTransient))
}
