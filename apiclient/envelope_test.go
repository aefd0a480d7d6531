package apiclient_test

import (
	"testing"

	"github.com/cagkantasci/smartop/apiclient"
	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestDecodeList_Shapes(t *testing.T) {
	want := []apiclient.Submission{{ID: "s1", Status: "pending"}, {ID: "s2", Status: "pending"}}
	items := `[{"id":"s1","status":"pending"},{"id":"s2","status":"pending"}]`

	tests := map[string]string{
		"bare array":         items,
		"resource key":       `{"submissions":` + items + `,"total":2}`,
		"data envelope":      `{"data":` + items + `}`,
		"paginated envelope": `{"data":{"submissions":` + items + `},"meta":{"page":1}}`,
		"padded":             "\n  " + items + "\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := apiclient.DecodeList[apiclient.Submission]([]byte(body), "submissions")
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestDecodeList_Empty(t *testing.T) {
	for _, body := range []string{"", "null", "[]", `{"data":[]}`, `{"machines":null}`} {
		got, err := apiclient.DecodeList[apiclient.Machine]([]byte(body), "machines")
		require.NoError(t, err, body)
		require.Empty(t, got, body)
	}
}

func TestDecodeList_Unrecognised(t *testing.T) {
	for _, body := range []string{`{"rows":[]}`, `"text"`, `{"data":{"data":{"data":[]}}}`} {
		_, err := apiclient.DecodeList[apiclient.Machine]([]byte(body), "machines")
		require.ErrorIs(t, err, apperrors.ErrInvalidInput, body)
	}
}

func TestSubmissionPending(t *testing.T) {
	require.True(t, apiclient.Submission{}.Pending())
	require.True(t, apiclient.Submission{Status: "pending"}.Pending())
	require.False(t, apiclient.Submission{Status: "approved"}.Pending())
}
