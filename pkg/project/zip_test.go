package project

import (
	"archive/zip"
	"testing"

	"github.com/stretchr/testify/require"
)

func zipNames(t *testing.T, archive string) []string {
	t.Helper()
	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}
