package parser_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pseudomuto/dumbo/pkg/parser"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestGoldenFiles(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("testdata", "*.in.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "No *.in.sql files found in testdata directory")

	for _, inputFile := range matches {
		// "example.in.sql" -> "example.golden"
		outputName := strings.TrimSuffix(filepath.Base(inputFile), ".in.sql") + ".golden"

		t.Run(outputName, func(t *testing.T) {
			script, err := os.ReadFile(inputFile)
			require.NoError(t, err)

			stmts, err := parser.Split(string(script))
			require.NoError(t, err)

			var buf strings.Builder
			for i, stmt := range stmts {
				fmt.Fprintf(&buf, "-- statement %d (line %d, %s)\n%s\n\n", i+1, stmt.Line, stmt.Kind, stmt.Text)
			}

			golden.Assert(t, buf.String(), outputName)
		})
	}
}
