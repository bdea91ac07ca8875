package parser

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var update = flag.Bool("update", false, "update golden files in testdata")

// TestGolden parses the input.ml of every testdata archive and compares a
// summary of the result with the archive's out section.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".txtar"), func(t *testing.T) {
			archive, err := txtar.ParseFile(path)
			require.NoError(t, err)

			var input []byte
			outIdx := -1
			for i, f := range archive.Files {
				switch f.Name {
				case "input.ml":
					input = f.Data
				case "out":
					outIdx = i
				}
			}
			require.NotNil(t, input, "archive has no input.ml")

			got := summarize(string(input))
			if *update {
				if outIdx < 0 {
					archive.Files = append(archive.Files, txtar.File{Name: "out"})
					outIdx = len(archive.Files) - 1
				}
				archive.Files[outIdx].Data = []byte(got)
				require.NoError(t, os.WriteFile(path, txtar.Format(archive), 0644))
				return
			}
			require.GreaterOrEqual(t, outIdx, 0, "archive has no out section")
			assert.Equal(t, string(archive.Files[outIdx].Data), got)
		})
	}
}

func summarize(src string) string {
	var buf bytes.Buffer
	f, err := ParseFile(src)
	if err != nil {
		fmt.Fprintf(&buf, "error: %v\n", err)
		return buf.String()
	}
	fmt.Fprintf(&buf, "preds: %s\n", f.Preds)
	if f.Pre == nil {
		buf.WriteString("pre: none\n")
	} else {
		fmt.Fprintf(&buf, "pre: %s\n", f.Pre)
	}
	fmt.Fprintf(&buf, "post: %s\n", f.Post)
	fmt.Fprintf(&buf, "size: %d\n", f.Post.Formula.Body.Size())
	return buf.String()
}
