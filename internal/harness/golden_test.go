package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"count_by_country",
		"empty_pool_skips",
		"full_scan_retry",
		"unknown_table_rejected",
	} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRenderTrace_SortsRows(t *testing.T) {
	r := sampleResult()
	r.Steps[0].Rows[0], r.Steps[0].Rows[1] = r.Steps[0].Rows[1], r.Steps[0].Rows[0]

	out := string(RenderTrace("sample", r))
	assert.Equal(t, `scenario sample
step 0 students DONE retried
  > SELECT id, name, overallcgpa FROM students WHERE overallcgpa > ?
  > SELECT id, name, overallcgpa FROM students WHERE overallcgpa > ? ALLOW FILTERING
  | id=1 name=Aisha Rahman overallcgpa=3.8
  | id=2 name=Ben Tan overallcgpa=3.1
step 1 subjects DONE
  > SELECT COUNT(*) FROM subjects WHERE id IN (?, ?)
  count 7
`, out)
}
