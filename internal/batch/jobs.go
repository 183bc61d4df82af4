package batch

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alnah/go-shadowing/internal/audio"
)

// OutputSuffix is appended to the input's base name.
const OutputSuffix = "_ext"

// Job is one input file and where its output goes.
type Job struct {
	Index  int
	Input  string
	Output string
}

// OutputPath returns <dir>/<name>_ext.<ext> for input. An empty dir keeps the
// input's directory. Inputs whose extension cannot be encoded get ".wav".
func OutputPath(input, dir string) string {
	ext := strings.ToLower(filepath.Ext(input))
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if !slices.Contains(audio.OutputFormats(), ext) {
		ext = ".wav"
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name+OutputSuffix+ext)
}

// Jobs builds one job per distinct input. Inputs are compared after
// filepath.Clean, so "a.mp3" and "./a.mp3" are processed once. Order of first
// appearance is kept.
//
// Distinct inputs that would share an output path ("x/a.mp3" and "y/a.mp3"
// into one directory, or "a.wav" and "a.aiff") get a numbered name: the
// first keeps a_ext.mp3, later ones get a_ext-2.mp3, a_ext-3.mp3 and so on.
// Output paths are compared case-insensitively.
func Jobs(inputs []string, outDir string) []Job {
	seen := make(map[string]bool, len(inputs))
	taken := make(map[string]bool, len(inputs))
	jobs := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		clean := filepath.Clean(in)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out := uniqueOutput(OutputPath(clean, outDir), taken)
		jobs = append(jobs, Job{Index: len(jobs), Input: clean, Output: out})
	}
	return jobs
}

// uniqueOutput returns path, or the first free numbered variant of it, and
// marks the result as taken.
func uniqueOutput(path string, taken map[string]bool) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	out := path
	for n := 2; taken[strings.ToLower(out)]; n++ {
		out = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	taken[strings.ToLower(out)] = true
	return out
}
