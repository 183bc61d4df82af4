package audio

import (
	"context"
	"io"
	"os"

	"github.com/alnah/go-shadowing/internal/ffmpeg"
)

// ---------------------------------------------------------------------------
// Interfaces - local to this package, following Go idiom
// ---------------------------------------------------------------------------

// commandRunner runs ffmpeg with optional piped stdin/stdout and returns
// whatever it wrote to stderr.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) (string, error)
}

// tempFileCreator creates temporary files next to the final output.
type tempFileCreator interface {
	CreateTemp(dir, pattern string) (*os.File, error)
}

// fileOpener opens input files for native decoding.
type fileOpener interface {
	Open(name string) (*os.File, error)
}

// fileStatter retrieves file information.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

// fileMover finalizes or discards temporary output files.
type fileMover interface {
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to standard library
// ---------------------------------------------------------------------------

// Compile-time interface verification. ffmpeg.Executor is the default
// commandRunner.
var _ commandRunner = (*ffmpeg.Executor)(nil)

// osTempFileCreator implements tempFileCreator using os.CreateTemp.
type osTempFileCreator struct{}

func (osTempFileCreator) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

// osFileOpener implements fileOpener using os.Open.
type osFileOpener struct{}

func (osFileOpener) Open(name string) (*os.File, error) {
	// #nosec G304 -- input path is chosen by the user on the command line
	return os.Open(name)
}

// osFileStatter implements fileStatter using os.Stat.
type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// osFileMover implements fileMover using os.Rename and os.Remove.
type osFileMover struct{}

func (osFileMover) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osFileMover) Remove(name string) error {
	return os.Remove(name)
}
