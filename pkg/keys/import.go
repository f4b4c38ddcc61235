package keys

import (
	"fmt"
	"os"
	"path/filepath"
)

// portableFileMode keeps exported keys readable by the owner only.
const portableFileMode = 0o600

// Import converts the key document at inputPath into the portable encoding and
// writes it to outputPath, replacing any existing file.
//
// Only FormatJSON is importable. Any other format fails with ErrUnsupportedFormat
// before a file is touched. On failure no output file is left behind.
func Import(inputPath, outputPath string, format Format) error {
	if format != FormatJSON {
		return fmt.Errorf("%w: %q (must be 'json')", ErrUnsupportedFormat, format)
	}
	if inputPath == "" || outputPath == "" {
		return fmt.Errorf("%w: input and output paths are required", ErrInvalidArgument)
	}

	key, err := LoadFromPath(inputPath)
	if err != nil {
		return err
	}
	defer key.Destroy()

	encoded := EncodePortable(key)
	defer zero(encoded)

	return writeFileAtomic(outputPath, encoded, portableFileMode)
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place once it is fully synced.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	return nil
}
