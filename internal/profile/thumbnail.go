package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

var (
	plateThumbnail   = regexp.MustCompile(`(?i)Metadata/plate_\d+\.png$`)
	genericThumbnail = regexp.MustCompile(`(?i)thumbnail`)
	imageExtension   = regexp.MustCompile(`(?i)\.(png|jpe?g)$`)
)

// locateThumbnail picks the first plate preview, else the first entry with
// "thumbnail" in its name and an image extension.
func locateThumbnail(names []string) (int, bool) {
	for i, name := range names {
		if plateThumbnail.MatchString(name) {
			return i, true
		}
	}
	for i, name := range names {
		if genericThumbnail.MatchString(name) && imageExtension.MatchString(name) {
			return i, true
		}
	}
	return -1, false
}

// ReadThumbnail returns the preview entry chosen by the thumbnail rules.
func ReadThumbnail(pkg *Package) (string, []byte, bool) {
	i, ok := locateThumbnail(pkg.names)
	if !ok {
		return "", nil, false
	}
	name, data, err := pkg.ReadAt(i)
	if err != nil || len(data) == 0 {
		pkg.opts.logger.Debug("thumbnail unreadable", slog.String("entry", name), slog.Any("error", err))
		return name, nil, false
	}
	return name, data, true
}

// ExtractThumbnail copies the package preview byte for byte to outputPath.
// It reports false when there is no preview, it cannot be read or the write
// fails. Nothing is left at outputPath on failure.
func ExtractThumbnail(pkg *Package, outputPath string) bool {
	_, data, ok := ReadThumbnail(pkg)
	if !ok {
		return false
	}
	if err := writeFileAtomic(outputPath, data); err != nil {
		pkg.opts.logger.Debug("thumbnail write failed", slog.String("path", outputPath), slog.Any("error", err))
		return false
	}
	return true
}

// ExtractThumbnailFile opens the package at path and extracts its preview.
func ExtractThumbnailFile(path, outputPath string, opts ...Option) bool {
	pkg, err := Open(path, opts...)
	if err != nil {
		return false
	}
	defer pkg.Close()
	return ExtractThumbnail(pkg, outputPath)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thumbnail-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
