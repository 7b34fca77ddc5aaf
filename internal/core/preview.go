package core

import (
	"context"
	"io"
	"os"

	"github.com/JonMunkholm/printshelf/internal/profile"
)

// PreviewResult is what an upload would produce, without storing anything.
type PreviewResult struct {
	SHA256  string          `json:"sha256"`
	Size    int64           `json:"size"`
	Result  *profile.Result `json:"result"`
	Summary profile.Summary `json:"summary"`
	Cached  bool            `json:"cached"`
}

// Preview validates and extracts an uploaded package from a temporary copy.
// Results are cached by content hash, so re-posting the same file is cheap.
func (s *Service) Preview(ctx context.Context, filename string, r io.Reader) (PreviewResult, error) {
	if err := checkExtension(filename); err != nil {
		return PreviewResult{}, err
	}

	sf, err := spool("", "preview-*.3mf", r, s.maxFileSize)
	if err != nil {
		return PreviewResult{}, err
	}
	defer os.Remove(sf.Path)

	if cached, ok := s.previews.Get(sf.SHA256); ok {
		cached.Cached = true
		return cached, nil
	}

	if err := s.ValidateUpload(sf.Path); err != nil {
		return PreviewResult{}, err
	}
	res, err := s.extract(ctx, sf.Path)
	if err != nil {
		return PreviewResult{}, err
	}

	out := PreviewResult{
		SHA256:  sf.SHA256,
		Size:    sf.Size,
		Result:  res,
		Summary: profile.Summarize(res.Settings),
	}
	s.previews.Add(sf.SHA256, out)
	return out, nil
}

// PreviewCacheLen reports how many previews are cached.
func (s *Service) PreviewCacheLen() int {
	return s.previews.Len()
}
