package profile

import (
	"fmt"
	"log/slog"
	"regexp"
)

var modelEntry = regexp.MustCompile(`(?i)\.model$`)

// Result is the outcome of one extraction call.
type Result struct {
	Settings       Settings          `json:"settings"`
	Metadata       map[string]string `json:"metadata"`
	HasThumbnail   bool              `json:"has_thumbnail"`
	ThumbnailEntry string            `json:"thumbnail_entry_name,omitempty"`
	ModelCount     int               `json:"model_count"`

	// Error is set only when the package could not be opened.
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

func newResult() *Result {
	return &Result{
		Settings: Settings{},
		Metadata: map[string]string{},
	}
}

// Extractor runs the extraction pipeline with a fixed set of options. It
// holds no per-call state and may be shared between goroutines.
type Extractor struct {
	opts []Option
	o    options
}

// NewExtractor returns an Extractor that opens packages with opts.
func NewExtractor(opts ...Option) *Extractor {
	return &Extractor{opts: opts, o: buildOptions(opts)}
}

// Extract opens the package at path and extracts everything it can.
func Extract(path string, opts ...Option) *Result {
	return NewExtractor(opts...).Extract(path)
}

// Extract opens the package at path, runs every stage and closes it again.
// The returned Result is never nil.
func (e *Extractor) Extract(path string) *Result {
	pkg, err := Open(path, e.opts...)
	if err != nil {
		res := newResult()
		res.Err = err
		res.Error = err.Error()
		e.o.logger.Warn("package open failed", slog.String("path", path), slog.Any("error", err))
		return res
	}
	defer pkg.Close()

	return e.ExtractPackage(pkg)
}

// ExtractPackage runs every stage over an already opened package. The caller
// keeps ownership of pkg.
func (e *Extractor) ExtractPackage(pkg *Package) *Result {
	res := newResult()

	e.readDescriptor(pkg, res)
	for _, stage := range MergeOrder {
		e.runStage(stage, pkg, res)
	}

	if i, ok := locateThumbnail(pkg.names); ok {
		res.HasThumbnail = true
		res.ThumbnailEntry = pkg.names[i]
	}
	return res
}

// readDescriptor parses the first *.model entry with content.
func (e *Extractor) readDescriptor(pkg *Package, res *Result) {
	for i, name := range pkg.names {
		if !modelEntry.MatchString(name) {
			continue
		}
		_, data, err := pkg.ReadAt(i)
		if err != nil || len(data) == 0 {
			e.o.logger.Debug("model descriptor unreadable", slog.String("entry", name), slog.Any("error", err))
			return
		}
		d, err := parseDescriptor(data)
		if err != nil {
			e.o.logger.Debug("model descriptor malformed", slog.String("entry", name), slog.Any("error", err))
		}
		res.ModelCount = d.ModelCount
		res.Metadata = d.Metadata
		return
	}
}

// runStage isolates one stage: whatever goes wrong inside it, including a
// panic on hostile input, costs only that stage's contribution.
func (e *Extractor) runStage(stage Stage, pkg *Package, res *Result) {
	fn, ok := e.o.stages[stage]
	if !ok {
		return
	}

	// Stages write into a scratch result so a panicking stage leaves no
	// partial keys behind. A returned error still keeps what the stage merged.
	scratch := newResult()
	panicked := false
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = fmt.Errorf("stage panicked: %v", r)
			}
		}()
		return fn(pkg, scratch)
	}()
	if err != nil {
		e.o.logger.Debug("stage degraded", slog.String("stage", string(stage)), slog.Any("error", err))
	}
	if panicked {
		return
	}

	res.Settings.Merge(scratch.Settings)
	for k, v := range scratch.Metadata {
		res.Metadata[k] = v
	}
}
