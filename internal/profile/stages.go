package profile

import (
	"fmt"
	"log/slog"
	"strings"
)

// Fixed entry names inside a package.
const (
	ContentTypesEntry = "[Content_Types].xml"
	BambuConfigEntry  = "Metadata/model_settings.config"
)

// PrusaConfigEntries are tried in order; the first non-empty one is decoded.
var PrusaConfigEntries = [...]string{
	"Metadata/Slic3r_PE.config",
	"Metadata/PrusaSlicer.config",
}

// Stage names one decoder pass of the extraction pipeline.
type Stage string

const (
	StageMetadataXML Stage = "metadata-xml"
	StageGcode       Stage = "gcode-comments"
	StageBambu       Stage = "bambu-config"
	StagePrusa       Stage = "prusa-config"
)

// MergeOrder is the fixed sequence in which stages run. A stage overwrites
// keys set by any stage before it.
var MergeOrder = [...]Stage{
	StageMetadataXML,
	StageGcode,
	StageBambu,
	StagePrusa,
}

// stageFunc reads what it needs from pkg and merges its contribution into res.
// A returned error means the stage's payload was unusable; it is logged only.
type stageFunc func(pkg *Package, res *Result) error

// defaultStages is read-only; each Extractor works on its own copy.
var defaultStages = map[Stage]stageFunc{
	StageMetadataXML: runMetadataXML,
	StageGcode:       runGcode,
	StageBambu:       runBambu,
	StagePrusa:       runPrusa,
}

func isMetadataXML(name string) bool {
	return strings.Contains(name, "Metadata/") && strings.HasSuffix(name, ".xml")
}

func isPlateGcode(name string) bool {
	return strings.Contains(name, "Metadata/plate_") && strings.HasSuffix(name, ".gcode")
}

func runMetadataXML(pkg *Package, res *Result) error {
	var failed []string
	for i, name := range pkg.names {
		if !isMetadataXML(name) {
			continue
		}
		_, data, err := pkg.ReadAt(i)
		if err != nil {
			failed = append(failed, name)
			continue
		}
		d, err := parseDescriptor(data)
		if err != nil {
			failed = append(failed, name)
			continue
		}
		for k, v := range d.Metadata {
			res.Metadata[k] = v
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("unusable metadata documents: %s", strings.Join(failed, ", "))
	}
	return nil
}

func runGcode(pkg *Package, res *Result) error {
	for i, name := range pkg.names {
		if !isPlateGcode(name) {
			continue
		}
		_, data, err := pkg.ReadAt(i)
		if err != nil {
			pkg.opts.logger.Debug("gcode entry skipped", slog.String("entry", name), slog.Any("error", err))
			continue
		}
		res.Settings.Merge(DecodeGcode(data))
	}
	return nil
}

func runBambu(pkg *Package, res *Result) error {
	data, ok := pkg.Read(BambuConfigEntry)
	if !ok || len(data) == 0 {
		return nil
	}
	settings, reason := decodeBambu(data)
	if reason != nil {
		pkg.opts.logger.Debug("bambu config is not structured, scanned lines instead", slog.Any("reason", reason))
	}
	res.Settings.Merge(settings)
	return nil
}

func runPrusa(pkg *Package, res *Result) error {
	for _, name := range PrusaConfigEntries {
		data, ok := pkg.Read(name)
		if !ok || len(data) == 0 {
			continue
		}
		res.Settings.Merge(DecodePrusa(data))
		return nil
	}
	return nil
}
