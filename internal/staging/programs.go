package staging

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolFilenames are the fixed file names one native tool expects inside its
// staged directory. Not every tool uses every slot.
type ToolFilenames struct {
	Exe      string `yaml:"exe"`
	Control  string `yaml:"control"`
	Phases   string `yaml:"phases"`
	Stations string `yaml:"stations"`
	Summary  string `yaml:"summary"`
	Scatter  string `yaml:"scatter"`
}

// ProgramsFile holds per-tool filename overrides, loadable from YAML for
// sites that ship renamed binaries or control files.
type ProgramsFile struct {
	NLLoc   ToolFilenames `yaml:"nlloc"`
	Hyp2000 ToolFilenames `yaml:"hyp2000"`
	FocMec  ToolFilenames `yaml:"focmec"`
}

// DefaultPrograms returns the stock tool filenames.
func DefaultPrograms() ProgramsFile {
	return ProgramsFile{
		NLLoc: ToolFilenames{
			Exe:     "NLLoc",
			Phases:  "nlloc.obs",
			Summary: "nlloc.hyp",
			Scatter: "nlloc.scat",
		},
		Hyp2000: ToolFilenames{
			Exe:      "hyp2000",
			Control:  "bay2000.inp",
			Phases:   "hyp2000.pha",
			Stations: "stations.dat",
			Summary:  "hypo.prt",
		},
		FocMec: ToolFilenames{
			Exe:     "rfocmec",
			Phases:  "focmec.dat",
			Summary: "focmec.out",
		},
	}
}

// LoadPrograms reads a YAML override file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func LoadPrograms(path string) (ProgramsFile, error) {
	programs := DefaultPrograms()
	if path == "" {
		return programs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ProgramsFile{}, fmt.Errorf("read programs file: %w", err)
	}
	var overrides ProgramsFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return ProgramsFile{}, fmt.Errorf("parse programs file %s: %w", path, err)
	}
	mergeFilenames(&programs.NLLoc, overrides.NLLoc)
	mergeFilenames(&programs.Hyp2000, overrides.Hyp2000)
	mergeFilenames(&programs.FocMec, overrides.FocMec)
	return programs, nil
}

func mergeFilenames(dst *ToolFilenames, src ToolFilenames) {
	if src.Exe != "" {
		dst.Exe = src.Exe
	}
	if src.Control != "" {
		dst.Control = src.Control
	}
	if src.Phases != "" {
		dst.Phases = src.Phases
	}
	if src.Stations != "" {
		dst.Stations = src.Stations
	}
	if src.Summary != "" {
		dst.Summary = src.Summary
	}
	if src.Scatter != "" {
		dst.Scatter = src.Scatter
	}
}
