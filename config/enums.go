package config

import (
	"fmt"
	"strings"
)

// Specification of requested output type for paginated results.
type OutputFmt int

const (
	OutputFmtJSON OutputFmt = iota
	OutputFmtYAML
	OutputFmtBundle
)

var outputFmtNames = [...]string{"json", "yaml", "bundle"}

func (o OutputFmt) String() string {
	if o < 0 || int(o) >= len(outputFmtNames) {
		// this should never happen
		panic("unsupported format requested")
	}
	return outputFmtNames[o]
}

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtJSON:
		return ".json"
	case OutputFmtYAML:
		return ".yaml"
	case OutputFmtBundle:
		return ".zip"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

func OutputFmtNames() []string {
	return outputFmtNames[:]
}

func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if strings.EqualFold(name, n) {
			return OutputFmt(i), nil
		}
	}
	return OutputFmtJSON, fmt.Errorf("unknown output format %q", name)
}
