package dflowfm

import (
	"fmt"
	"strings"

	"github.com/waterschap/hydroconv/pkg/logging"
)

// D-Flow FM friction type names, lower-cased.
const (
	FrictionChezy            = "chezy"
	FrictionManning          = "manning"
	FrictionStrickler        = "strickler"
	FrictionWhiteColebrook   = "whitecolebrook"
	FrictionDeBosBijkerk     = "debosbijkerk"
	FrictionWallLawNikuradse = "walllawnikuradse"
)

// GlobalFriction is one [Global] block of a friction file: a named
// definition that cross-section definitions refer to by frictionId.
type GlobalFriction struct {
	FrictionID string
	Type       string
	Value      float64
	HasValue   bool
}

// BranchFriction is a single (branch, chainage) friction sample
// unrolled from a [Branch] block.
type BranchFriction struct {
	BranchID string
	Chainage float64
	Type     string
	Value    float64
}

// ReadFrictionFile parses one friction INI file into its global
// definitions and per-branch samples. [Branch] blocks with a function
// type other than constant are passed through with a warning, matching
// what the calculation core would do with them.
func ReadFrictionFile(path string, log logging.Logger) ([]GlobalFriction, []BranchFriction, error) {
	f, err := loadINI(path)
	if err != nil {
		return nil, nil, err
	}

	var globals []GlobalFriction
	for _, sec := range sectionsNamed(f, "Global") {
		g := GlobalFriction{
			FrictionID: sec.Str("frictionId"),
			Type:       strings.ToLower(sec.Str("frictionType")),
		}
		g.Value, g.HasValue = sec.Float("frictionValue")
		globals = append(globals, g)
	}

	var branches []BranchFriction
	for _, sec := range sectionsNamed(f, "Branch") {
		branchID := sec.Str("branchId")
		chainages, ok := sec.Floats("chainage")
		if !ok {
			continue
		}
		if fn := strings.ToLower(sec.Str("functionType")); fn != "" && fn != "constant" {
			log.Warn("friction function type not supported, using values as constants",
				logging.String("function_type", fn),
				logging.String("branch_id", branchID))
		}
		values, _ := sec.Floats("frictionValues")
		typ := strings.ToLower(sec.Str("frictionType"))
		for i, chainage := range chainages {
			if i >= len(values) {
				return nil, nil, fmt.Errorf(
					"%s: branch %s has %d chainages but %d friction values",
					path, branchID, len(chainages), len(values))
			}
			branches = append(branches, BranchFriction{
				BranchID: branchID,
				Chainage: chainage,
				Type:     typ,
				Value:    values[i],
			})
		}
	}
	return globals, branches, nil
}

// ReadFriction reads every friction file named by the MDU and merges
// the results: a map of global definitions by friction ID and a map of
// per-branch samples by branch ID.
func ReadFriction(mdu *MDU, log logging.Logger) (map[string]GlobalFriction, map[string][]BranchFriction, error) {
	globals := make(map[string]GlobalFriction)
	branches := make(map[string][]BranchFriction)
	for _, name := range mdu.FrictFiles {
		g, b, err := ReadFrictionFile(mdu.Resolve(name), log)
		if err != nil {
			return nil, nil, err
		}
		for _, def := range g {
			globals[def.FrictionID] = def
		}
		for _, def := range b {
			branches[def.BranchID] = append(branches[def.BranchID], def)
		}
	}
	return globals, branches, nil
}
