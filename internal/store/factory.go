package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// factoryRe matches the supported index factory strings:
// "Flat", "IVF<nlist>,Flat", "HNSW<M>".
var factoryRe = regexp.MustCompile(`^(Flat|IVF(\d+),Flat|HNSW(\d+))$`)

// FactorySpec is a parsed index factory string.
type FactorySpec struct {
	// Kind is "Flat", "IVF" or "HNSW".
	Kind string
	// NList is the cell count for IVF indexes.
	NList int
	// M is the neighbor count for HNSW indexes.
	M int
}

// ParseFactory parses a factory string such as "Flat", "IVF256,Flat" or
// "HNSW32" into a FactorySpec.
func ParseFactory(factory string) (FactorySpec, error) {
	m := factoryRe.FindStringSubmatch(factory)
	if m == nil {
		return FactorySpec{}, fmt.Errorf("unsupported index factory %q", factory)
	}

	switch {
	case factory == "Flat":
		return FactorySpec{Kind: "Flat"}, nil
	case strings.HasPrefix(factory, "IVF"):
		nlist, err := strconv.Atoi(m[2])
		if err != nil || nlist <= 0 {
			return FactorySpec{}, fmt.Errorf("invalid nlist in factory %q", factory)
		}
		return FactorySpec{Kind: "IVF", NList: nlist}, nil
	default:
		mParam, err := strconv.Atoi(m[3])
		if err != nil || mParam <= 0 {
			return FactorySpec{}, fmt.Errorf("invalid M in factory %q", factory)
		}
		return FactorySpec{Kind: "HNSW", M: mParam}, nil
	}
}

// NewIndex builds an empty VectorIndex from a factory string.
func NewIndex(factory string, dims int, metric string, nprobe int) (VectorIndex, error) {
	spec, err := ParseFactory(factory)
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case "Flat":
		return NewFlatIndex(dims, metric)
	case "IVF":
		return NewIVFIndex(dims, metric, spec.NList, nprobe)
	default:
		return NewHNSWIndex(dims, metric, spec.M)
	}
}
