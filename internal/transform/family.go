// Package transform implements the parametric transform families used by the
// rectification solver: parameter-vector <-> 3x3 matrix conversions, the
// per-pixel intensity Jacobian with respect to the parameters, and the linear
// constraint rows that anchor the output window.
package transform

import (
	"fmt"
	"strings"
)

// Family identifies a parametric transform family.
type Family int

const (
	// Euclidean is rotation + translation: 3 parameters (theta, tx, ty).
	Euclidean Family = iota
	// Similarity is scale + rotation + translation: 4 parameters (s, theta, tx, ty).
	Similarity
	// Affine is a general 2x3 linear map: 6 parameters (row-major).
	Affine
	// Homography is a full projective map: 8 parameters (row-major, h22 fixed to 1).
	Homography
)

// Restriction optionally freezes degrees of freedom of the parameter update.
type Restriction int

const (
	// NoRestriction leaves all family parameters free.
	NoRestriction Restriction = iota
	// NoTranslation freezes the translation parameters of the family.
	NoTranslation
)

// String returns the canonical name of the family.
func (f Family) String() string {
	switch f {
	case Euclidean:
		return "euclidean"
	case Similarity:
		return "similarity"
	case Affine:
		return "affine"
	case Homography:
		return "homography"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	return f >= Euclidean && f <= Homography
}

// ParamCount returns the dimension of the family's parameter vector.
// Restrictions do not change the dimension; they are enforced through
// constraint rows on the incremental update instead.
func (f Family) ParamCount() int {
	switch f {
	case Euclidean:
		return 3
	case Similarity:
		return 4
	case Affine:
		return 6
	case Homography:
		return 8
	}
	return 0
}

// translationIndices returns the positions of the translation parameters
// inside the family's parameter vector.
func (f Family) translationIndices() []int {
	switch f {
	case Euclidean:
		return []int{1, 2}
	case Similarity:
		return []int{2, 3}
	case Affine:
		return []int{2, 5}
	case Homography:
		return []int{2, 5}
	}
	return nil
}

// hasScaleFreedom reports whether the family can rescale the window, which
// requires edge-length constraints to rule out the trivial shrink-to-uniform
// solution.
func (f Family) hasScaleFreedom() bool {
	return f != Euclidean
}

// ParseFamily converts a mode name ("affine", "homography", ...) to a Family.
// A "_notranslation" suffix selects the NoTranslation restriction.
func ParseFamily(mode string) (Family, Restriction, error) {
	name := strings.ToLower(strings.TrimSpace(mode))
	restriction := NoRestriction
	if base, ok := strings.CutSuffix(name, "_notranslation"); ok {
		name = base
		restriction = NoTranslation
	}
	switch name {
	case "euclidean":
		return Euclidean, restriction, nil
	case "similarity":
		return Similarity, restriction, nil
	case "affine":
		return Affine, restriction, nil
	case "homography", "projective":
		return Homography, restriction, nil
	}
	return 0, 0, fmt.Errorf("unknown transform mode %q", mode)
}
