package safe

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Parse decodes a manifest and its product annotations. annotations is keyed
// by annotation path; keys may be SAFE-relative, "./"-prefixed or include the
// SAFE directory. The returned product owns the swaths.
func Parse(location string, manifest []byte, annotations map[string][]byte) (*Product, error) {
	p, err := ParseManifest(location, manifest)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		set, ok := p.fileSet(key)
		if !ok || set.Annotation == "" {
			return nil, malformed(key, "dataObject", fmt.Errorf("annotation not listed in manifest"))
		}
		sw, err := ParseAnnotation(p, set.Annotation, annotations[key])
		if err != nil {
			return nil, err
		}
		p.swaths = append(p.swaths, sw)
	}

	if len(p.swaths) == 0 {
		return nil, malformed(ManifestName, "annotation", fmt.Errorf("no product annotations supplied"))
	}

	p.IW2MidRange = p.iw2MidRange()
	return p, nil
}

// iw2MidRange returns the mid range of the IW2 swath, or zero for products
// without one.
func (p *Product) iw2MidRange() float64 {
	for _, sw := range p.swaths {
		if sw.Name == "IW2" {
			return sw.MidRange()
		}
	}
	return 0
}

// Swaths returns the parsed swaths ordered by polarization then swath number.
func (p *Product) Swaths() []*Swath {
	out := make([]*Swath, len(p.swaths))
	copy(out, p.swaths)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Polarization != out[j].Polarization {
			return out[i].Polarization < out[j].Polarization
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// AnnotatedPolarizations returns the polarizations that have annotations.
func (p *Product) AnnotatedPolarizations() []string {
	seen := make(map[string]bool)
	var pols []string
	for _, s := range p.FileSets() {
		if s.Annotation != "" && !seen[s.Polarization] {
			seen[s.Polarization] = true
			pols = append(pols, s.Polarization)
		}
	}
	sort.Strings(pols)
	return pols
}

// Swath returns the swath for a polarization and 1-based swath number.
func (p *Product) Swath(pol string, index int) (*Swath, error) {
	pol = strings.ToUpper(pol)

	hasPol := false
	for _, sw := range p.swaths {
		if sw.Polarization != pol {
			continue
		}
		hasPol = true
		if sw.Index == index {
			return sw, nil
		}
	}

	if !hasPol {
		return nil, fmt.Errorf("%w: %s has no %s annotation", ErrUnsupportedPolarization, p.Name, pol)
	}
	return nil, fmt.Errorf("%w: %s has no swath %d for %s", ErrSwathNotFound, p.Name, index, pol)
}

// EntryName returns the container entry name of a SAFE-relative path.
func (p *Product) EntryName(rel string) string {
	return path.Join(p.Name+".SAFE", rel)
}
