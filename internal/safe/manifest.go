package safe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// ManifestName is the manifest entry name inside a SAFE directory.
const ManifestName = "manifest.safe"

type manifestDoc struct {
	Metadata []struct {
		ID   string      `xml:"ID,attr"`
		Data manifestXML `xml:"metadataWrap>xmlData"`
	} `xml:"metadataSection>metadataObject"`
	Data []struct {
		ID         string `xml:"ID,attr"`
		RepID      string `xml:"repID,attr"`
		ByteStream struct {
			Size     string `xml:"size,attr"`
			Location struct {
				Href string `xml:"href,attr"`
			} `xml:"fileLocation"`
		} `xml:"byteStream"`
	} `xml:"dataObjectSection>dataObject"`
}

type manifestXML struct {
	OrbitReference *struct {
		OrbitNumber         []typedValue `xml:"orbitNumber"`
		RelativeOrbitNumber []typedValue `xml:"relativeOrbitNumber"`
		Pass                string       `xml:"extension>orbitProperties>pass"`
		AscendingNodeTime   string       `xml:"extension>orbitProperties>ascendingNodeTime"`
	} `xml:"orbitReference"`
	AcquisitionPeriod *struct {
		StartTime    string `xml:"startTime"`
		StopTime     string `xml:"stopTime"`
		StartTimeANX string `xml:"extension>timeANX>startTimeANX"`
	} `xml:"acquisitionPeriod"`
	Platform *struct {
		FamilyName string   `xml:"familyName"`
		Number     string   `xml:"number"`
		Mode       string   `xml:"instrument>extension>instrumentMode>mode"`
		Swaths     []string `xml:"instrument>extension>instrumentMode>swath"`
	} `xml:"platform"`
	ProductInformation *struct {
		Polarisations []string `xml:"transmitterReceiverPolarisation"`
		ProductType   string   `xml:"productType"`
	} `xml:"standAloneProductInformation"`
}

type typedValue struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// start returns the value tagged type="start", or the first value.
func start(values []typedValue) string {
	for _, v := range values {
		if v.Type == "start" {
			return v.Value
		}
	}
	if len(values) > 0 {
		return values[0].Value
	}
	return ""
}

// Product is one Sentinel-1 SAFE product. It is immutable after parse.
type Product struct {
	Location string // container URL or local path
	Name     string // SAFE name without extension

	Platform       string // S1A, S1B
	Mode           string // IW, EW
	ProductType    string
	AbsoluteOrbit  int
	RelativeOrbit  int // zero when the manifest omits it
	OrbitDirection string
	StartTime      time.Time
	StopTime       time.Time
	// StartTimeANX is the acquisition start measured from the ascending node, in milliseconds.
	StartTimeANX      float64
	AscendingNodeTime time.Time
	SwathNames        []string
	Polarizations     []string

	// IW2MidRange is the slant range to the middle of the IW2 swath, in meters.
	IW2MidRange float64

	Manifest []byte
	Files    []File

	sets   map[string]*FileSet
	swaths []*Swath
}

// File is a data object listed in the manifest.
type File struct {
	ID    string
	RepID string
	Path  string // relative to the SAFE directory, without the leading "./"
	Size  int64
}

// FileSet groups the files that describe one swath and polarization.
type FileSet struct {
	Stem         string // e.g. s1b-iw1-slc-vv-20210131t151556-...-004
	Swath        string // upper case, e.g. IW1
	Polarization string // upper case, e.g. VV
	Annotation   string
	Measurement  string
	Calibration  string
	Noise        string
}

// ParseManifest parses a SAFE manifest. location is the URL or path of the
// product container and is used to derive the SAFE name.
func ParseManifest(location string, manifest []byte) (*Product, error) {
	var doc manifestDoc
	if err := xml.NewDecoder(bytes.NewReader(manifest)).Decode(&doc); err != nil {
		return nil, malformed(ManifestName, "XFDU", err)
	}

	p := &Product{
		Location: location,
		Name:     SafeName(location),
		Manifest: manifest,
		sets:     make(map[string]*FileSet),
	}
	f := &fields{path: ManifestName}

	for _, obj := range doc.Metadata {
		data := obj.Data
		if ref := data.OrbitReference; ref != nil {
			p.AbsoluteOrbit = f.integer("orbitNumber", start(ref.OrbitNumber))
			if rel := start(ref.RelativeOrbitNumber); rel != "" {
				p.RelativeOrbit = f.integer("relativeOrbitNumber", rel)
			}
			p.OrbitDirection = capitalize(f.text("pass", ref.Pass))
			if ref.AscendingNodeTime != "" {
				p.AscendingNodeTime = f.timestamp("ascendingNodeTime", ref.AscendingNodeTime)
			}
		}
		if acq := data.AcquisitionPeriod; acq != nil {
			p.StartTime = f.timestamp("startTime", acq.StartTime)
			p.StopTime = f.timestamp("stopTime", acq.StopTime)
			if acq.StartTimeANX != "" {
				p.StartTimeANX = f.float("startTimeANX", acq.StartTimeANX)
			}
		}
		if plat := data.Platform; plat != nil {
			if strings.EqualFold(strings.TrimSpace(plat.FamilyName), "SENTINEL-1") && strings.TrimSpace(plat.Number) != "" {
				p.Platform = "S1" + strings.ToUpper(strings.TrimSpace(plat.Number))
			}
			p.Mode = strings.ToUpper(strings.TrimSpace(plat.Mode))
			for _, s := range plat.Swaths {
				p.SwathNames = append(p.SwathNames, strings.ToUpper(strings.TrimSpace(s)))
			}
		}
		if info := data.ProductInformation; info != nil {
			for _, pol := range info.Polarisations {
				p.Polarizations = append(p.Polarizations, strings.ToUpper(strings.TrimSpace(pol)))
			}
			p.ProductType = strings.TrimSpace(info.ProductType)
		}
	}

	if p.AbsoluteOrbit == 0 && f.err == nil {
		f.fail("orbitNumber", nil)
	}
	if p.StartTime.IsZero() && f.err == nil {
		f.fail("acquisitionPeriod", nil)
	}
	if p.Platform == "" && len(p.Name) >= 3 {
		p.Platform = strings.ToUpper(p.Name[:3])
	}

	for _, obj := range doc.Data {
		href := strings.TrimPrefix(obj.ByteStream.Location.Href, "./")
		if href == "" {
			continue
		}
		file := File{ID: obj.ID, RepID: obj.RepID, Path: href}
		if obj.ByteStream.Size != "" {
			file.Size = f.offset("size", obj.ByteStream.Size)
		}
		p.Files = append(p.Files, file)
		p.classify(href)
	}

	if f.err != nil {
		return nil, f.err
	}
	if len(p.sets) == 0 {
		return nil, malformed(ManifestName, "dataObjectSection", fmt.Errorf("no annotation or measurement files listed"))
	}
	return p, nil
}

// classify files a data object under the swath and polarization it belongs to.
func (p *Product) classify(href string) {
	dir, base := path.Split(href)
	dir = strings.TrimSuffix(dir, "/")
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)

	var stem string
	var assign func(*FileSet)
	switch {
	case dir == "annotation" && ext == ".xml" && strings.HasPrefix(name, "s1"):
		stem = name
		assign = func(s *FileSet) { s.Annotation = href }
	case dir == "measurement" && (ext == ".tiff" || ext == ".tif"):
		stem = name
		assign = func(s *FileSet) { s.Measurement = href }
	case dir == "annotation/calibration" && strings.HasPrefix(name, "calibration-"):
		stem = strings.TrimPrefix(name, "calibration-")
		assign = func(s *FileSet) { s.Calibration = href }
	case dir == "annotation/calibration" && strings.HasPrefix(name, "noise-"):
		stem = strings.TrimPrefix(name, "noise-")
		assign = func(s *FileSet) { s.Noise = href }
	default:
		return
	}

	swath, pol, ok := parseStem(stem)
	if !ok {
		return
	}
	set, exists := p.sets[stem]
	if !exists {
		set = &FileSet{Stem: stem, Swath: swath, Polarization: pol}
		p.sets[stem] = set
	}
	assign(set)
}

// parseStem extracts swath and polarization from a file stem such as
// s1b-iw1-slc-vv-20210131t151556-20210131t151621-025400-03067b-004.
func parseStem(stem string) (swath, pol string, ok bool) {
	parts := strings.Split(stem, "-")
	if len(parts) < 4 {
		return "", "", false
	}
	return strings.ToUpper(parts[1]), strings.ToUpper(parts[3]), true
}

// FileSets returns the per swath and polarization file groups, sorted by stem.
func (p *Product) FileSets() []FileSet {
	out := make([]FileSet, 0, len(p.sets))
	for _, s := range p.sets {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stem < out[j].Stem })
	return out
}

// AnnotationPaths returns the SAFE-relative paths of all product annotations.
func (p *Product) AnnotationPaths() []string {
	var paths []string
	for _, s := range p.FileSets() {
		if s.Annotation != "" {
			paths = append(paths, s.Annotation)
		}
	}
	return paths
}

// fileSet returns the group that owns the given annotation path.
func (p *Product) fileSet(annotationPath string) (*FileSet, bool) {
	stem := strings.TrimSuffix(path.Base(annotationPath), path.Ext(annotationPath))
	s, ok := p.sets[stem]
	return s, ok
}

// SafeName derives the SAFE product name from a container URL or path.
func SafeName(location string) string {
	name := path.Base(strings.TrimRight(strings.ReplaceAll(location, "\\", "/"), "/"))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".zip")
	name = strings.TrimSuffix(name, ".SAFE")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
