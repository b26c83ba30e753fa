package testutil

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Manifest renders the SAFE manifest.
func (s Scene) Manifest() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<xfdu:XFDU xmlns:xfdu="urn:ccsds:schema:xfdu:1" xmlns:safe="http://www.esa.int/safe/sentinel-1.0" xmlns:s1="http://www.esa.int/safe/sentinel-1.0/sentinel-1" xmlns:s1sarl1="http://www.esa.int/safe/sentinel-1.0/sentinel-1/sar/level-1">
  <metadataSection>
`)
	stop := s.Start.Add(s.span())
	fmt.Fprintf(&b, `    <metadataObject ID="acquisitionPeriod" classification="DESCRIPTION" category="DMD">
      <metadataWrap mimeType="text/xml" vocabularyName="SAFE" textInfo="Acquisition Period">
        <xmlData>
          <safe:acquisitionPeriod>
            <safe:startTime>%s</safe:startTime>
            <safe:stopTime>%s</safe:stopTime>
            <safe:extension>
              <s1:timeANX>
                <s1:startTimeANX>%.6e</s1:startTimeANX>
                <s1:stopTimeANX>%.6e</s1:stopTimeANX>
              </s1:timeANX>
            </safe:extension>
          </safe:acquisitionPeriod>
        </xmlData>
      </metadataWrap>
    </metadataObject>
`, ts(s.Start), ts(stop), s.FirstBurstANX*1000, (s.FirstBurstANX+s.span().Seconds())*1000)

	fmt.Fprintf(&b, `    <metadataObject ID="platform" classification="DESCRIPTION" category="DMD">
      <metadataWrap mimeType="text/xml" vocabularyName="SAFE" textInfo="Platform Description">
        <xmlData>
          <safe:platform>
            <safe:nssdcIdentifier>%s</safe:nssdcIdentifier>
            <safe:familyName>SENTINEL-1</safe:familyName>
            <safe:number>%s</safe:number>
            <safe:instrument>
              <safe:familyName abbreviation="SAR">Synthetic Aperture Radar</safe:familyName>
              <safe:extension>
                <s1sarl1:instrumentMode>
                  <s1sarl1:mode>IW</s1sarl1:mode>
`, nssdc(s.Platform), s.Platform[2:])
	for n := 1; n <= s.Swaths; n++ {
		fmt.Fprintf(&b, "                  <s1sarl1:swath>IW%d</s1sarl1:swath>\n", n)
	}
	b.WriteString(`                </s1sarl1:instrumentMode>
              </safe:extension>
            </safe:instrument>
          </safe:platform>
        </xmlData>
      </metadataWrap>
    </metadataObject>
`)

	fmt.Fprintf(&b, `    <metadataObject ID="measurementOrbitReference" classification="DESCRIPTION" category="DMD">
      <metadataWrap mimeType="text/xml" vocabularyName="SAFE" textInfo="Orbit Reference">
        <xmlData>
          <safe:orbitReference>
            <safe:orbitNumber type="start">%d</safe:orbitNumber>
            <safe:orbitNumber type="stop">%d</safe:orbitNumber>
            <safe:relativeOrbitNumber type="start">%d</safe:relativeOrbitNumber>
            <safe:relativeOrbitNumber type="stop">%d</safe:relativeOrbitNumber>
            <safe:cycleNumber>150</safe:cycleNumber>
            <safe:phaseIdentifier>1</safe:phaseIdentifier>
            <safe:extension>
              <s1:orbitProperties>
                <s1:pass>%s</s1:pass>
                <s1:ascendingNodeTime>%s</s1:ascendingNodeTime>
              </s1:orbitProperties>
            </safe:extension>
          </safe:orbitReference>
        </xmlData>
      </metadataWrap>
    </metadataObject>
`, s.AbsoluteOrbit, s.AbsoluteOrbit, s.RelativeOrbit, s.RelativeOrbit, s.Pass, ts(s.AscendingNodeTime()))

	b.WriteString(`    <metadataObject ID="generalProductInformation" classification="DESCRIPTION" category="DMD">
      <metadataWrap mimeType="text/xml" vocabularyName="SAFE" textInfo="General Product Information">
        <xmlData>
          <s1sarl1:standAloneProductInformation>
            <s1sarl1:productClass>S</s1sarl1:productClass>
            <s1sarl1:productType>SLC</s1sarl1:productType>
`)
	for _, p := range s.Polarizations {
		fmt.Fprintf(&b, "            <s1sarl1:transmitterReceiverPolarisation>%s</s1sarl1:transmitterReceiverPolarisation>\n", p)
	}
	b.WriteString(`          </s1sarl1:standAloneProductInformation>
        </xmlData>
      </metadataWrap>
    </metadataObject>
  </metadataSection>
  <dataObjectSection>
`)
	for _, f := range s.files() {
		fmt.Fprintf(&b, `    <dataObject ID="%s" repID="%s">
      <byteStream mimeType="%s" size="%d">
        <fileLocation locatorType="URL" href="./%s"/>
        <checksum checksumName="MD5">00000000000000000000000000000000</checksum>
      </byteStream>
    </dataObject>
`, f.id, f.rep, f.mime, f.size, f.path)
	}
	b.WriteString("  </dataObjectSection>\n</xfdu:XFDU>\n")
	return []byte(b.String())
}

type manifestFile struct {
	id, rep, mime, path string
	size                int64
}

func (s Scene) files() []manifestFile {
	var out []manifestFile
	for _, pol := range s.Polarizations {
		for n := 1; n <= s.Swaths; n++ {
			stem := s.Stem(n, pol)
			id := strings.ReplaceAll(stem, "-", "")
			out = append(out,
				manifestFile{"product" + id, "s1Level1ProductSchema", "text/xml", "annotation/" + stem + ".xml", 1},
				manifestFile{"calibration" + id, "s1Level1CalibrationSchema", "text/xml", "annotation/calibration/calibration-" + stem + ".xml", 1},
				manifestFile{"measurement" + id, "s1Level1MeasurementSchema", "application/octet-stream", "measurement/" + stem + ".tiff", int64(s.Height() * s.Samples * s.BytesPerPixel())},
			)
			if !s.OmitNoise {
				out = append(out, manifestFile{"noise" + id, "s1Level1NoiseSchema", "text/xml", "annotation/calibration/noise-" + stem + ".xml", 1})
			}
		}
	}
	out = append(out, manifestFile{"quicklook", "s1Level1QuicklookSchema", "image/png", "preview/quick-look.png", 1})
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Annotations renders every product annotation keyed by SAFE-relative path.
func (s Scene) Annotations() map[string][]byte {
	out := make(map[string][]byte)
	for _, pol := range s.Polarizations {
		for n := 1; n <= s.Swaths; n++ {
			out[s.AnnotationPath(n, pol)] = s.Annotation(n, pol)
		}
	}
	return out
}

// Annotation renders the product annotation of one swath and polarization.
func (s Scene) Annotation(swath int, pol string) []byte {
	var b strings.Builder
	srt := s.slantRangeTime(swath)
	lastLine := s.Start.Add(seconds(s.gridRowTime(s.Bursts)))

	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<product>
  <adsHeader>
    <missionId>%s</missionId>
    <productType>SLC</productType>
    <polarisation>%s</polarisation>
    <mode>IW</mode>
    <swath>IW%d</swath>
    <startTime>%s</startTime>
    <stopTime>%s</stopTime>
    <absoluteOrbitNumber>%d</absoluteOrbitNumber>
    <missionDataTakeId>198267</missionDataTakeId>
    <imageNumber>00%d</imageNumber>
  </adsHeader>
  <generalAnnotation>
    <productInformation>
      <pass>%s</pass>
      <timelinessCategory>Fast-24h</timelinessCategory>
      <platformHeading>-1.6e+01</platformHeading>
      <projection>Slant Range</projection>
      <rangeSamplingRate>%.15e</rangeSamplingRate>
      <radarFrequency>%.15e</radarFrequency>
      <azimuthSteeringRate>1.590368784000000e+00</azimuthSteeringRate>
    </productInformation>
    <downlinkInformationList count="1">
      <downlinkInformation>
        <swath>IW%d</swath>
        <prf>1.717128973878037e+03</prf>
        <downlinkValues>
          <txPulseRampRate>1.078230321255294e+12</txPulseRampRate>
          <rank>9</rank>
        </downlinkValues>
      </downlinkInformation>
    </downlinkInformationList>
`, s.Platform, strings.ToUpper(pol), swath, ts(s.Start), ts(lastLine), s.AbsoluteOrbit, swath,
		titleCase(s.Pass), s.RangeSamplingRate, s.RadarFrequency, swath)

	s.writeOrbit(&b)

	polys := s.Bursts + 1
	fmt.Fprintf(&b, "    <azimuthFmRateList count=\"%d\">\n", polys)
	for k := 0; k < polys; k++ {
		fmt.Fprintf(&b, `      <azimuthFmRate>
        <azimuthTime>%s</azimuthTime>
        <t0>%.15e</t0>
        <azimuthFmRatePolynomial count="3">%s</azimuthFmRatePolynomial>
      </azimuthFmRate>
`, ts(s.Start.Add(seconds(float64(k)*s.BurstInterval))), srt, FMRateCoefficients(k))
	}
	b.WriteString("    </azimuthFmRateList>\n  </generalAnnotation>\n")

	fmt.Fprintf(&b, `  <imageAnnotation>
    <imageInformation>
      <productFirstLineUtcTime>%s</productFirstLineUtcTime>
      <productLastLineUtcTime>%s</productLastLineUtcTime>
      <ascendingNodeTime>%s</ascendingNodeTime>
      <productComposition>Assembled</productComposition>
      <slantRangeTime>%.15e</slantRangeTime>
      <pixelValue>Complex</pixelValue>
      <outputPixels>%s</outputPixels>
      <rangePixelSpacing>2.329562e+00</rangePixelSpacing>
      <azimuthPixelSpacing>1.393968e+01</azimuthPixelSpacing>
      <azimuthTimeInterval>%.15e</azimuthTimeInterval>
      <azimuthFrequency>4.864863102995529e+02</azimuthFrequency>
      <numberOfSamples>%d</numberOfSamples>
      <numberOfLines>%d</numberOfLines>
    </imageInformation>
    <processingInformation>
      <swathProcParamsList count="1">
        <swathProcParams>
          <swath>IW%d</swath>
          <rangeProcessing>
            <numberOfLooks>1</numberOfLooks>
            <lookBandwidth>5.650000000000000e+07</lookBandwidth>
            <processingBandwidth>5.650000000000000e+07</processingBandwidth>
            <windowType>Hamming</windowType>
            <windowCoefficient>7.500000e-01</windowCoefficient>
          </rangeProcessing>
        </swathProcParams>
      </swathProcParamsList>
    </processingInformation>
  </imageAnnotation>
`, ts(s.Start), ts(lastLine), ts(s.AscendingNodeTime()), srt, s.outputPixels(), s.AzimuthTimeInterval,
		s.Samples, s.Height(), swath)

	fmt.Fprintf(&b, "  <dopplerCentroid>\n    <dcEstimateList count=\"%d\">\n", polys)
	for k := 0; k < polys; k++ {
		fmt.Fprintf(&b, `      <dcEstimate>
        <azimuthTime>%s</azimuthTime>
        <t0>%.15e</t0>
        <geometryDcPolynomial count="3">0 0 0</geometryDcPolynomial>
        <dataDcPolynomial count="3">%s</dataDcPolynomial>
      </dcEstimate>
`, ts(s.Start.Add(seconds(float64(k)*s.BurstInterval-1))), srt, DopplerCoefficients(k))
	}
	b.WriteString("    </dcEstimateList>\n  </dopplerCentroid>\n")

	fmt.Fprintf(&b, `  <swathTiming>
    <linesPerBurst>%d</linesPerBurst>
    <samplesPerBurst>%d</samplesPerBurst>
    <burstList count="%d">
`, s.Lines, s.Samples, s.Bursts)
	fvs, lvs := s.validSamples()
	for k := 0; k < s.Bursts; k++ {
		fmt.Fprintf(&b, `      <burst>
        <azimuthTime>%s</azimuthTime>
        <azimuthAnxTime>%s</azimuthAnxTime>
        <sensingTime>%s</sensingTime>
        <byteOffset>%d</byteOffset>
        <firstValidSample count="%d">%s</firstValidSample>
        <lastValidSample count="%d">%s</lastValidSample>
      </burst>
`, ts(s.BurstTime(k)), s.BurstANX(k), ts(s.BurstTime(k).Add(-2*time.Millisecond)), s.RowOffset(k*s.Lines),
			s.Lines, fvs, s.Lines, lvs)
	}
	b.WriteString("    </burstList>\n  </swathTiming>\n")

	pixels := s.gridPixels()
	fmt.Fprintf(&b, "  <geolocationGrid>\n    <geolocationGridPointList count=\"%d\">\n", (s.Bursts+1)*len(pixels))
	for k := 0; k <= s.Bursts; k++ {
		t := s.gridRowTime(k)
		for _, px := range pixels {
			lon, lat := s.Location(swath, t, float64(px))
			fmt.Fprintf(&b, `      <geolocationGridPoint>
        <azimuthTime>%s</azimuthTime>
        <slantRangeTime>%.15e</slantRangeTime>
        <line>%d</line>
        <pixel>%d</pixel>
        <latitude>%.15e</latitude>
        <longitude>%.15e</longitude>
        <height>0.0</height>
        <incidenceAngle>3.1e+01</incidenceAngle>
        <elevationAngle>2.7e+01</elevationAngle>
      </geolocationGridPoint>
`, ts(s.Start.Add(seconds(t))), srt+float64(px)/s.RangeSamplingRate, k*s.Lines, px, lat, lon)
		}
	}
	b.WriteString("    </geolocationGridPointList>\n  </geolocationGrid>\n</product>\n")
	return []byte(b.String())
}

func (s Scene) writeOrbit(b *strings.Builder) {
	from := s.Start.Add(-30 * time.Second)
	to := s.Start.Add(s.span() + 30*time.Second)
	if s.OrbitBursts > 0 {
		to = s.Start.Add(seconds(s.gridRowTime(s.OrbitBursts - 1)))
	}

	var vectors []time.Time
	for t := from; !t.After(to); t = t.Add(10 * time.Second) {
		vectors = append(vectors, t)
	}

	fmt.Fprintf(b, "    <orbitList count=\"%d\">\n", len(vectors))
	for i, t := range vectors {
		dt := float64(i) * 10
		fmt.Fprintf(b, `      <orbit>
        <time>%s</time>
        <frame>Earth Fixed</frame>
        <position><x>%.9e</x><y>%.9e</y><z>%.9e</z></position>
        <velocity><x>%.9e</x><y>%.9e</y><z>%.9e</z></velocity>
      </orbit>
`, ts(t), -1.0e5+10*dt, -7.06e6+dt, -2.0e5+7.5e3*dt, 10.0, 1.0, 7.5e3)
	}
	b.WriteString("    </orbitList>\n")
}

// FMRateCoefficients returns the azimuth FM rate polynomial text of entry k.
func FMRateCoefficients(k int) string {
	return fmt.Sprintf("%d 4.5e+05 -7.9e+07", -2300+k)
}

// DopplerCoefficients returns the data Doppler polynomial text of entry k.
func DopplerCoefficients(k int) string {
	return fmt.Sprintf("%d -5.0e+01 1.0e-01", 10+k)
}

func (s Scene) slantRangeTime(swath int) float64 {
	return s.SlantRangeTime + float64(swath-1)*6.0e-4
}

func (s Scene) outputPixels() string {
	if s.TIFF.Float32 {
		return "32 bit Float"
	}
	return "16 bit Signed Integer"
}

func (s Scene) validSamples() (string, string) {
	first := s.LeadingInvalidLines
	last := s.Lines - 1 - s.TrailingInvalidLines
	fvs := make([]string, s.Lines)
	lvs := make([]string, s.Lines)
	for line := 0; line < s.Lines; line++ {
		switch {
		case line < first || line > last:
			fvs[line], lvs[line] = "-1", "-1"
		case line == first:
			fvs[line], lvs[line] = fmt.Sprint(s.FirstValidSample[0]), fmt.Sprint(s.LastValidSample[0])
		case line == last:
			fvs[line], lvs[line] = fmt.Sprint(s.FirstValidSample[1]), fmt.Sprint(s.LastValidSample[1])
		default:
			fvs[line] = fmt.Sprint(min(s.FirstValidSample[0], s.FirstValidSample[1]))
			lvs[line] = fmt.Sprint(max(s.LastValidSample[0], s.LastValidSample[1]))
		}
	}
	return strings.Join(fvs, " "), strings.Join(lvs, " ")
}

// CalibrationDoc renders a minimal calibration or noise annotation.
func (s Scene) CalibrationDoc(kind string, swath int, pol string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<%s>
  <adsHeader>
    <missionId>%s</missionId>
    <polarisation>%s</polarisation>
    <swath>IW%d</swath>
  </adsHeader>
</%s>
`, kind, s.Platform, strings.ToUpper(pol), swath, kind))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func nssdc(platform string) string {
	if platform == "S1A" {
		return "2014-016A"
	}
	return "2016-025A"
}
