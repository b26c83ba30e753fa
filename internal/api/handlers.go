package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/s1bursts/internal/backend"
	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/cmr"
	"github.com/robert-malhotra/s1bursts/internal/config"
	"github.com/robert-malhotra/s1bursts/internal/envi"
	"github.com/robert-malhotra/s1bursts/internal/fetch"
	"github.com/robert-malhotra/s1bursts/internal/resolver"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	intstac "github.com/robert-malhotra/s1bursts/internal/stac"
)

// Output formats of burst metadata.
const (
	FormatJSON = "json"
	FormatSTAC = "stac"
	FormatUMM  = "umm"
)

// Output formats of burst data.
const (
	DataFormatRaw    = "raw"
	DataFormatHeader = "hdr"
)

// Handlers contains all HTTP handlers for the burst API.
type Handlers struct {
	cfg      *config.Config
	locator  backend.Locator
	resolver *resolver.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(
	cfg *config.Config,
	locator backend.Locator,
	res *resolver.Resolver,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		locator:  locator,
		resolver: res,
		logger:   logger,
		now:      time.Now,
	}
}

// BurstRecord is the JSON form of a resolved burst.
type BurstRecord struct {
	*burst.Metadata
	PixelFormat string           `json:"pixel_format"`
	ByteRange   *burst.ByteRange `json:"byte_range,omitempty"`
}

// NewBurstRecord wraps b with its pixel format and byte range.
func NewBurstRecord(b *burst.Metadata) BurstRecord {
	rec := BurstRecord{Metadata: b, PixelFormat: b.Format.String()}
	if r, ok := b.Range(); ok {
		rec.ByteRange = &r
	}
	return rec
}

// BurstsResponse lists the bursts of one product.
type BurstsResponse struct {
	Granule *backend.Granule `json:"granule"`
	Bursts  []BurstRecord    `json:"bursts"`
	// Errors lists the bursts that could not be resolved.
	Errors []string `json:"errors,omitempty"`
}

// ProductsResponse lists located products.
type ProductsResponse struct {
	Products       []*backend.Granule `json:"products"`
	NumberReturned int                `json:"numberReturned"`
}

// Health returns the health status of the service.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": h.locator.Name(),
	})
}

// Products searches for SLC products.
// GET /products
func (h *Handlers) Products(w http.ResponseWriter, r *http.Request) {
	searchReq, err := intstac.ParseSearchRequest(r)
	if err != nil {
		WriteInvalidParameter(w, fmt.Sprintf("invalid search parameters: %v", err))
		return
	}
	params, err := searchReq.ToSearchParams()
	if err != nil {
		WriteInvalidParameter(w, fmt.Sprintf("invalid search parameters: %v", err))
		return
	}

	// Execute search
	granules, err := h.locator.Search(r.Context(), params)
	if err != nil {
		h.fail(w, r, "product search failed", err, http.StatusBadGateway)
		return
	}
	if granules == nil {
		granules = []*backend.Granule{}
	}

	WriteJSON(w, http.StatusOK, &ProductsResponse{
		Products:       granules,
		NumberReturned: len(granules),
	})
}

// Bursts lists the bursts of a product.
// GET /products/{granule}/bursts
func (h *Handlers) Bursts(w http.ResponseWriter, r *http.Request) {
	format, ok := h.metadataFormat(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	g, res, err := h.resolve(r.Context(), chi.URLParam(r, "granule"), filter)
	if err != nil {
		h.fail(w, r, "failed to resolve product", err, http.StatusBadGateway)
		return
	}

	h.render(w, r, format, g, res.Bursts, flatten(res.Err))
}

// Burst returns one burst of a product, in every requested polarization.
// GET /products/{granule}/bursts/{burstId}
func (h *Handlers) Burst(w http.ResponseWriter, r *http.Request) {
	format, ok := h.metadataFormat(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	burstID := strings.ToLower(chi.URLParam(r, "burstId"))
	if swath, ok := swathOfID(burstID); ok {
		filter.Swaths = []int{swath}
	}

	g, res, err := h.resolve(r.Context(), chi.URLParam(r, "granule"), filter)
	if err != nil {
		h.fail(w, r, "failed to resolve product", err, http.StatusBadGateway)
		return
	}

	var matched []*burst.Metadata
	for _, b := range res.Bursts {
		if b.ID == burstID {
			matched = append(matched, b)
		}
	}
	if len(matched) == 0 {
		WriteNotFound(w, fmt.Sprintf("burst %q not found in %s", burstID, g.Name))
		return
	}

	h.render(w, r, format, g, matched, nil)
}

// BurstData streams the samples of one burst as little-endian complex64, or
// its ENVI header.
// GET /products/{granule}/bursts/{burstId}/data?pol=VV
func (h *Handlers) BurstData(w http.ResponseWriter, r *http.Request) {
	pol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("pol")))
	if pol == "" {
		WriteInvalidParameter(w, "pol is required")
		return
	}
	if !validPolarization(pol) {
		WriteInvalidParameter(w, fmt.Sprintf("unsupported polarization %q", pol))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = DataFormatRaw
	}
	if format != DataFormatRaw && format != DataFormatHeader {
		WriteInvalidParameter(w, fmt.Sprintf("format must be %s or %s, got %q", DataFormatRaw, DataFormatHeader, format))
		return
	}

	burstID := strings.ToLower(chi.URLParam(r, "burstId"))
	filter := resolver.Filter{Polarizations: []string{pol}}
	if swath, ok := swathOfID(burstID); ok {
		filter.Swaths = []int{swath}
	}

	ctx := r.Context()
	g, res, err := h.resolve(ctx, chi.URLParam(r, "granule"), filter)
	if err != nil {
		h.fail(w, r, "failed to resolve product", err, http.StatusBadGateway)
		return
	}

	b, ok := res.Find(burstID, pol)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("burst %q %s not found in %s", burstID, pol, g.Name))
		return
	}

	if format == DataFormatHeader {
		hdr := envi.FormatHeader(&burst.Array{Lines: b.Shape.Lines, Samples: b.Shape.Samples}, fetch.Header(b))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(hdr))
		return
	}

	a, err := h.resolver.Read(ctx, b)
	if err != nil {
		h.fail(w, r, "failed to read burst", err, http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)*8))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.AbsoluteID+".slc"))
	w.Header().Set("X-Burst-Lines", strconv.Itoa(a.Lines))
	w.Header().Set("X-Burst-Samples", strconv.Itoa(a.Samples))
	w.WriteHeader(http.StatusOK)
	if err := envi.Encode(w, a); err != nil {
		h.logger.WarnContext(ctx, "failed to stream burst",
			slog.String("burst", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

// resolve locates a product and resolves its bursts. A requested
// polarization the product does not carry is an error.
func (h *Handlers) resolve(ctx context.Context, granule string, filter resolver.Filter) (*backend.Granule, *resolver.Result, error) {
	g, err := h.locator.Locate(ctx, granule)
	if err != nil {
		return nil, nil, err
	}

	res, err := h.resolver.Resolve(ctx, g.URL, filter)
	if err != nil {
		return nil, nil, err
	}

	annotated := res.Product.AnnotatedPolarizations()
	for _, pol := range filter.Polarizations {
		if !containsFold(annotated, pol) {
			return nil, nil, fmt.Errorf("%w: %s has no %s annotation", safe.ErrUnsupportedPolarization, g.Name, pol)
		}
	}
	return g, res, nil
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, format string, g *backend.Granule, bursts []*burst.Metadata, errs []string) {
	switch format {
	case FormatSTAC:
		items, err := intstac.Items(bursts, h.cfg.STAC.Version)
		if err != nil {
			h.fail(w, r, "failed to build STAC items", err, http.StatusInternalServerError)
			return
		}
		ic := intstac.NewItemCollection(items)
		ic.AddLink("self", h.cfg.STAC.BaseURL+r.URL.RequestURI(), intstac.MediaTypeGeoJSON)
		WriteGeoJSON(w, http.StatusOK, ic)

	case FormatUMM:
		granules := make([]*cmr.Granule, 0, len(bursts))
		for _, b := range bursts {
			ummg, err := cmr.BurstToGranule(b, g.URL, h.now())
			if err != nil {
				h.fail(w, r, "failed to build UMM-G granule", err, http.StatusInternalServerError)
				return
			}
			granules = append(granules, ummg)
		}
		WriteJSON(w, http.StatusOK, granules)

	default:
		records := make([]BurstRecord, len(bursts))
		for i, b := range bursts {
			records[i] = NewBurstRecord(b)
		}
		WriteJSON(w, http.StatusOK, &BurstsResponse{Granule: g, Bursts: records, Errors: errs})
	}
}

// fail logs err and writes the mapped error response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error, fallback int) {
	status, code := ErrorStatus(err, fallback)
	attrs := []any{
		slog.String("request_id", RequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("backend", h.locator.Name()),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, attrs...)
	} else {
		h.logger.DebugContext(r.Context(), msg, attrs...)
	}
	writeError(w, status, APIError{
		Code:        code,
		Description: fmt.Sprintf("%s: %v", msg, err),
		RequestID:   RequestID(r.Context()),
	})
}

func (h *Handlers) metadataFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch format := r.URL.Query().Get("format"); format {
	case "":
		return FormatJSON, true
	case FormatJSON, FormatSTAC, FormatUMM:
		return format, true
	default:
		WriteInvalidParameter(w, fmt.Sprintf("format must be one of %s, %s, %s, got %q", FormatJSON, FormatSTAC, FormatUMM, format))
		return "", false
	}
}

// parseFilter reads the pol and swath query parameters, e.g.
// ?pol=VV,VH&swath=IW1,2.
func parseFilter(w http.ResponseWriter, r *http.Request) (resolver.Filter, bool) {
	var filter resolver.Filter
	query := r.URL.Query()

	for _, pol := range splitParam(query.Get("pol")) {
		pol = strings.ToUpper(pol)
		if !validPolarization(pol) {
			WriteInvalidParameter(w, fmt.Sprintf("unsupported polarization %q", pol))
			return filter, false
		}
		filter.Polarizations = append(filter.Polarizations, pol)
	}

	for _, s := range splitParam(query.Get("swath")) {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(s), "IW"))
		if err != nil || n < 1 || n > 3 {
			WriteInvalidParameter(w, fmt.Sprintf("invalid swath %q", s))
			return filter, false
		}
		filter.Swaths = append(filter.Swaths, n)
	}
	return filter, true
}

func splitParam(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validPolarization(pol string) bool {
	switch pol {
	case "VV", "VH", "HH", "HV":
		return true
	}
	return false
}

// swathOfID returns the swath number of a burst ID like t174_372322_iw1.
func swathOfID(id string) (int, bool) {
	i := strings.LastIndex(id, "_iw")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+3:])
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// flatten splits a joined error into its messages.
func flatten(err error) []string {
	if err == nil {
		return nil
	}
	return strings.Split(err.Error(), "\n")
}
