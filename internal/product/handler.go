package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"techwire-be/internal/db"
	"techwire-be/internal/logger"
	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxCreateBody = MaxImages*MaxImageBytes + 1<<20
	maxCSVBytes   = 20 << 20
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router, g transport.Guards) {
	super := []transport.Middleware{transport.OrPass(g.Admin), transport.OrPass(g.Super)}

	r.Route("/api/products", func(r chi.Router) {
		r.With(super...).Post("/add-product", h.create)
		r.With(super...).Post("/upload", h.importCSV)
		r.With(super...).Put("/{id}", h.update)
		r.With(super...).Delete("/{id}", h.delete)

		r.Get("/all-products", h.list)
		r.Get("/search", h.search)
		r.Get("/by-category/{categoryName}", h.byCategory)
		r.Get("/{id}", h.get)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var (
		in     CreateInput
		images []Image
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err = transport.DecodeJSON(r, &in)
	} else {
		in, images, err = parseCreateForm(w, r)
	}
	if err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.Create(r.Context(), in, images)
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusCreated, map[string]any{
		"message": "Product added successfully",
		"product": p,
	})
}

// parseCreateForm reads a multipart product. JSON-valued fields arrive as
// strings next to the image parts.
func parseCreateForm(w http.ResponseWriter, r *http.Request) (CreateInput, []Image, error) {
	var in CreateInput

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	if err := r.ParseMultipartForm(maxCreateBody); err != nil {
		return in, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	in.ID = r.FormValue("id")
	in.Title = r.FormValue("title")
	in.Category = r.FormValue("category")
	in.Description = utils.NilIfEmpty(r.FormValue("description"))
	in.SubCategory = utils.NilIfEmpty(r.FormValue("subCategory"))
	in.ChargeTax = r.FormValue("chargeTax") == "true"

	if v := r.FormValue("price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return in, nil, errors.New("price must be a number")
		}
		in.Price = price
	}
	if v := r.FormValue("taxRate"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return in, nil, errors.New("taxRate must be a number")
		}
		in.TaxRate = decimal.NewNullDecimal(rate)
	}

	for field, dst := range map[string]any{
		"variants":     &in.Variants,
		"dimensions":   &in.Dimensions,
		"weight":       &in.Weight,
		"otherDetails": &in.OtherDetails,
	} {
		if v := r.FormValue(field); v != "" {
			if err := json.Unmarshal([]byte(v), dst); err != nil {
				return in, nil, errors.New("Invalid JSON format for variants or other details.")
			}
		}
	}

	images, err := readImages(r.MultipartForm.File["images"])
	return in, images, err
}

func readImages(files []*multipart.FileHeader) ([]Image, error) {
	if len(files) > MaxImages {
		return nil, fmt.Errorf("at most %d images are allowed", MaxImages)
	}
	images := make([]Image, 0, len(files))
	for _, fh := range files {
		if fh.Size > MaxImageBytes {
			return nil, fmt.Errorf("%s exceeds 5 MB", fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, Image{
			Filename:    fh.Filename,
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
		})
	}
	return images, nil
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		transport.Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	mode, err := ParseImportMode(r.FormValue("importMode"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.service.ImportCSV(r.Context(), file, mode)
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, map[string]any{
		"message": "CSV processed successfully.",
		"result":  res,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in UpdateInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		transport.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Product with ID %s updated successfully.", id),
		"product": p,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Product with ID %s deleted successfully.", id),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	transport.Respond(w, http.StatusOK, p)
}

func pagination(r *http.Request) (int, int) {
	q := r.URL.Query()
	return utils.ParsePagination(q.Get("page"), q.Get("limit"))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	h.respondPage(w, r)(h.service.List(r.Context(), page, limit))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	h.respondPage(w, r)(h.service.Search(r.Context(), r.URL.Query().Get("query"), page, limit))
}

func (h *Handler) byCategory(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	h.respondPage(w, r)(h.service.ByCategory(r.Context(), chi.URLParam(r, "categoryName"), page, limit))
}

func (h *Handler) respondPage(w http.ResponseWriter, r *http.Request) func(*Page, error) {
	return func(p *Page, err error) {
		if err != nil {
			respondError(w, r, err)
			return
		}
		transport.Respond(w, http.StatusOK, p)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		transport.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.Is(err, ErrInvalidImage):
		transport.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalidImage.Error()+": "))
	case errors.Is(err, ErrProductExists):
		transport.Error(w, http.StatusConflict, "Product with this ID already exists.")
	case errors.Is(err, ErrProductNotFound):
		transport.Error(w, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found.", chi.URLParam(r, "id")))
	case errors.Is(err, db.ErrTimeout), errors.Is(err, db.ErrSerialization):
		transport.Retryable(w, "Catalog is busy. Please retry.")
	default:
		logger.FromCtx(r.Context()).Error("product request failed", zap.Error(err))
		transport.Error(w, http.StatusInternalServerError, "Failed to process product request.")
	}
}
