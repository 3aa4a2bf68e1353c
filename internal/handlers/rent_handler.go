package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/middleware"
	"dcspace-backend/internal/models"
	"dcspace-backend/internal/services"
	"dcspace-backend/internal/storage"
	"dcspace-backend/pkg/utils"

	"github.com/gorilla/mux"
)

const defaultMaxUploadBytes = 10 << 20

type RentHandler struct {
	Service        *services.RentService
	Receipts       *services.ReceiptService
	MaxUploadBytes int64
}

func NewRentHandler(s *services.RentService, receipts *services.ReceiptService, maxUploadMB int64) *RentHandler {
	maxBytes := int64(defaultMaxUploadBytes)
	if maxUploadMB > 0 {
		maxBytes = maxUploadMB << 20
	}
	return &RentHandler{Service: s, Receipts: receipts, MaxUploadBytes: maxBytes}
}

// Request handles POST /api/rents
func (h *RentHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.Service.Request(r.Context(), caller(r), req.SpaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, view)
}

// Pay handles POST /api/rents/{id}/invoices/{invoiceId}/pay (multipart, field "proof")
func (h *RentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	proof, err := h.readDocument(w, r, "proof")
	if err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.Service.Pay(r.Context(), caller(r), vars["id"], vars["invoiceId"], proof)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// Provision handles POST /api/rents/{id}/provision
func (h *RentHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req models.ProvisionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	approve := req.Approve == nil || *req.Approve

	view, err := h.Service.Provision(r.Context(), caller(r), mux.Vars(r)["id"], approve)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// Activate handles POST /api/rents/{id}/activate (multipart, field "contract")
func (h *RentHandler) Activate(w http.ResponseWriter, r *http.Request) {
	contract, err := h.readDocument(w, r, "contract")
	if err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.Service.Activate(r.Context(), caller(r), mux.Vars(r)["id"], contract)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// Verify handles POST /api/rents/{id}/invoices/{invoiceId}/verify
func (h *RentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == nil {
		utils.Error(w, http.StatusBadRequest, "action (true/false) is required")
		return
	}

	vars := mux.Vars(r)
	view, err := h.Service.Verify(r.Context(), caller(r), vars["id"], vars["invoiceId"], *req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// Get handles GET /api/rents/{id}
func (h *RentHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, view)
}

// ProofURL handles GET /api/rents/{id}/invoices/{invoiceId}/proof
func (h *RentHandler) ProofURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	url, err := h.Service.ResolveProof(r.Context(), caller(r), vars["id"], vars["invoiceId"])
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// ContractURL handles GET /api/rents/{id}/contract
func (h *RentHandler) ContractURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.Service.ResolveContract(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// InvoicePDF handles GET /api/rents/{id}/invoices/{invoiceId}/pdf
func (h *RentHandler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := h.Service.Get(r.Context(), caller(r), vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	pdf, err := h.Receipts.RenderInvoicePDF(view, vars["invoiceId"])
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", vars["invoiceId"]+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *RentHandler) readDocument(w http.ResponseWriter, r *http.Request, field string) (storage.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		return storage.Document{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return storage.Document{}, fmt.Errorf("file field %q is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to read %s: %w", field, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return storage.Document{Data: data, ContentType: contentType, Filename: header.Filename}, nil
}

// caller returns the authenticated caller, or nil when the route is
// unauthenticated; the service then answers Unauthorized.
func caller(r *http.Request) models.Caller {
	c, _ := middleware.CallerFromContext(r.Context())
	return c
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case apperror.KindInvalidArgument:
		return http.StatusBadRequest
	case apperror.KindInvalidState:
		return http.StatusUnprocessableEntity
	case apperror.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(apperror.KindOf(err))
	if status == http.StatusInternalServerError {
		log.Printf("[Rent] Internal error: %v", err)
		utils.Error(w, status, "Internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		log.Printf("[Rent] Dependency error: %v", err)
	}
	utils.Error(w, status, err.Error())
}
