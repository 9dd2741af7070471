package bill

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// maxUploadSize caps multipart uploads; high-resolution phone photos
// can run large.
const maxUploadSize = int64(50 << 20) // 50MB

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// corsJSONError writes a JSON error body with CORS headers set
func corsJSONError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListBills returns a list of all bills
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.service.ListBills()
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if bills == nil {
		bills = []*Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleCreateBill creates a bill
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string   `json:"title"`
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bill, err := s.service.CreateBill(req.Title, req.Participants)
	if err != nil {
		slog.Error("Error creating bill", "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	bill, err := s.service.GetBill(id)
	if err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleUpdateBill replaces a bill's participants and rounds
func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}

	var req struct {
		Title        string   `json:"title"`
		Participants []string `json:"participants"`
		Rounds       []Round  `json:"rounds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bill, err := s.service.UpdateBill(id, req.Title, req.Participants, req.Rounds)
	if err != nil {
		slog.Error("Error updating bill", "id", id, "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleDeleteBill deletes a bill
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteBill(id); err != nil {
		corsError(w, "Error deleting bill", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddRound appends an empty round to a bill
func (s *Server) handleAddRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if r.Body != nil {
		// Body is optional; the round name defaults server side.
		json.NewDecoder(r.Body).Decode(&req)
	}

	bill, err := s.service.AddRound(id, req.Name)
	if err != nil {
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// handleSettlement computes the settlement for a bill
func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Bill ID required", http.StatusBadRequest)
		return
	}
	settlement, err := s.service.Settlement(id)
	if err != nil {
		corsError(w, "Bill not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// roundIndex parses the {idx} path segment
func roundIndex(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// handleScanRound handles a receipt upload for a round
func (s *Server) handleScanRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	idx, ok := roundIndex(r)
	if id == "" || !ok {
		corsError(w, "Bill ID and round index required", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		corsJSONError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		corsJSONError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		corsJSONError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	bill, scan, err := s.service.ScanRound(id, idx, header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error scanning round", "bill", id, "round", idx, "error", err)
		corsJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"bill":            bill,
		"lines":           scan.Lines,
		"amount":          scan.Amount,
		"evidence":        scan.Evidence,
		"suggested_items": scan.Items,
	})
}

// handleRoundReceipt returns the stored receipt image for a round
func (s *Server) handleRoundReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	idx, ok := roundIndex(r)
	if id == "" || !ok {
		corsError(w, "Bill ID and round index required", http.StatusBadRequest)
		return
	}

	data, contentType, err := s.service.GetRoundReceipt(id, idx)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// contentTypeFor falls back to the filename extension when the form did
// not carry a content type.
func contentTypeFor(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
