package web

import "net/http"

// handlePreview reports what an upload would extract without storing it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	res, err := s.service.Preview(r.Context(), header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
