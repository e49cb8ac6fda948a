package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxSampleSize bounds one uploaded audio file.
const maxSampleSize = 32 << 20

var sampleExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
}

// SamplesHandler manages the audio files sample bindings refer to.
//
//	GET    /api/samples
//	POST   /api/samples        (multipart field "file")
//	DELETE /api/samples/{name}
type SamplesHandler struct {
	dir string
}

// NewSamplesHandler creates a SamplesHandler storing files in dir.
func NewSamplesHandler(dir string) *SamplesHandler {
	return &SamplesHandler{dir: dir}
}

type sampleFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type listSamplesResponse struct {
	Samples []sampleFile `json:"samples"`
}

// ServeHTTP implements http.Handler.
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/samples"), "/")

	switch {
	case name == "" && r.Method == http.MethodGet:
		h.list(w)
	case name == "" && r.Method == http.MethodPost:
		h.upload(w, r)
	case name != "" && r.Method == http.MethodDelete:
		h.delete(w, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SamplesHandler) list(w http.ResponseWriter) {
	entries, err := os.ReadDir(h.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	resp := listSamplesResponse{Samples: []sampleFile{}}
	for _, e := range entries {
		if e.IsDir() || !sampleExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		resp.Samples = append(resp.Samples, sampleFile{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(resp.Samples, func(i, j int) bool { return resp.Samples[i].Name < resp.Samples[j].Name })
	writeJSON(w, http.StatusOK, resp)
}

func (h *SamplesHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSampleSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !sampleExts[strings.ToLower(filepath.Ext(name))] {
		writeError(w, http.StatusBadRequest, "Unsupported audio format")
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store sample")
		return
	}
	out, err := os.Create(filepath.Join(h.dir, name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store sample")
		return
	}
	size, err := io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out.Name())
		writeError(w, http.StatusInternalServerError, "Failed to store sample")
		return
	}
	writeJSON(w, http.StatusCreated, sampleFile{Name: name, Size: size})
}

func (h *SamplesHandler) delete(w http.ResponseWriter, name string) {
	if name != filepath.Base(name) {
		writeError(w, http.StatusBadRequest, "Invalid name")
		return
	}
	if err := os.Remove(filepath.Join(h.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "Sample not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete sample")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
