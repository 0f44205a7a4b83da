package server

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxContentBytes caps how large a file the content endpoint serves.
const maxContentBytes = 1 << 20

type pathRequest struct {
	Path string `json:"path"`
}

type fileEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

// handleFilesList lists a directory: dotfiles skipped, directories
// first, case-insensitive name order.
func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "Path not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		writeError(w, http.StatusBadRequest, "Path is not a directory")
		return
	}

	entries, err := os.ReadDir(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		entryType := "file"
		if entry.IsDir() {
			entryType = "directory"
		}
		items = append(items, fileEntry{
			Name: entry.Name(),
			Type: entryType,
			Path: filepath.Join(req.Path, entry.Name()),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		di, dj := items[i].Type == "directory", items[j].Type == "directory"
		if di != dj {
			return di
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	writeJSON(w, http.StatusOK, items)
}

// handleFilesContent returns a file's text. Oversized and non-regular
// files are rejected; invalid UTF-8 bytes are replaced.
func (s *Server) handleFilesContent(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.Mode().IsRegular() {
		writeError(w, http.StatusBadRequest, "Path is not a file")
		return
	}
	if info.Size() > maxContentBytes {
		writeError(w, http.StatusBadRequest, "File too large to view")
		return
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"content": strings.ToValidUTF8(string(data), "�"),
	})
}
