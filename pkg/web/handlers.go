package web

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/divvun/pahkat-reposrv/pkg/index"
	"github.com/divvun/pahkat-reposrv/pkg/model"
)

const tomlContentType = "application/toml; charset=utf-8"

type mutationResponse struct {
	RepoID    string    `json:"repo_id"`
	PackageID string    `json:"package_id"`
	Success   bool      `json:"success"`
	Error     *apiError `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type statusResponse struct {
	IndexRef map[string]string `json:"index_ref"`
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleStatus reports the published head ref per configured repo.
func (s *Server) HandleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{IndexRef: s.engine.Registry().HeadRefs()})
	}
}

// HandleCreatePackage creates package metadata.
func (s *Server) HandleCreatePackage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		packageID := chi.URLParam(r, "packageID")

		var req index.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
			return
		}

		if _, err := s.engine.Create(r.Context(), repoID, packageID, req); err != nil {
			writeEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, mutationResponse{
			RepoID:    repoID,
			PackageID: packageID,
			Success:   true,
			Timestamp: time.Now().UTC(),
		})
	}
}

// HandleUpdatePackage applies a partial update to package metadata.
func (s *Server) HandleUpdatePackage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		packageID := chi.URLParam(r, "packageID")

		var patch model.PackagePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
			return
		}

		if _, err := s.engine.Update(r.Context(), repoID, packageID, patch); err != nil {
			writeEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, mutationResponse{
			RepoID:    repoID,
			PackageID: packageID,
			Success:   true,
			Timestamp: time.Now().UTC(),
		})
	}
}

// HandlePackageDescriptor serves one package descriptor as TOML, from
// the published snapshot.
func (s *Server) HandlePackageDescriptor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		packageID := chi.URLParam(r, "packageID")

		d, err := s.engine.Get(repoID, packageID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		data, err := model.MarshalDescriptor(d)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		w.Header().Set("Content-Type", tomlContentType)
		_, _ = w.Write(data)
	}
}

// HandleRepoIndex serves the repo-level index.toml from the working tree.
func (s *Server) HandleRepoIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		repo, err := s.engine.Registry().Resolve(repoID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		s.serveTOMLFile(w, filepath.Join(repo.Dir(), model.RepoIndexFilePath()))
	}
}

// HandleStrings serves the localized strings file for a language tag.
// The path segment must end in ".toml"; an empty tag resolves to "en".
func (s *Server) HandleStrings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		repo, err := s.engine.Registry().Resolve(repoID)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		lang, ok := strings.CutSuffix(chi.URLParam(r, "lang"), ".toml")
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "strings file not found")
			return
		}
		if lang == "" {
			lang = "en"
		}
		s.serveTOMLFile(w, filepath.Join(repo.Dir(), model.StringsFilePath(lang)))
	}
}

func (s *Server) serveTOMLFile(w http.ResponseWriter, path string) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.Header().Set("Content-Type", tomlContentType)
	_, _ = w.Write(data)
}

// HandleDownload redirects to the artifact URL of the target matching
// the platform (required) and channel (default stable) query parameters.
func (s *Server) HandleDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "repoID")
		packageID := chi.URLParam(r, "packageID")

		platform := r.URL.Query().Get("platform")
		if platform == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "missing query parameter for `platform`")
			return
		}
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			channel = model.DefaultChannel
		}

		d, err := s.engine.Get(repoID, packageID)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		for _, release := range d.Releases {
			if release.EffectiveChannel() != channel {
				continue
			}
			for _, target := range release.Targets {
				if target.Platform == platform && target.URL != "" {
					http.Redirect(w, r, target.URL, http.StatusTemporaryRedirect)
					return
				}
			}
		}
		writeError(w, http.StatusNotFound, "not_found", "no matching target")
	}
}
