// Package apitest provides an in-memory drive backend speaking the REST
// contract over httptest, for tests of the client and its callers.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Token is the bearer token the server accepts by default.
const Token = "test-token"

// Server is a fake drive backend. Objects live in a map keyed by object
// key; folders are explicit markers (keys ending in "/") or implied by
// deeper keys.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	objects  map[string][]byte
	requests []string
	batches  [][]string

	// Username and Password accepted by /auth/login.
	Username string
	Password string
	// AcceptToken is the token required on authenticated routes.
	AcceptToken string
	// IssueToken is returned by /auth/login, defaults to AcceptToken.
	IssueToken string

	// FailList makes listing these prefixes fail with a 500 JSON envelope.
	FailList map[string]bool
	// FailListRaw makes listing these prefixes fail with a non-JSON 502.
	FailListRaw map[string]bool
	// FailFolder makes creating these folder paths fail.
	FailFolder map[string]bool
	// FailUpload makes uploads of these keys fail.
	FailUpload map[string]bool
	// FailThumb makes processed downloads of these keys fail.
	FailThumb map[string]bool
	// OnUpload is called after each successful upload with its key.
	OnUpload func(key string)
	// ListDelay slows every listing.
	ListDelay time.Duration
}

// NewServer starts a fake backend. The API root is URL() + "/api/v1".
func NewServer() *Server {
	s := &Server{
		objects:     make(map[string][]byte),
		Username:    "alice",
		Password:    "secret",
		AcceptToken: Token,
		FailList:    map[string]bool{},
		FailListRaw: map[string]bool{},
		FailFolder:  map[string]bool{},
		FailUpload:  map[string]bool{},
		FailThumb:   map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURL returns the API root for client configuration.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

// Put stores an object. Keys ending in "/" create folder markers.
func (s *Server) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// Has reports whether key is stored.
func (s *Server) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Get returns the stored bytes of key.
func (s *Server) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Keys returns all stored keys, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Requests returns "METHOD /path" for every request received, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Batches returns the item lists of every batch delete, in order.
func (s *Server) Batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.batches))
	copy(out, s.batches)
	return out
}

// CountRequests returns how many requests matched method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, method+" "+pathPrefix) {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v1")

	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+path)
	s.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && path == "/auth/login":
		s.login(w, r)
		return
	case r.Method == http.MethodPost && path == "/auth/register":
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true, "message": "registered",
			"user": map[string]interface{}{"user_id": "bkp-2", "username": "new"},
		})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+s.AcceptToken {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid or missing token"})
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "/files":
		s.list(w, r)
	case r.Method == http.MethodPost && path == "/folders":
		s.createFolder(w, r)
	case r.Method == http.MethodPost && path == "/upload":
		s.upload(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/files/"):
		s.deleteOne(w, strings.TrimPrefix(path, "/files/"))
	case r.Method == http.MethodPost && path == "/batch/delete":
		s.batchDelete(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/download/"):
		s.download(w, r, strings.TrimPrefix(path, "/download/"))
	case r.Method == http.MethodGet && path == "/auth/profile":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"user":    map[string]interface{}{"user_id": "bkp-1", "username": s.Username},
		})
	case r.Method == http.MethodPost && path == "/auth/logout":
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "logged out"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "bad request"})
		return
	}
	if creds.Username != s.Username || creds.Password != s.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "invalid username or password"})
		return
	}
	token := s.IssueToken
	if token == "" {
		token = s.AcceptToken
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "login successful",
		"token":   token,
		"user":    map[string]interface{}{"id": 1, "user_id": "bkp-1", "username": s.Username},
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if s.ListDelay > 0 {
		time.Sleep(s.ListDelay)
	}

	s.mu.Lock()
	failJSON, failRaw := s.FailList[prefix], s.FailListRaw[prefix]
	s.mu.Unlock()
	if failRaw {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
		return
	}
	if failJSON {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "listing failed"})
		return
	}

	s.mu.Lock()
	folderSet := map[string]bool{}
	var files []map[string]interface{}
	for key, data := range s.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			folderSet[rest[:i]] = true
			continue
		}
		files = append(files, map[string]interface{}{
			"key":          key,
			"name":         rest,
			"size":         len(data),
			"lastModified": "2024-05-01T10:00:00Z",
		})
	}
	s.mu.Unlock()

	folders := make([]string, 0, len(folderSet))
	for f := range folderSet {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	sort.Slice(files, func(i, j int) bool { return files[i]["key"].(string) < files[j]["key"].(string) })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"folders": folders,
		"files":   files,
		"total":   len(folders) + len(files),
	})
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FolderPath string `json:"folderPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "folderPath required"})
		return
	}
	key := strings.TrimSuffix(req.FolderPath, "/") + "/"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFolder[key] {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "folder create failed"})
		return
	}
	s.objects[key] = nil
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "folder created"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "file required"})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	key := header.Filename
	if folder := r.FormValue("folder"); folder != "" && folder != "/" {
		key = strings.TrimSuffix(folder, "/") + "/" + header.Filename
	}

	s.mu.Lock()
	if s.FailUpload[key] {
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "storage unavailable"})
		return
	}
	s.objects[key] = data
	hook := s.OnUpload
	s.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "uploaded", "key": key})
}

func (s *Server) deleteOne(w http.ResponseWriter, escaped string) {
	key, err := url.PathUnescape(escaped)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "bad key"})
		return
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "deleted"})
}

func (s *Server) batchDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "bad request"})
		return
	}

	s.mu.Lock()
	s.batches = append(s.batches, req.Items)
	for _, k := range req.Items {
		delete(s.objects, k)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   fmt.Sprintf("deleted %d items", len(req.Items)),
		"processed": len(req.Items),
		"failed":    0,
	})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, escaped string) {
	key, err := url.PathUnescape(escaped)
	if err != nil {
		http.Error(w, "bad key", http.StatusBadRequest)
		return
	}
	process := r.URL.Query().Get("x-tos-process")

	s.mu.Lock()
	data, ok := s.objects[key]
	failThumb := s.FailThumb[key]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "object not found"})
		return
	}
	if process != "" {
		if failThumb {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "processing failed"})
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		io.WriteString(w, "processed:"+process+":"+key)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
