package repository

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/stretchr/testify/require"
)

const fakeDBName = "stickyboard"

// couchFake serves the slice of the CouchDB HTTP API the repositories use:
// _all_docs, HEAD/GET/PUT of single documents.
type couchFake struct {
	mu        sync.Mutex
	docs      map[string]map[string]interface{}
	revs      map[string]int
	conflicts map[string]int
	puts      int
	queries   []url.Values
	down      bool
}

func newCouchFake(t *testing.T) (*couchFake, *kivik.Client) {
	t.Helper()
	f := &couchFake{
		docs:      make(map[string]map[string]interface{}),
		revs:      make(map[string]int),
		conflicts: make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := kivik.New("couch", srv.URL)
	require.NoError(t, err)
	return f, client
}

// seed stores doc as if it had been written over HTTP, so numbers come
// back as float64 like every other stored document.
func (f *couchFake) seed(docID string, doc map[string]interface{}) {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var stored map[string]interface{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.revs[docID]++
	stored["_id"] = docID
	stored["_rev"] = f.rev(docID)
	f.docs[docID] = stored
}

func (f *couchFake) doc(docID string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[docID]
}

func (f *couchFake) conflictNext(docID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts[docID] = n
}

func (f *couchFake) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *couchFake) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *couchFake) rev(docID string) string {
	if f.revs[docID] == 0 {
		return ""
	}
	return fmt.Sprintf("%d-fake", f.revs[docID])
}

func (f *couchFake) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		writeCouchJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "unavailable", "reason": "maintenance"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/"+fakeDBName+"/")
	if path == r.URL.Path {
		writeCouchJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "no such database"})
		return
	}
	if path == "_all_docs" {
		f.allDocs(w, r)
		return
	}

	doc, ok := f.docs[path]
	switch r.Method {
	case http.MethodHead, http.MethodGet:
		if !ok {
			writeCouchJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "missing"})
			return
		}
		w.Header().Set("ETag", `"`+f.rev(path)+`"`)
		writeCouchJSON(w, http.StatusOK, doc)
	case http.MethodPut:
		f.put(w, r, path)
	default:
		writeCouchJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	}
}

func (f *couchFake) put(w http.ResponseWriter, r *http.Request, docID string) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeCouchJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	given, _ := body["_rev"].(string)
	if f.conflicts[docID] > 0 || given != f.rev(docID) {
		if f.conflicts[docID] > 0 {
			f.conflicts[docID]--
		}
		writeCouchJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "reason": "Document update conflict."})
		return
	}

	f.revs[docID]++
	body["_id"] = docID
	body["_rev"] = f.rev(docID)
	f.docs[docID] = body
	f.puts++
	writeCouchJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": docID, "rev": body["_rev"]})
}

func (f *couchFake) allDocs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.queries = append(f.queries, q)
	start, end := couchKey(q.Get("startkey")), couchKey(q.Get("endkey"))

	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		if id >= start && (end == "" || id <= end) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		row := map[string]interface{}{
			"id":    id,
			"key":   id,
			"value": map[string]string{"rev": f.rev(id)},
		}
		if q.Get("include_docs") == "true" {
			row["doc"] = f.docs[id]
		}
		rows = append(rows, row)
	}
	writeCouchJSON(w, http.StatusOK, map[string]interface{}{
		"total_rows": len(f.docs),
		"offset":     0,
		"rows":       rows,
	})
}

func couchKey(raw string) string {
	var key string
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return raw
	}
	return key
}

func writeCouchJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
