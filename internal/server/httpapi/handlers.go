// Package httpapi serves the Kinvey REST surface: the appdata collections,
// user signup and login, the _blob file metadata and a Prometheus endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
	"github.com/dmitrijs2005/kinveysync/internal/query"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
	"github.com/dmitrijs2005/kinveysync/internal/server/services"
)

// maxBodySize bounds request bodies.
const maxBodySize = 16 << 20

type Handler struct {
	users   *services.UserService
	appdata *services.AppDataService
	metrics *Metrics
	logger  logging.Logger
}

func NewHandler(us *services.UserService, as *services.AppDataService, m *Metrics, l logging.Logger) *Handler {
	if l == nil {
		l = logging.Nop{}
	}
	if m == nil {
		m = NewMetrics()
	}
	return &Handler{users: us, appdata: as, metrics: m, logger: l.With("module", "http_server")}
}

func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func collectionOf(r *http.Request) string {
	if c := param(r, "collection"); c != "" {
		return c
	}
	return common.BlobCollection
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", common.ErrorValidation)
		}
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", query.ErrInvalidQuery, name)
	}
	return n, nil
}

// parseQuery reads the query, sort, skip and limit parameters.
func parseQuery(r *http.Request) (*query.Query, error) {
	skip, err := intParam(r, "skip")
	if err != nil {
		return nil, err
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		return nil, err
	}
	v := r.URL.Query()
	return query.Parse(v.Get("query"), v.Get("sort"), skip, limit)
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": common.APIVersion,
		"kinvey":  "hello " + param(r, "app"),
	})
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := h.appdata.Find(r.Context(), param(r, "app"), collectionOf(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.appdata.Count(r.Context(), param(r, "app"), collectionOf(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// Group answers POST /_group with the reduced buckets of the collection.
func (h *Handler) Group(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, ErrNameInvalidBody, err.Error())
		return
	}
	a, condition, err := query.DecodeAggregation(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	groups, err := h.appdata.Group(r.Context(), param(r, "app"), collectionOf(r), a, condition)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.appdata.Get(r.Context(), param(r, "app"), collectionOf(r), param(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, ErrNameInvalidBody, err.Error())
		return
	}
	created, err := h.appdata.Create(r.Context(), param(r, "app"), userIDFrom(r.Context()), collectionOf(r), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, ErrNameInvalidBody, err.Error())
		return
	}
	saved, err := h.appdata.Update(r.Context(), param(r, "app"), userIDFrom(r.Context()), collectionOf(r), param(r, "id"), doc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	n, err := h.appdata.Delete(r.Context(), param(r, "app"), collectionOf(r), param(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) DeleteByQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.appdata.DeleteByQuery(r.Context(), param(r, "app"), collectionOf(r), q.Unpaginated())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, ErrNameInvalidBody, err.Error())
		return
	}
	user, err := h.users.Signup(r.Context(), param(r, "app"), body.Username, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info(r.Context(), "Registered", "username", body.Username)
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, ErrNameInvalidBody, err.Error())
		return
	}
	user, err := h.users.Login(r.Context(), param(r, "app"), body.Username, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
