package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/flatjson/pkg/codec"
	"github.com/ssargent/flatjson/pkg/logger"
	"github.com/ssargent/flatjson/pkg/schema"
	"github.com/ssargent/flatjson/pkg/storage"
)

const (
	contentTypeBinary = "application/octet-stream"
	contentTypeText   = "text/plain; charset=utf-8"
	messageTypeHeader = "X-Message-Type"
)

// Server holds the API server state. Schemas and codec calls are safe for
// concurrent use, so handlers share them without locking.
type Server struct {
	schema  *schema.Schema
	archive MessageArchive
	config  ServerConfig
	metrics *Metrics
	logger  *zap.Logger
}

// NewServer creates a new API server. archive may be nil, in which case the
// message routes answer 503.
func NewServer(s *schema.Schema, archive MessageArchive, config ServerConfig, metrics *Metrics, log *zap.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		schema:  s,
		archive: archive,
		config:  config,
		metrics: metrics,
		logger:  log,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	resp := TypesResponse{
		Objects: make([]TypeInfo, 0, len(s.schema.Objects)),
		Enums:   make([]string, 0, len(s.schema.Enums)),
	}
	if s.schema.Root != nil {
		resp.RootType = s.schema.Root.Name
	}
	for _, o := range s.schema.Objects {
		kind := "table"
		if o.IsStruct {
			kind = "struct"
		}
		resp.Objects = append(resp.Objects, TypeInfo{
			Name:   o.Name,
			Kind:   kind,
			Fields: o.NumberOfFields(),
			Root:   o == s.schema.Root,
		})
	}
	for _, e := range s.schema.Enums {
		resp.Enums = append(resp.Enums, e.Name)
	}
	sendSuccess(w, resp)
}

// table resolves the {type} URL parameter to a table, writing a 404 when
// there is none.
func (s *Server) table(w http.ResponseWriter, name string) (*schema.Object, bool) {
	obj, ok := s.schema.Object(name)
	if !ok || !obj.IsTable() {
		sendError(w, fmt.Sprintf("Unknown table %q", name), http.StatusNotFound)
		return nil, false
	}
	return obj, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// encode runs the encoder for obj and records metrics for it.
func (s *Server) encode(log *zap.Logger, obj *schema.Object, text string) ([]byte, error) {
	start := time.Now()
	buf, err := codec.Encode(text, obj, s.config.EncodeOptions)
	s.metrics.RecordCodecOperation("encode", obj.Name, err == nil, time.Since(start), len(buf))
	if err != nil {
		s.metrics.RecordCodecError("encode", errorKind(err))
		log.Debug("encode failed", zap.String("type", obj.Name), zap.Error(err))
	}
	return buf, err
}

func (s *Server) print(log *zap.Logger, obj *schema.Object, buf []byte, opts codec.PrintOptions) (string, error) {
	start := time.Now()
	text, err := codec.Print(buf, obj, opts)
	s.metrics.RecordCodecOperation("decode", obj.Name, err == nil, time.Since(start), len(text))
	if err != nil {
		s.metrics.RecordCodecError("decode", errorKind(err))
		log.Debug("decode failed", zap.String("type", obj.Name), zap.Error(err))
	}
	return text, err
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.table(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	buf, err := s.encode(logger.FromContext(r.Context()), obj, string(body))
	if err != nil {
		sendCodecError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeBinary)
	w.Header().Set(messageTypeHeader, obj.Name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.table(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	opts, err := printOptionsFromQuery(r, s.config.PrintOptions)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if len(body) == 0 {
		sendError(w, "Request body is empty", http.StatusBadRequest)
		return
	}

	s.writeText(w, r, obj, body, opts)
}

func (s *Server) writeText(w http.ResponseWriter, r *http.Request, obj *schema.Object, buf []byte, opts codec.PrintOptions) {
	text, err := s.print(logger.FromContext(r.Context()), obj, buf, opts)
	if err != nil {
		sendCodecError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeText)
	w.Header().Set(messageTypeHeader, obj.Name)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (s *Server) handlePutMessage(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		sendError(w, "Archive not configured", http.StatusServiceUnavailable)
		return
	}
	obj, ok := s.table(w, chi.URLParam(r, "ref"))
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	buf, err := s.encode(logger.FromContext(r.Context()), obj, string(body))
	if err != nil {
		sendCodecError(w, err)
		return
	}

	id, err := s.archive.Put(obj.Name, buf)
	if err != nil {
		logger.FromContext(r.Context()).Error("archive put failed", zap.String("type", obj.Name), zap.Error(err))
		sendError(w, "Failed to archive message", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordArchivedMessage(obj.Name)

	sendSuccess(w, MessageInfo{
		ID:       id.String(),
		Type:     obj.Name,
		Size:     len(buf),
		Archived: id.Time().UTC(),
	})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		sendError(w, "Archive not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := ksuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		sendError(w, "Invalid message id", http.StatusBadRequest)
		return
	}
	opts, err := printOptionsFromQuery(r, s.config.PrintOptions)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := s.archive.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			sendError(w, "Message not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("archive get failed", zap.Stringer("id", id), zap.Error(err))
		sendError(w, "Failed to read message", http.StatusInternalServerError)
		return
	}

	obj, ok := s.table(w, string(record.TypeName))
	if !ok {
		return
	}
	s.writeText(w, r, obj, record.Message, opts)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		sendError(w, "Archive not configured", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.archive.List(limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("archive list failed", zap.Error(err))
		sendError(w, "Failed to list messages", http.StatusInternalServerError)
		return
	}

	infos := make([]MessageInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, MessageInfo{
			ID:       e.ID.String(),
			Type:     string(e.Record.TypeName),
			Size:     len(e.Record.Message),
			Archived: e.ID.Time().UTC(),
		})
	}
	sendSuccess(w, infos)
}

// printOptionsFromQuery overrides defaults with the multi_line,
// max_vector_size and float_precision query parameters.
func printOptionsFromQuery(r *http.Request, defaults codec.PrintOptions) (codec.PrintOptions, error) {
	opts := defaults
	q := r.URL.Query()

	if v := q.Get("multi_line"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid multi_line: %q", v)
		}
		opts.MultiLine = b
	}
	if v := q.Get("max_vector_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid max_vector_size: %q", v)
		}
		opts.MaxVectorSize = n
	}
	if v := q.Get("float_precision"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid float_precision: %q", v)
		}
		opts.FloatPrecision = n
	}
	return opts, nil
}
