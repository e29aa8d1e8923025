package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
)

const defaultMaxBody = 64 << 20

// Server holds the API server state
type Server struct {
	codec   NIFCodec
	config  ServerConfig
	metrics *Metrics
	log     *zap.Logger
}

// NewServer creates a new API server
func NewServer(c NIFCodec, config ServerConfig, metrics *Metrics, log *zap.Logger) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBody
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		codec:   c,
		config:  config,
		metrics: metrics,
		log:     log,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleVersions lists the version table.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	entries := s.codec.Registry().Table().Entries()
	out := make([]VersionInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, VersionInfo{
			Version:     e.Version.String(),
			Name:        e.Name,
			Explicit:    e.Explicit,
			Unsupported: e.Unsupported,
			Types:       len(e.Types()),
		})
	}
	sendSuccess(w, out)
}

// handleInspect decodes the request body and returns its summary.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	g, err := s.codec.Decode(data)
	if err != nil {
		s.log.Debug("inspect failed", zap.Error(err))
		sendCodecError(w, err)
		return
	}
	sendSuccess(w, g.Summarize())
}

// handleConvert re-encodes the request body. Query parameters: version
// (dotted, defaults to the source version), user and bs (only with
// version), and prune=true to drop records unreachable from the roots.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var target *nif.FormatVersion
	if vs := q.Get("version"); vs != "" {
		v, err := nif.ParseVersion(vs)
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		for name, dst := range map[string]*uint32{"user": &v.User, "bs": &v.BSVersion} {
			if raw := q.Get(name); raw != "" {
				n, err := strconv.ParseUint(raw, 10, 32)
				if err != nil {
					sendError(w, "invalid "+name+" version: "+raw, http.StatusBadRequest)
					return
				}
				*dst = uint32(n)
			}
		}
		target = &v
	} else if q.Has("user") || q.Has("bs") {
		sendError(w, "user and bs require version", http.StatusBadRequest)
		return
	}
	var transform graph.Transform
	if prune, _ := strconv.ParseBool(q.Get("prune")); prune {
		transform = graph.PruneUnreachable
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	conv, err := s.codec.Convert(data, target, transform)
	if err != nil {
		s.log.Debug("convert failed", zap.Error(err))
		sendCodecError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-NIF-From", conv.From.Describe())
	w.Header().Set("X-NIF-To", conv.To.Describe())
	w.Header().Set("Content-Length", strconv.Itoa(len(conv.Output)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(conv.Output)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			sendError(w, "file too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		sendError(w, "request body is empty", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}
