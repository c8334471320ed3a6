package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chassis-cli/internal/model"
	"github.com/sells-group/chassis-cli/internal/pipeline"
	"github.com/sells-group/chassis-cli/internal/resolve"
	"github.com/sells-group/chassis-cli/internal/session"
	"github.com/sells-group/chassis-cli/internal/store"
	"github.com/sells-group/chassis-cli/internal/table"
)

const maxUploadBytes = 64 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mapper over HTTP",
	Long:  "Starts an HTTP server where each client session uploads its own reference table once and then maps reports against it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st := openStore(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		ttl := time.Duration(cfg.Server.SessionTTLMins) * time.Minute
		srv := &mapServer{
			sessions: session.NewManager(ttl),
			store:    st,
		}

		// Idle sessions hold full reference tables in memory.
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if n := srv.sessions.Sweep(); n > 0 {
						zap.L().Info("swept idle sessions", zap.Int("removed", n))
					}
				}
			}
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type mapServer struct {
	sessions *session.Manager
	store    store.Store
}

func (s *mapServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/reference", s.handleUploadReference)
		r.Post("/map", s.handleMap)
		r.Delete("/", s.handleDeleteSession)
	})
	return r
}

func (s *mapServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *mapServer) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

// handleUploadReference stores the session's reference table. Re-uploading
// replaces the previous table.
func (s *mapServer) handleUploadReference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	name, tab, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sessions.SetReference(id, name, tab)

	writeJSON(w, http.StatusOK, map[string]any{
		"reference": name,
		"columns":   tab.Columns,
		"rows":      tab.NumRows(),
	})
}

// handleMap joins an uploaded report against the session's reference table
// and streams back the mapped workbook.
func (s *mapServer) handleMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, refName, ok := s.sessions.Reference(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if ref == nil {
		writeError(w, http.StatusConflict, "session has no reference table; upload one first")
		return
	}

	name, reportTab, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy, err := resolvePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := pipeline.Run(pipeline.Request{
		Report:    reportTab,
		Reference: ref,
		Overrides: pipeline.Overrides{
			Style: r.URL.Query().Get("style_col"),
			Dept:  r.URL.Query().Get("dept_col"),
			Value: r.URL.Query().Get("value_col"),
		},
		Threshold: cfg.Resolve.Threshold,
		Norm:      cfg.Normalize,
		Policy:    policy,
	})
	if err != nil {
		var nre *resolve.NotResolvedError
		var rcm *pipeline.ReferenceColumnsMissingError
		if errors.As(err, &nre) || errors.As(err, &rcm) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("map request failed", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "mapping failed")
		return
	}

	if s.store != nil {
		if err := s.store.RecordRun(r.Context(), &model.Run{
			Kind:      model.RunKindServe,
			Report:    name,
			Reference: refName,
			StyleCol:  res.Resolved.ReportStyle,
			DeptCol:   res.Resolved.ReportDept,
			ValueCol:  res.Resolved.ReferenceValue,
			Policy:    string(policy),
			Total:     res.Join.Total,
			Matched:   res.Join.Matched,
			Unmatched: res.Join.Unmatched,
		}); err != nil {
			zap.L().Warn("record run", zap.Error(err))
		}
	}

	w.Header().Set("X-Total-Rows", strconv.Itoa(res.Join.Total))
	w.Header().Set("X-Matched-Rows", strconv.Itoa(res.Join.Matched))

	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+csvOutName(name)+`"`)
		if err := table.WriteCSV(w, res.Join.Table, table.CSVOptions{Delimiter: cfg.CSV.DelimiterRune()}); err != nil {
			zap.L().Error("encode csv", zap.Error(err))
		}
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+defaultOutPath(name)+`"`)
		if err := table.EncodeXLSX(w, table.Sheet{Name: mappedSheetName, Table: res.Join.Table}); err != nil {
			zap.L().Error("encode workbook", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+strconv.Quote(format))
	}
}

func csvOutName(report string) string {
	out := defaultOutPath(report)
	return out[:len(out)-len(".xlsx")] + ".csv"
}

func (s *mapServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// readUpload parses the multipart "file" part into a table, dispatching on
// the uploaded filename's extension the same way the CLI does.
func readUpload(r *http.Request) (string, *table.Table, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, eris.Wrap(err, "parse multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, eris.Wrap(err, `read form file "file"`)
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", nil, eris.Wrap(err, "read upload")
	}

	tab, err := parseUpload(name, data)
	if err != nil {
		return "", nil, err
	}
	return name, tab, nil
}

func parseUpload(name string, data []byte) (*table.Table, error) {
	if isWorkbook(name) {
		wb, err := table.OpenWorkbookBytes(data, name)
		if err != nil {
			return nil, err
		}
		return wb.Table(table.SheetOptions{})
	}
	return table.ReadCSV(bytes.NewReader(data), name, table.CSVOptions{
		Delimiter: cfg.CSV.DelimiterRune(),
		Charset:   cfg.CSV.Charset,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
