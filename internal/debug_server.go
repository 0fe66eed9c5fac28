package internal

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"nerdsphere/repositories"

	"github.com/dgraph-io/badger/v4"
)

const inspectPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>nerdsphere inspect</title></head>
<body>
<form method="get" action="/inspect">
  <input name="prefix" value="{{.Prefix}}"> <button>Scan</button>
</form>
<p>{{range $k, $v := .Stats}}{{$k}}: {{$v}} &nbsp; {{end}}</p>
<table>
<tr><th>Key</th><th>Time</th><th>ID</th><th>Fingerprint</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Timestamp}}</td><td>{{.EntityID}}</td><td>{{.Fingerprint}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body></html>`

var inspectTemplate = template.Must(template.New("inspect").Parse(inspectPage))

type InspectRow struct {
	Key         string
	Timestamp   string
	EntityID    string
	Fingerprint string
	Detail      string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// DebugServer serves a read-only HTML view of the Badger keys.
// It runs as a supervised worker next to the chat API.
type DebugServer struct {
	log     *slog.Logger
	db      *badger.DB
	port    int
	mapper  RowMapper
	stats   StatsProvider
	maxRows int
}

func NewDebugServer(log *slog.Logger, db *badger.DB, port int, mapper RowMapper, stats StatsProvider) *DebugServer {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return &DebugServer{log: log, db: db, port: port, mapper: mapper, stats: stats, maxRows: 500}
}

func (s *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", s.inspect)
	return mux
}

func (s *DebugServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Debug inspector listening", "url", fmt.Sprintf("http://localhost:%d/inspect?prefix=%s", s.port, repositories.MessageKeyPrefix))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("debug server: %w", err)
	}
	return nil
}

func (s *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = repositories.MessageKeyPrefix
	}

	data := PageData{Prefix: prefix, Stats: make(map[string]any)}
	if s.stats != nil {
		data.Stats = s.stats()
	}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if len(data.Items) == s.maxRows {
				break
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				data.Items = append(data.Items, s.mapper(string(item.Key()), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Inspect scan failed", "prefix", prefix, "error", err)
		http.Error(w, "scan failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := inspectTemplate.Execute(w, data); err != nil {
		s.log.Warn("Inspect render failed", "error", err)
	}
}

// DefaultMapper decodes message records, anything else is shown by size.
func DefaultMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(val) == 0 {
		return row
	}
	message, err := repositories.DecodeRecord(val)
	if err != nil {
		return row
	}
	row.Timestamp = message.CreatedAt.Format(time.TimeOnly)
	row.EntityID = message.ID
	if len(row.EntityID) > 8 {
		row.EntityID = row.EntityID[:8]
	}
	row.Fingerprint = message.Fingerprint
	row.Detail = message.Content
	return row
}
