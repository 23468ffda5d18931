package internal

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"comms-lab/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
)

const maxInspectRows = 500

var inspectTemplate = template.Must(template.New("inspect").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>comms-lab inspector</title></head>
<body>
<h1>{{.Prefix}}</h1>
<p>{{range .Prefixes}}<a href="?prefix={{.}}">{{.}}</a> {{end}}</p>
<ul>{{range $k, $v := .Stats}}<li>{{$k}}: {{$v}}</li>{{end}}</ul>
<table border="1" cellpadding="4">
<tr><th>Kind</th><th>Entity</th><th>At</th><th>Key</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Kind}}</td><td>{{.EntityID}}</td><td>{{.At}}</td><td>{{.Key}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body></html>`))

type InspectRow struct {
	Kind     string
	EntityID string
	At       string
	Key      string
	Detail   string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix   string
	Prefixes []string
	Items    []InspectRow
	Stats    map[string]any
}

// DebugServer exposes a read-only view of the badger records and the live runtime counters.
type DebugServer struct {
	log    *slog.Logger
	server *http.Server
}

func NewDebugServer(log *slog.Logger, db *badger.DB, port int, statsProvider StatsProvider) *DebugServer {
	mux := http.NewServeMux()
	mux.Handle("/inspect", InspectHandler(db, statsProvider))
	return &DebugServer{
		log: log,
		server: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background, errors other than a normal close are logged.
func (s *DebugServer) Start() {
	s.log.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s/inspect", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Debug server stopped", "error", err)
		}
	}()
}

func (s *DebugServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// InspectHandler renders the records under the ?prefix= query, threads by default.
func InspectHandler(db *badger.DB, statsProvider StatsProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = storage.Prefixes[0]
		}

		data := PageData{
			Prefix:   prefix,
			Prefixes: storage.Prefixes,
			Stats:    make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < maxInspectRows; it.Next() {
				item := it.Item()
				err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, toRow(storage.DescribeRecord(item.KeyCopy(nil), val)))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
}

func toRow(rec storage.Record) InspectRow {
	row := InspectRow{
		Kind:     rec.Kind,
		EntityID: rec.EntityID,
		At:       "--:--:--",
		Key:      rec.Key,
		Detail:   rec.Detail,
	}
	if !rec.At.IsZero() {
		row.At = rec.At.UTC().Format(time.DateTime)
	}
	return row
}
