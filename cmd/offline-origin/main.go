// Demo origin application for the offline-cache gateway.
// Serves the kind of endpoints the engine classifies: documents, scripts,
// images, an API, plus the plumbing endpoints (sitemap, SSE, byte-range
// media, downloads) that the engine treats as ordinary requests.
package main

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var portFlag int

func init() {
	flag.IntVar(&portFlag, "port", 9090, "Port to listen on")
}

type sitemapUrl struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	Urls    []sitemapUrl `xml:"url"`
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	r := chi.NewRouter()

	r.Get("/", servePage("home"))
	r.Get("/offline.html", servePage("you are offline"))
	r.Get("/manifest.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/manifest+json")
		json.NewEncoder(w).Encode(map[string]string{"name": "offline-cache demo"})
	})

	r.Get("/api/time", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"now": time.Now().Format(time.RFC3339)})
	})

	r.Get("/sitemap.xml", func(w http.ResponseWriter, req *http.Request) {
		sm := sitemap{
			Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
			Urls: []sitemapUrl{
				{Loc: "http://" + req.Host + "/"},
				{Loc: "http://" + req.Host + "/offline.html"},
			},
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(xml.Header))
		if err := xml.NewEncoder(w).Encode(sm); err != nil {
			log.Error().Err(err).Msg("Could not write sitemap")
		}
	})

	// SSE endpoint. Emission is paced by a ticker, never by sleeping in a
	// loop, and the client disconnecting stops it and releases the ticker.
	r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-req.Context().Done():
				log.Debug().Msg("Event stream client disconnected")
				return
			case t := <-ticker.C:
				fmt.Fprintf(w, "id: %d\ndata: %s\n\n", i, t.Format(time.RFC3339))
				flusher.Flush()
			}
		}
	})

	// byte-range media; ServeContent handles Range headers
	media := bytes.Repeat([]byte("offline-cache media sample "), 1<<12)
	modTime := time.Now()
	r.Get("/media/sample.bin", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeContent(w, req, "sample.bin", modTime, bytes.NewReader(media))
	})

	r.Get("/download/report.csv", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)
		fmt.Fprintln(w, "day,requests\nmonday,42")
	})

	log.Info().Msgf("Origin listening on port %d", portFlag)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), r); err != nil {
		panic(err)
	}
}

func servePage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!doctype html><title>offline-cache demo</title><p>%s</p>", body)
	}
}
