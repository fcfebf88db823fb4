package dashboard

import (
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// Server serves the live intersection map: one page, any number of
// websocket clients, each fed by its own Hub subscription.
type Server struct {
	addr string
	hub  *Hub
}

// NewServer returns a dashboard server publishing hub's snapshots.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{addr: addr, hub: hub}
}

// Serve blocks, serving the dashboard until the process exits or
// ListenAndServe errors.
func (s *Server) Serve() error {
	router := mux.NewRouter()
	router.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWebsocket).Methods(http.MethodGet)

	if err := http.ListenAndServe(s.addr, router); err != nil {
		return fmt.Errorf("dashboard serve: %w", err)
	}
	return nil
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := indexTemplate.Execute(w, nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates := s.hub.Subscribe()
	cli, err := newClient(updates, w, r)
	if err != nil {
		log.Printf("dashboard: upgrade failed: %v", err)
		return
	}
	if err := cli.sync(); err != nil {
		log.Printf("dashboard: client disconnected: %v", err)
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html>
<head>
	<title>intersection dashboard</title>
	<link rel="icon" href="data:,">
	<style>
		body { font-family: sans-serif; background: #111; color: #eee; }
		canvas { background: #222; display: block; margin: 1em auto; }
	</style>
</head>
<body>
	<canvas id="map" width="800" height="800"></canvas>
	<script>
		const canvas = document.getElementById("map");
		const ctx = canvas.getContext("2d");
		const scale = 10; // px per metre, centred on canvas middle

		function toPx(x, y) {
			return [canvas.width / 2 + x * scale, canvas.height / 2 - y * scale];
		}

		function draw(snapshot) {
			ctx.clearRect(0, 0, canvas.width, canvas.height);

			for (const isec of (snapshot.intersections || [])) {
				const [cx, cy] = toPx(isec.centre.X - isec.size.X / 2, isec.centre.Y + isec.size.Y / 2);
				ctx.strokeStyle = "#555";
				ctx.strokeRect(cx, cy, isec.size.X * scale, isec.size.Y * scale);

				const cellW = (isec.size.X * scale) / isec.granularity;
				const cellH = (isec.size.Y * scale) / isec.granularity;
				ctx.fillStyle = "rgba(200,80,80,0.5)";
				for (const tile of (isec.tiles || [])) {
					ctx.fillRect(cx + tile.i * cellW, cy + tile.j * cellH, cellW, cellH);
				}
			}

			ctx.fillStyle = "#6cf";
			for (const v of (snapshot.vehicles || [])) {
				const [x, y] = toPx(v.x, v.y);
				ctx.beginPath();
				ctx.arc(x, y, 4, 0, 2 * Math.PI);
				ctx.fill();
			}

			document.title = "intersection dashboard — t=" + snapshot.time.toFixed(1);
		}

		const ws = new WebSocket("ws://" + window.location.host + "/ws");
		ws.onmessage = (event) => draw(JSON.parse(event.data));
		ws.onerror = (event) => console.log("dashboard socket error:", event);
	</script>
</body>
</html>
`))
