// Package preview serves a processed mip set to a browser viewer over a
// websocket. Each mip travels as one binary frame: a fixed 20-byte header
// (level, width, height, depth, payload length, little-endian uint32)
// followed by the raw RGBA8 payload.
package preview

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/pipeline"
	"github.com/texforge/texforge/web"
)

const (
	webSocketReadBufferSize  = 8192
	webSocketWriteBufferSize = 8192 * 2
)

// HeaderSize is the byte length of the per-mip frame header.
const HeaderSize = 20

// Server hands out the mips of one committed input over /preview.
type Server struct {
	in  *pipeline.Input
	log *logging.Logger
}

// NewServer wraps a populated input sink.
func NewServer(in *pipeline.Input, log *logging.Logger) *Server {
	return &Server{in: in, log: log}
}

// Handler returns the mux serving the viewer page and its socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if assets, err := web.ViewerFS(); err == nil {
		mux.Handle("/", http.FileServer(http.FS(assets)))
	}
	mux.HandleFunc("/preview", s.serve)
	return mux
}

// ListenAndServe blocks serving the viewer on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("preview: listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isAllowedOrigin(r.Header.Get("Origin"))
		},
	}
	protocol := r.Header.Get("Sec-Websocket-Protocol")

	wsConn, err := upgrader.Upgrade(w, r, http.Header{
		"Sec-Websocket-Protocol": {protocol},
	})
	if err != nil {
		s.log.Error("preview: upgrade websocket: %v", err)

		return
	}

	defer func() {
		if err = wsConn.Close(); err != nil {
			s.log.Error("preview: closing websocket: %v", err)
		}
	}()

	mips := s.in.Mips()

	from := 0
	if q := r.URL.Query().Get("level"); q != "" {
		from, err = strconv.Atoi(q)
		if err != nil || from < 0 || from >= len(mips) {
			s.log.Error("preview: bad level %q", q)

			return
		}
	}

	for _, m := range mips[from:] {
		if err = wsConn.WriteMessage(websocket.BinaryMessage, frame(m)); err != nil {
			if err == websocket.ErrCloseSent {
				return
			}

			s.log.Error("preview: sending mip %d: %v", m.Level, err)

			return
		}
	}

	s.log.Debug("preview: streamed %d mips", len(mips)-from)

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err = wsConn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
		s.log.Error("preview: close: %v", err)
	}
}

// frame packs one mip into a wire frame.
func frame(m pipeline.Mip) []byte {
	buf := make([]byte, HeaderSize+len(m.Data))
	binary.LittleEndian.PutUint32(buf[0:], uint32(m.Level))
	binary.LittleEndian.PutUint32(buf[4:], uint32(m.Width))
	binary.LittleEndian.PutUint32(buf[8:], uint32(m.Height))
	binary.LittleEndian.PutUint32(buf[12:], uint32(m.Depth))
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(m.Data)))
	copy(buf[HeaderSize:], m.Data)
	return buf
}

// DecodeFrame splits a wire frame back into a mip. The viewer side of the
// protocol, kept here so both ends share one definition.
func DecodeFrame(buf []byte) (pipeline.Mip, error) {
	if len(buf) < HeaderSize {
		return pipeline.Mip{}, fmt.Errorf("preview: short frame: %d bytes", len(buf))
	}

	size := binary.LittleEndian.Uint32(buf[16:])
	if int(size) != len(buf)-HeaderSize {
		return pipeline.Mip{}, fmt.Errorf("preview: payload length %d does not match frame", size)
	}

	return pipeline.Mip{
		Level:  int(binary.LittleEndian.Uint32(buf[0:])),
		Width:  int(binary.LittleEndian.Uint32(buf[4:])),
		Height: int(binary.LittleEndian.Uint32(buf[8:])),
		Depth:  int(binary.LittleEndian.Uint32(buf[12:])),
		Data:   buf[HeaderSize:],
	}, nil
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	normalized := strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://")
	normalized = strings.TrimSuffix(normalized, "/")

	allowed := os.Getenv("TEXFORGE_ALLOWED_ORIGINS")
	if allowed == "" {
		return strings.HasPrefix(normalized, "localhost") || strings.HasPrefix(normalized, "127.0.0.1")
	}

	if strings.HasPrefix(normalized, "localhost") || strings.HasPrefix(normalized, "127.0.0.1") {
		return true
	}

	for _, entry := range strings.Split(allowed, ",") {
		candidate := strings.TrimSpace(entry)
		if candidate == "" {
			continue
		}

		if candidate == origin || candidate == normalized {
			return true
		}

		if strings.TrimPrefix(candidate, "http://") == normalized || strings.TrimPrefix(candidate, "https://") == normalized {
			return true
		}
	}

	return false
}
