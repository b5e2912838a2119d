package preview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/pipeline"
)

func testInput(t *testing.T) *pipeline.Input {
	t.Helper()

	in := pipeline.NewInput()
	in.SetTextureLayout(pipeline.Texture2D, 2, 2)
	require.NoError(t, in.SetMipmapData([]byte{
		10, 20, 30, 255, 40, 50, 60, 255,
		70, 80, 90, 255, 100, 110, 120, 255,
	}, 2, 2, 1, 0, 0))
	require.NoError(t, in.SetMipmapData([]byte{55, 65, 75, 255}, 1, 1, 1, 0, 1))
	return in
}

func dialPreview(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/preview" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": {"http://localhost"},
	})
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestServer_StreamsMips(t *testing.T) {
	in := testInput(t)
	srv := httptest.NewServer(NewServer(in, logging.Default()).Handler())
	defer srv.Close()

	conn := dialPreview(t, srv, "")
	defer conn.Close()

	for i, want := range in.Mips() {
		typ, buf, err := conn.ReadMessage()
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, websocket.BinaryMessage, typ)

		m, err := DecodeFrame(buf)
		require.NoError(t, err)
		assert.Equal(t, want.Level, m.Level)
		assert.Equal(t, want.Width, m.Width)
		assert.Equal(t, want.Height, m.Height)
		assert.Equal(t, want.Depth, m.Depth)
		assert.Equal(t, want.Data, m.Data)
	}

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServer_LevelQuery(t *testing.T) {
	in := testInput(t)
	srv := httptest.NewServer(NewServer(in, logging.Default()).Handler())
	defer srv.Close()

	conn := dialPreview(t, srv, "?level=1")
	defer conn.Close()

	_, buf, err := conn.ReadMessage()
	require.NoError(t, err)

	m, err := DecodeFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Level)
	assert.Equal(t, 1, m.Width)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServer_RejectsUnknownOrigin(t *testing.T) {
	srv := httptest.NewServer(NewServer(testInput(t), logging.Default()).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/preview"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{
		"Origin": {"http://evil.example.com"},
	})
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_RejectsBadLevel(t *testing.T) {
	srv := httptest.NewServer(NewServer(testInput(t), logging.Default()).Handler())
	defer srv.Close()

	conn := dialPreview(t, srv, "?level=7")
	defer conn.Close()

	// The handler drops the connection without streaming anything.
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.False(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServer_ServesViewerPage(t *testing.T) {
	srv := httptest.NewServer(NewServer(testInput(t), logging.Default()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestDecodeFrame_Errors(t *testing.T) {
	_, err := DecodeFrame(make([]byte, HeaderSize-1))
	assert.ErrorContains(t, err, "short frame")

	buf := frame(pipeline.Mip{Data: []byte{1, 2, 3, 4}, Width: 1, Height: 1, Depth: 1})
	_, err = DecodeFrame(buf[:len(buf)-1])
	assert.ErrorContains(t, err, "does not match")
}

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed string
		want    bool
	}{
		{name: "empty", origin: "", want: false},
		{name: "localhost", origin: "http://localhost:8080", want: true},
		{name: "loopback", origin: "http://127.0.0.1:3000", want: true},
		{name: "unknown", origin: "http://example.com", want: false},
		{name: "listed", origin: "http://viewer.example.com", allowed: "viewer.example.com", want: true},
		{name: "listed with scheme", origin: "https://viewer.example.com", allowed: "https://viewer.example.com", want: true},
		{name: "not listed", origin: "http://other.example.com", allowed: "viewer.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEXFORGE_ALLOWED_ORIGINS", tt.allowed)
			assert.Equal(t, tt.want, isAllowedOrigin(tt.origin))
		})
	}
}
