package services

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meyer/rwb/internal/environ"
	"github.com/meyer/rwb/internal/errors"
	"github.com/meyer/rwb/internal/server"
)

type serveOutcome struct {
	result *ServeResult
	err    error
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, url)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestServeService_Serve(t *testing.T) {
	root := writeProject(t, nil)
	env := &environ.Fake{TempRoot: t.TempDir()}
	var out bytes.Buffer
	svc := NewServeService(testConfig(root), env, nil, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan *server.Server, 1)
	done := make(chan serveOutcome, 1)
	go func() {
		res, err := svc.Serve(ctx, ServeOptions{Ready: func(srv *server.Server) { ready <- srv }})
		done <- serveOutcome{res, err}
	}()

	var srv *server.Server
	select {
	case srv = <-ready:
	case o := <-done:
		t.Fatalf("serve returned early: %v", o.err)
	case <-time.After(30 * time.Second):
		t.Fatal("server did not become ready")
	}

	base := "http://" + srv.Addr() + "/"
	shell := fetch(t, base)
	assert.Contains(t, shell, `<span id="root"></span>`)
	assert.Contains(t, shell, `<script src="/bundle.js"></script>`)

	bundle := fetch(t, base+"bundle.js")
	assert.Contains(t, bundle, "hello from demo")
	assert.Contains(t, bundle, "__rwb/ws")

	cancel()
	var o serveOutcome
	select {
	case o = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}

	require.NoError(t, o.err)
	assert.Equal(t, "http://127.0.0.1:3000/", o.result.ServerURL)
	assert.Contains(t, out.String(), "Serving "+o.result.ContentBase+" at http://127.0.0.1:3000/")

	_, err := os.Stat(o.result.ContentBase)
	assert.True(t, os.IsNotExist(err), "temp dir is released on shutdown")
	assert.Equal(t, []string{o.result.ContentBase}, env.Released)
}

func TestServeService_ManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     string
	}{
		{"missing rwb section", `{"name":"demo"}`, errors.ErrCodeManifestSectionMissing},
		{"missing main", `{"rwb":{"dom_node":"#app"}}`, errors.ErrCodeManifestMainMissing},
		{"invalid json", `{"rwb":`, errors.ErrCodeManifestInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, map[string]string{"package.json": tt.manifest})
			tempRoot := t.TempDir()
			env := &environ.Fake{TempRoot: tempRoot}
			var out bytes.Buffer

			_, err := NewServeService(testConfig(root), env, nil, &out).Serve(context.Background(), ServeOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsManifestError(err))
			assert.True(t, errors.Is(err, errors.NewManifestError(tt.code, "")))

			assert.Empty(t, dirEntries(t, tempRoot), "nothing is created before the manifest validates")
			assert.Empty(t, out.String())
		})
	}
}

func TestServeService_InvalidMountPoint(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": `{"rwb":{"main":"./src/App.js","dom_node":"section#app"}}`,
	})

	_, err := NewServeService(testConfig(root), &environ.Fake{TempRoot: t.TempDir()}, nil, io.Discard).
		Serve(context.Background(), ServeOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsSelectorError(err))
}

func TestServeService_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	root := writeProject(t, nil)
	cfg := testConfig(root)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	env := &environ.Fake{TempRoot: t.TempDir()}

	_, err = NewServeService(cfg, env, nil, io.Discard).Serve(context.Background(), ServeOptions{})
	require.Error(t, err)

	var enhanced *errors.EnhancedError
	require.True(t, errors.As(err, &enhanced))
	assert.NotEmpty(t, enhanced.Suggestions)
	assert.True(t, errors.Is(err, errors.NewRuntimeError(errors.ErrCodeServerBind, "", nil)))
	assert.Len(t, env.Released, 1, "temp dir is released on failure")
}
