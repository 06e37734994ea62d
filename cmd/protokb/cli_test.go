// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/protokb/cmd/protokb/config"
	"github.com/AleutianAI/protokb/pkg/logging"
	"github.com/AleutianAI/protokb/pkg/ux"
	"github.com/AleutianAI/protokb/services/protokb"
	"github.com/AleutianAI/protokb/services/protokb/codec"
	"github.com/AleutianAI/protokb/services/protokb/dataset"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
	"github.com/AleutianAI/protokb/services/protokb/storage/badger"
)

// execute runs the CLI with machine output and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	orig := ux.GetPersonality()
	t.Cleanup(func() { ux.SetPersonality(orig) })

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--output", "machine"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name string, ps []*kb.Prototype) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, codec.ByPath(path).Serialize(f, ps))
	require.NoError(t, f.Close())
	return path
}

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Mode = gin.TestMode
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	return &app{
		cfg:     cfg,
		logger:  logging.New(logging.Config{Level: logging.LevelWarn, Quiet: true}),
		printer: &ux.Printer{Out: &bytes.Buffer{}, Err: &bytes.Buffer{}, Level: ux.PersonalityMachine},
	}
}

func str(s string) kb.ID { return literal.Default().Str(s).ID() }

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("consistent", func(t *testing.T) {
		path := writeFile(t, dir, "example.proto", dataset.Example())
		out, _, err := execute(t, "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "consistent\tprototypes\t7\n")
		assert.Contains(t, out, "consistent\tfiles\t"+path+"\n")
	})

	t.Run("split across formats", func(t *testing.T) {
		ps := dataset.Example()
		a := writeFile(t, dir, "a.json", ps[:3])
		b := writeFile(t, dir, "b.proto", ps[3:])
		out, _, err := execute(t, "validate", a, b)
		require.NoError(t, err)
		assert.Contains(t, out, "consistent\tprototypes\t7\n")
	})

	t.Run("undefined parent", func(t *testing.T) {
		orphan := kb.NewPrototypeBuilder(kb.MustID("http://example.com/#Missing")).
			Build(kb.MustID("http://example.com/#Orphan"))
		path := writeFile(t, dir, "bad.proto", append(dataset.Example(), orphan))

		out, _, err := execute(t, "validate", path)
		assert.ErrorIs(t, err, kb.ErrUndefinedParent)
		assert.Contains(t, out, "inconsistent\tprototype\thttp://example.com/#Orphan\n")
		assert.Contains(t, out, "inconsistent\trelated\thttp://example.com/#Missing\n")
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "broken.proto")
		require.NoError(t, os.WriteFile(path, []byte("http://example.com/#A\nbase\n"), 0o644))
		out, _, err := execute(t, "validate", path)
		assert.ErrorIs(t, err, codec.ErrMalformed)
		assert.Contains(t, out, "parse failed\terror\t")
	})

	t.Run("no files", func(t *testing.T) {
		_, _, err := execute(t, "validate")
		assert.Error(t, err)
	})
}

func TestFixpoint(t *testing.T) {
	path := writeFile(t, t.TempDir(), "example.proto", dataset.Example())

	out, _, err := execute(t, "fixpoint", path, "--id", dataset.Stefan.String())
	require.NoError(t, err)
	fps, err := codec.Text.Deserialize(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.True(t, fps[0].IsFixPoint())
	assert.ElementsMatch(t, []kb.ID{dataset.Aachen, dataset.Antwerp}, fps[0].Add().Apply(dataset.LivesIn))
	assert.ElementsMatch(t, []kb.ID{str("Stefan")}, fps[0].Add().Apply(dataset.HasName))

	out, _, err = execute(t, "fixpoint", path, "--format", "json")
	require.NoError(t, err)
	fps, err = codec.JSON.Deserialize(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, fps, 7)
	for _, fp := range fps {
		assert.True(t, fp.IsFixPoint(), fp.ID().String())
	}

	_, _, err = execute(t, "fixpoint", path, "--id", "http://example.com/#Atlantis")
	assert.ErrorIs(t, err, kb.ErrNotDefined)

	_, _, err = execute(t, "fixpoint", path, "--format", "xml")
	assert.ErrorIs(t, err, codec.ErrUnsupportedFormat)
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	left := writeFile(t, dir, "left.proto", []*kb.Prototype{
		kb.NewPrototypeBuilder(kb.GroundID).Build(dataset.City),
		kb.NewPrototypeBuilder(dataset.City).Add(dataset.HasName, str("Galway")).Build(dataset.Galway),
	})
	right := writeFile(t, dir, "right.proto", []*kb.Prototype{
		kb.NewPrototypeBuilder(dataset.City).Add(dataset.HasName, str("Gaillimh")).Build(dataset.Galway),
	})

	t.Run("union", func(t *testing.T) {
		out, errOut, err := execute(t, "join", left, right)
		require.NoError(t, err)
		ps, err := codec.Text.Deserialize(strings.NewReader(out))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.ElementsMatch(t, []kb.ID{str("Galway"), str("Gaillimh")}, ps[0].Add().Apply(dataset.HasName))
		assert.Contains(t, errOut, "WARN: not in both files: "+dataset.City.String())
	})

	t.Run("intersect", func(t *testing.T) {
		out, _, err := execute(t, "join", left, right, "--add", "intersect")
		require.NoError(t, err)
		ps, err := codec.Text.Deserialize(strings.NewReader(out))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.True(t, ps[0].Add().IsEmpty())
	})

	t.Run("parent mismatch", func(t *testing.T) {
		other := writeFile(t, dir, "other.proto", []*kb.Prototype{
			kb.NewPrototypeBuilder(kb.GroundID).Build(dataset.Galway),
		})
		_, _, err := execute(t, "join", left, other)
		assert.Error(t, err)
	})

	t.Run("bad strategy", func(t *testing.T) {
		_, _, err := execute(t, "join", left, right, "--remove", "xor")
		assert.Error(t, err)
	})
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db")
	src := writeFile(t, dir, "example.proto", dataset.Example())

	out, _, err := execute(t, "store", "import", src, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: imported 7 prototypes, store holds 7")

	out, _, err = execute(t, "store", "export", "--db", db)
	require.NoError(t, err)
	ps, err := codec.Text.Deserialize(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, ps, 7)
	base := dataset.ExampleBase()
	for _, p := range ps {
		want, ok := base.IsDefined(p.ID())
		require.True(t, ok)
		assert.True(t, want.Equal(p))
	}

	out, _, err = execute(t, "store", "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "\tprototypes\t7\n")
	assert.Contains(t, out, "\tstatus\tconsistent\n")

	t.Run("replace", func(t *testing.T) {
		small := writeFile(t, dir, "small.proto", dataset.Example()[:1])
		out, _, err := execute(t, "store", "import", small, "--db", db, "--replace")
		require.NoError(t, err)
		assert.Contains(t, out, "store holds 1")
	})

	t.Run("inconsistent files are not imported", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.proto", dataset.Example()[1:])
		_, _, err := execute(t, "store", "import", bad, "--db", db)
		assert.ErrorIs(t, err, kb.ErrUndefinedParent)
	})

	t.Run("no store", func(t *testing.T) {
		_, _, err := execute(t, "store", "export")
		assert.Error(t, err)
	})
}

func TestBench(t *testing.T) {
	out, _, err := execute(t, "bench", "ideal", "--size", "3", "--readers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "0/4 generating\n")
	assert.Contains(t, out, "bench ideal\tprototypes\t15\n")
	assert.Contains(t, out, "SUMMARY: lookups=30 readers=2 ")

	out, _, err = execute(t, "bench", "blocks", "--size", "4", "--width", "5", "--readers", "1", "--rounds", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "bench blocks\tprototypes\t20\n")
	assert.Contains(t, out, "SUMMARY: lookups=60 readers=1 ")

	out, _, err = execute(t, "bench", "incremental", "--size", "50", "--readers", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY: lookups=200 readers=4 ")

	_, _, err = execute(t, "bench", "random")
	assert.Error(t, err)
	_, _, err = execute(t, "bench", "ideal", "--readers", "0")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protokb.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: wrote "+path)

	_, _, err = execute(t, "config", "init", path)
	assert.Error(t, err)

	out, _, err = execute(t, "--config", path, "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 12250")
	assert.Contains(t, out, "level: debug")

	_, _, err = execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "show")
	assert.Error(t, err)

	_, _, err = execute(t, "--log-level", "loud", "config", "show")
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := protokb.NewService(protokb.ServiceConfig{
		Alternates: map[kb.ID][]string{dataset.Michael: {"http://mirror.example.org/michael"}},
	})
	svc.SetBase(dataset.ExampleBase())
	srv := httptest.NewServer(protokb.NewRouter(protokb.NewHandlers(svc), ""))
	t.Cleanup(srv.Close)
	endpoint := srv.URL + protokb.DefaultBasePath + "/prototypes"

	out, _, err := execute(t, "fetch", endpoint, dataset.Michael.String())
	require.NoError(t, err)
	title := dataset.Michael.String()
	assert.Contains(t, out, title+"\tparent\t"+kb.GroundID.String()+"\n")
	assert.Contains(t, out, title+"\talternates\thttp://mirror.example.org/michael\n")

	out, _, err = execute(t, "fetch", endpoint, dataset.Stefan.String(), "--fp", "--raw", "json")
	require.NoError(t, err)
	fps, err := codec.JSON.Deserialize(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.True(t, fps[0].IsFixPoint())

	_, _, err = execute(t, "fetch", endpoint, "http://example.com/#Atlantis")
	assert.ErrorIs(t, err, kb.ErrNotDefined)

	_, _, err = execute(t, "fetch", "ftp://example.com", dataset.Michael.String())
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	ps := dataset.Example()

	db, err := badger.OpenPath(filepath.Join(dir, "db"), nil)
	require.NoError(t, err)
	require.NoError(t, badger.NewStore(db, nil).Put(context.Background(), ps[5:]...))
	require.NoError(t, db.Close())

	a := testApp(t)
	a.cfg.Source.Files = []string{writeFile(t, dir, "cities.json", ps[:5])}
	a.cfg.Source.StorePath = filepath.Join(dir, "db")
	a.cfg.Cache.MaxAgeOverrides = map[string]int{dataset.Galway.String(): 5}
	a.cfg.Alternates = map[string][]string{dataset.Galway.String(): {"http://mirror.example.org/galway"}}
	a.cfg.Server.BasePath = "/kb"

	s, err := a.newServer(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(s.close)
	assert.Equal(t, 7, s.svc.Base().Len())

	req := httptest.NewRequest(http.MethodGet, "/kb/prototypes?p="+dataset.Galway.String(), nil)
	w := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=5", w.Header().Get("Cache-Control"))
	assert.Equal(t, "<http://mirror.example.org/galway>;rel=alternate", w.Header().Get("Link"))
}

func TestNewServer_Errors(t *testing.T) {
	a := testApp(t)
	_, err := a.newServer(context.Background(), nil)
	assert.ErrorIs(t, err, protokb.ErrNoSources)

	a.cfg.Source.Files = []string{filepath.Join(t.TempDir(), "absent.proto")}
	_, err = a.newServer(context.Background(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewServer_Example(t *testing.T) {
	a := testApp(t)
	a.cfg.Source.Example = true

	s, err := a.newServer(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(s.close)
	assert.Equal(t, len(dataset.Example()), s.svc.Base().Len())
}

func TestNewServer_RemoteExternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := protokb.NewService(protokb.ServiceConfig{})
	upstream.SetBase(dataset.ExampleBase())
	srv := httptest.NewServer(protokb.NewRouter(protokb.NewHandlers(upstream), ""))
	t.Cleanup(srv.Close)

	visitor := kb.MustID("http://example.net/#Visitor")
	a := testApp(t)
	a.cfg.Remote.Externals = []string{srv.URL + protokb.DefaultBasePath + "/prototypes"}
	a.cfg.Source.Files = []string{writeFile(t, t.TempDir(), "local.proto", []*kb.Prototype{
		kb.NewPrototypeBuilder(dataset.Stefan).Build(visitor),
	})}

	s, err := a.newServer(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(s.close)

	fp, err := s.svc.Base().ComputeFixPoint(visitor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []kb.ID{dataset.Aachen, dataset.Antwerp}, fp.Add().Apply(dataset.LivesIn))
}

func TestServe_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	a := testApp(t)
	a.cfg.Server.Host = "127.0.0.1"
	a.cfg.Server.Port = port
	a.cfg.Server.ShutdownTimeout = 2 * time.Second
	path := writeFile(t, t.TempDir(), "example.proto", dataset.Example())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, []string{path}) }()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + protokb.DefaultBasePath + "/ready"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
