// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protokb

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/protokb/services/protokb/codec"
	"github.com/AleutianAI/protokb/services/protokb/dataset"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
	"github.com/AleutianAI/protokb/services/protokb/remote"
	"github.com/AleutianAI/protokb/services/protokb/storage/badger"
)

// writeSource writes ps to dir/name with the codec matching the extension.
func writeSource(t *testing.T, dir, name string, ps []*kb.Prototype) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, codec.ByPath(path).Serialize(f, ps))
	require.NoError(t, f.Close())
	return path
}

// rewrite replaces the content of path without asserting, for use inside
// polling conditions.
func rewrite(path string, ps []*kb.Prototype) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := codec.ByPath(path).Serialize(f, ps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// splitExample puts the cities in one file and the people in another.
func splitExample() (cities, people []*kb.Prototype) {
	for _, p := range dataset.Example() {
		switch p.ID() {
		case dataset.Michael, dataset.Stefan:
			people = append(people, p)
		default:
			cities = append(cities, p)
		}
	}
	return cities, people
}

func TestService_ReloadFromFiles(t *testing.T) {
	dir := t.TempDir()
	cities, people := splitExample()
	svc := NewService(ServiceConfig{Sources: []Source{
		FileSource{Path: writeSource(t, dir, "people.proto", people)},
		FileSource{Path: writeSource(t, dir, "cities.json", cities)},
	}})

	assert.Nil(t, svc.Base())
	assert.Zero(t, svc.Generation())

	require.NoError(t, svc.Reload(context.Background()))
	require.NotNil(t, svc.Base())
	assert.Equal(t, 7, svc.Base().Len())
	assert.Equal(t, uint64(1), svc.Generation())

	fp, err := svc.Base().ComputeFixPoint(dataset.Stefan)
	require.NoError(t, err)
	assert.True(t, fp.IsFixPoint())

	stats := svc.Stats()
	assert.Equal(t, 7, stats.Prototypes)
	assert.Zero(t, stats.ReloadErrors)
	assert.Empty(t, stats.LastError)
}

func TestService_ReloadFromStore(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := badger.NewStore(db, nil)
	require.NoError(t, store.Put(context.Background(), dataset.Example()...))

	src := StoreSource{Store: store}
	assert.Equal(t, "badger:memory", src.Name())

	svc := NewService(ServiceConfig{Sources: []Source{src}})
	require.NoError(t, svc.Reload(context.Background()))
	assert.Equal(t, 7, svc.Base().Len())
}

func TestService_ReloadErrors(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		svc := NewService(ServiceConfig{})
		assert.ErrorIs(t, svc.Reload(context.Background()), ErrNoSources)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := NewService(ServiceConfig{Sources: []Source{
			FileSource{Path: filepath.Join(t.TempDir(), "absent.proto")},
		}})
		err := svc.Reload(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Nil(t, svc.Base())
	})

	t.Run("duplicate across sources", func(t *testing.T) {
		ps := dataset.Example()
		svc := NewService(ServiceConfig{Sources: []Source{
			StaticSource{Label: "first", Prototypes: ps},
			StaticSource{Label: "second", Prototypes: ps[:1]},
		}})
		err := svc.Reload(context.Background())
		assert.ErrorIs(t, err, kb.ErrAlreadyDefined)
		assert.Contains(t, err.Error(), "second")
	})

	t.Run("failed reload keeps the previous base", func(t *testing.T) {
		dir := t.TempDir()
		path := writeSource(t, dir, "kb.proto", dataset.Example())
		svc := NewService(ServiceConfig{Sources: []Source{FileSource{Path: path}}})
		require.NoError(t, svc.Reload(context.Background()))
		before := svc.Base()

		orphan := kb.NewPrototypeBuilder(kb.MustID("http://example.com/#Missing")).
			Build(kb.MustID("http://example.com/#Orphan"))
		writeSource(t, dir, "kb.proto", append(dataset.Example(), orphan))

		err := svc.Reload(context.Background())
		var cerr *kb.ConsistencyError
		require.True(t, errors.As(err, &cerr), "got %v", err)
		assert.ErrorIs(t, err, kb.ErrUndefinedParent)

		assert.Same(t, before, svc.Base())
		assert.Equal(t, uint64(1), svc.Generation())
		stats := svc.Stats()
		assert.Equal(t, int64(1), stats.ReloadErrors)
		assert.NotEmpty(t, stats.LastError)

		writeSource(t, dir, "kb.proto", dataset.Example())
		require.NoError(t, svc.Reload(context.Background()))
		assert.Empty(t, svc.Stats().LastError)
		assert.Equal(t, uint64(2), svc.Generation())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc := NewService(ServiceConfig{Sources: []Source{
			FileSource{Path: writeSource(t, t.TempDir(), "kb.proto", dataset.Example())},
		}})
		assert.ErrorIs(t, svc.Reload(ctx), context.Canceled)
	})
}

func TestService_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "kb.proto", dataset.Example())
	svc := NewService(ServiceConfig{
		Sources:       []Source{FileSource{Path: path}},
		WatchDebounce: 20 * time.Millisecond,
	})
	require.NoError(t, svc.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	extra := kb.NewPrototypeBuilder(dataset.City).Build(kb.MustID("http://example.fr/#Nantes"))

	// Writes are retried since the watch may not be registered yet.
	require.Eventually(t, func() bool {
		if err := rewrite(path, append(dataset.Example(), extra)); err != nil {
			return false
		}
		time.Sleep(50 * time.Millisecond)
		return svc.Base().Contains(extra.ID())
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, svc.Generation(), uint64(2))

	// Unrelated files in the directory do not trigger a reload.
	gen := svc.Generation()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, gen, svc.Generation())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestService_WatchWithoutFiles(t *testing.T) {
	svc := NewService(ServiceConfig{Sources: []Source{
		StaticSource{Label: "static", Prototypes: dataset.Example()},
	}})
	assert.ErrorIs(t, svc.Watch(context.Background()), ErrNoSources)
}

func TestService_Lookup(t *testing.T) {
	svc := NewService(testConfig())

	_, err := svc.Lookup(context.Background(), []kb.ID{dataset.Galway}, false)
	assert.ErrorIs(t, err, ErrNotReady)

	svc.SetBase(dataset.ExampleBase())

	res, err := svc.Lookup(context.Background(), []kb.ID{dataset.Galway, dataset.Michael}, false)
	require.NoError(t, err)
	require.Len(t, res.Prototypes, 2)
	assert.Equal(t, time.Minute, res.MaxAge)

	res, err = svc.Lookup(context.Background(), []kb.ID{dataset.Aachen, dataset.Galway}, false)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, res.MaxAge)

	res, err = svc.Lookup(context.Background(), []kb.ID{dataset.Michael}, true)
	require.NoError(t, err)
	assert.True(t, res.Prototypes[0].IsFixPoint())
	assert.Zero(t, res.MaxAge)

	_, err = svc.Lookup(context.Background(), []kb.ID{kb.MustID("http://example.com/#Atlantis")}, false)
	assert.ErrorIs(t, err, kb.ErrNotDefined)
}

func TestService_ETags(t *testing.T) {
	svc := NewService(ServiceConfig{ETagCapacity: 2})
	base := dataset.ExampleBase()
	galway, _ := base.IsDefined(dataset.Galway)
	aachen, _ := base.IsDefined(dataset.Aachen)

	tag := svc.MintETag(galway)
	assert.NotEqual(t, tag, svc.MintETag(galway))

	assert.True(t, svc.Revalidate(tag, galway))
	assert.False(t, svc.Revalidate(tag, aachen))
	assert.False(t, svc.Revalidate("unknown", galway))

	// Capacity 2: the oldest tag is forgotten.
	svc.MintETag(aachen)
	svc.MintETag(aachen)
	assert.False(t, svc.Revalidate(tag, galway))
	assert.Equal(t, 2, svc.Stats().ETags.Size)
}

func TestRemoteClient_AgainstServer(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultMaxAge = 0
	svc, router := setupRouter(t, cfg, true)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client, err := remote.NewClient(srv.URL + prototypesPath)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	ctx := context.Background()

	res, err := client.Fetch(ctx, dataset.Galway)
	require.NoError(t, err)
	want, _ := svc.Base().IsDefined(dataset.Galway)
	assert.True(t, want.Equal(res.Prototype))
	require.Len(t, res.Alternates, 2)
	assert.Equal(t, "http://mirror.example.org/galway", res.Alternates[0].String())

	t.Run("revalidates with the entity tag", func(t *testing.T) {
		again, err := client.Fetch(ctx, dataset.Galway)
		require.NoError(t, err)
		assert.Same(t, res, again)
		assert.Positive(t, svc.Stats().ETags.Hits)
	})

	t.Run("fixpoint", func(t *testing.T) {
		fp, err := client.FetchFixPoint(ctx, dataset.Stefan)
		require.NoError(t, err)
		local, err := svc.Base().ComputeFixPoint(dataset.Stefan)
		require.NoError(t, err)
		assert.True(t, local.Equal(fp.Prototype))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.Fetch(ctx, kb.MustID("http://example.com/#Atlantis"))
		assert.ErrorIs(t, err, kb.ErrNotDefined)
	})

	t.Run("as external base", func(t *testing.T) {
		visitor := kb.MustID("http://example.net/#Visitor")
		b := kb.NewBuilder(kb.Chain(literal.Default(), client))
		require.NoError(t, b.Add(kb.NewPrototypeBuilder(dataset.Stefan).
			Replace(dataset.HasName, literal.Default().Str("Visitor").ID()).
			Build(visitor)))
		local, err := b.Build()
		require.NoError(t, err)

		fp, err := local.ComputeFixPoint(visitor)
		require.NoError(t, err)
		assert.ElementsMatch(t, []kb.ID{literal.Default().Str("Visitor").ID()}, fp.Add().Apply(dataset.HasName))
		assert.ElementsMatch(t, []kb.ID{dataset.Aachen, dataset.Antwerp}, fp.Add().Apply(dataset.LivesIn))
	})
}
