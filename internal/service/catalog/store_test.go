package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/darp-registry/darp/internal/errs"
	"github.com/darp-registry/darp/internal/model"
	"github.com/darp-registry/darp/pkg/testhelpers"
	"github.com/darp-registry/darp/pkg/types"
)

func seedServer(t *testing.T, st *Store, name, url string, toolNames ...string) *model.Server {
	t.Helper()
	srv, err := model.NewServer(&types.CreateServerInput{Name: name, URL: url})
	testhelpers.AssertNoError(t, err)

	tools := make([]types.Tool, 0, len(toolNames))
	for _, n := range toolNames {
		tools = append(tools, types.Tool{Name: n, Description: n + " tool"})
	}
	created, err := st.CreateServer(context.Background(), srv, model.NewTools(tools))
	testhelpers.AssertNoError(t, err)
	return created
}

func TestStoreCreateAndGet(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)

	created := seedServer(t, st, "calc", "http://calc.local/sse", "add", "sub")
	testhelpers.AssertTrue(t, created.ID != 0, "id must be assigned")

	got, err := st.GetServer(context.Background(), created.ID)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, "calc", got.Name)
	testhelpers.AssertEqual(t, types.TransportSSE, got.Transport)
	if len(got.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(got.Tools))
	}
	testhelpers.AssertEqual(t, "add", got.Tools[0].Name)
	testhelpers.AssertEqual(t, "sub", got.Tools[1].Name)
	testhelpers.AssertEqual(t, created.ID, got.Tools[0].ServerID)
	testhelpers.AssertEqual(t, `{"type":"object"}`, string(got.Tools[0].InputSchema))
}

func TestStoreGetMissing(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)

	_, err := st.GetServer(context.Background(), 42)
	testhelpers.AssertTrue(t, errors.Is(err, errs.ErrNotFound), "expected not found")
}

func TestStoreFindServers(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	a := seedServer(t, st, "Calc", "http://a/sse")
	b := seedServer(t, st, "other", "http://x/sse")
	seedServer(t, st, "third", "http://y/sse")

	name, url := "calc", "http://x/sse"
	found, err := st.FindServers(ctx, ServerFilter{Name: &name, URL: &url})
	testhelpers.AssertNoError(t, err)
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
	testhelpers.AssertEqual(t, a.ID, found[0].ID)
	testhelpers.AssertEqual(t, b.ID, found[1].ID)

	_, err = st.FindServers(ctx, ServerFilter{})
	testhelpers.AssertTrue(t, errors.Is(err, errs.ErrInvalidInput), "empty filter must be rejected")
}

func TestStoreUniqueConstraints(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	seedServer(t, st, "calc", "http://a/sse")

	dupURL, _ := model.NewServer(&types.CreateServerInput{Name: "calc2", URL: "http://a/sse"})
	_, err := st.CreateServer(ctx, dupURL, nil)
	testhelpers.AssertTrue(t, isUniqueViolation(err), "duplicate url must violate a unique constraint")

	dupName, _ := model.NewServer(&types.CreateServerInput{Name: "CALC", URL: "http://b/sse"})
	_, err = st.CreateServer(ctx, dupName, nil)
	testhelpers.AssertTrue(t, isUniqueViolation(err), "duplicate name in another case must violate a unique constraint")
}

func TestStoreUpdateReplacesTools(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	srv := seedServer(t, st, "calc", "http://a/sse", "add")

	updated, err := st.UpdateServer(ctx, srv.ID,
		&types.UpdateServerInput{Description: "new", URL: "http://b/sse"},
		"http://b/sse",
		model.NewTools([]types.Tool{{Name: "mul"}, {Name: "div"}}),
	)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, "calc", updated.Name)
	testhelpers.AssertEqual(t, "new", updated.Description)
	testhelpers.AssertEqual(t, "http://b/sse", updated.URL)
	if len(updated.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(updated.Tools))
	}
	testhelpers.AssertEqual(t, "mul", updated.Tools[0].Name)

	var count int64
	testhelpers.AssertNoError(t, setup.DB.Model(&model.Tool{}).Count(&count).Error)
	testhelpers.AssertEqual(t, int64(2), count)

	_, err = st.UpdateServer(ctx, 999, &types.UpdateServerInput{Description: "x"}, "http://b/sse", nil)
	testhelpers.AssertTrue(t, errors.Is(err, errs.ErrNotFound), "expected not found")

	// tools listed at a url the server no longer points to are rejected
	_, err = st.UpdateServer(ctx, srv.ID, &types.UpdateServerInput{Description: "stale"}, "http://a/sse",
		model.NewTools([]types.Tool{{Name: "old"}}))
	testhelpers.AssertTrue(t, errors.Is(err, errs.ErrConcurrentUpdate), "expected concurrent update error")

	got, err := st.GetServer(ctx, srv.ID)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, "new", got.Description)
	testhelpers.AssertEqual(t, 2, len(got.Tools))
}

func TestStoreDeleteRemovesTools(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	srv := seedServer(t, st, "calc", "http://a/sse", "add", "sub")
	keep := seedServer(t, st, "other", "http://b/sse", "echo")

	testhelpers.AssertNoError(t, st.DeleteServer(ctx, srv.ID))

	var tools []model.Tool
	testhelpers.AssertNoError(t, setup.DB.Find(&tools).Error)
	if len(tools) != 1 {
		t.Fatalf("expected only the other server's tool to remain, got %d", len(tools))
	}
	testhelpers.AssertEqual(t, keep.ID, tools[0].ServerID)

	err := st.DeleteServer(ctx, srv.ID)
	testhelpers.AssertTrue(t, errors.Is(err, errs.ErrNotFound), "second delete must report not found")
}

func TestStoreListServers(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	seedServer(t, st, "one", "http://1/sse", "a")
	seedServer(t, st, "two", "http://2/sse")
	seedServer(t, st, "three", "http://3/sse", "b", "c")

	page, total, err := st.ListServers(ctx, 2, 2)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, int64(3), total)
	if len(page) != 1 {
		t.Fatalf("expected 1 server on the last page, got %d", len(page))
	}
	testhelpers.AssertEqual(t, "three", page[0].Name)
	testhelpers.AssertEqual(t, 2, len(page[0].Tools))

	all, err := st.Snapshot(ctx)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, 3, len(all))
}

func TestStoreGetServersByURLs(t *testing.T) {
	setup := testhelpers.SetupTestDB(t)
	defer setup.Cleanup()
	st := NewStore(setup.DB)
	ctx := context.Background()

	seedServer(t, st, "one", "http://1/sse")
	seedServer(t, st, "two", "http://2/sse")

	servers, missing, err := st.GetServersByURLs(ctx,
		[]string{"http://2/sse", "http://nope/sse", "http://1/sse", "http://2/sse"})
	testhelpers.AssertNoError(t, err)
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	testhelpers.AssertEqual(t, "two", servers[0].Name)
	testhelpers.AssertEqual(t, "one", servers[1].Name)
	testhelpers.AssertEqual(t, []string{"http://nope/sse"}, missing)

	servers, missing, err = st.GetServersByURLs(ctx, nil)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, 0, len(servers))
	testhelpers.AssertEqual(t, 0, len(missing))
}
