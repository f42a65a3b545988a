package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/require"
	"github.com/vilterp/nltemplate/pkg/template"
)

type testServerRef struct {
	server *Server
	client *Client
	port   int
}

func (tsr *testServerRef) Close() {
	tsr.client.Close()
	tsr.server.Close()
}

func newTestServer(t *testing.T, store *template.Store) *testServerRef {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	server := NewServer("localhost", port, store, template.NewMetrics())
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	url := fmt.Sprintf("ws://localhost:%d/ws", port)
	var client *Client
	require.Eventually(t, func() bool {
		client, err = NewClient(url)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	ref := &testServerRef{server: server, client: client, port: port}
	t.Cleanup(ref.Close)
	return ref
}

type simpleTestStmt struct {
	stmt   string
	result string
	error  string
}

func runSimpleTestScript(t *testing.T, client *Client, cases []simpleTestStmt) {
	for idx, testCase := range cases {
		result, err := client.Exec(testCase.stmt)
		if testCase.error != "" {
			require.EqualError(t, err, testCase.error, "case %d", idx)
			continue
		}
		require.NoError(t, err, "case %d", idx)
		require.Equal(t, testCase.result, result, "case %d", idx)
	}
}

func TestStatements(t *testing.T) {
	tsr := newTestServer(t, nil)
	runSimpleTestScript(t, tsr.client, []simpleTestStmt{
		{stmt: "edge(a, b).", result: "ADD RULE"},
		{stmt: "h(X) :- edge(X, Y). [aggregation=max]", result: "ADD RULE"},
		{stmt: "h/1 [activation=tanh]", result: "SET DEFAULT"},
		{stmt: "h(X) :- edge(X, Y). [pooling=max]", error: "unknown metadata option: pooling"},
		{stmt: `\show`, result: "edge(a, b).\nh(X) :- edge(X, Y). [aggregation=max]\nh/1 [activation=tanh]"},
		{stmt: `\save`, error: "no template store configured"},
	})
}

func TestConnectionsAreIsolated(t *testing.T) {
	tsr := newTestServer(t, nil)
	other, err := NewClient(fmt.Sprintf("ws://localhost:%d/ws", tsr.port))
	require.NoError(t, err)
	defer other.Close()

	runSimpleTestScript(t, tsr.client, []simpleTestStmt{
		{stmt: `\gnn gcn 2 2`, result: "ADD LAYER l0_gcn"},
	})
	runSimpleTestScript(t, other, []simpleTestStmt{
		{stmt: `\layers`, result: ""},
		{stmt: `\gnn gin 2 2`, result: "ADD LAYER l0_gin"},
		{stmt: `\layers`, result: "l0_gin"},
	})
	runSimpleTestScript(t, tsr.client, []simpleTestStmt{
		{stmt: `\layers`, result: "l0_gcn"},
	})
}

func TestSaveAndLoadAcrossConnections(t *testing.T) {
	store, err := template.OpenStore(filepath.Join(t.TempDir(), "templates.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	tsr := newTestServer(t, store)
	runSimpleTestScript(t, tsr.client, []simpleTestStmt{
		{stmt: `\gnn sage 4 2`, result: "ADD LAYER l0_sage"},
	})
	shown, err := tsr.client.Exec(`\show`)
	require.NoError(t, err)
	saved, err := tsr.client.Exec(`\save`)
	require.NoError(t, err)
	id := strings.TrimPrefix(saved, "SAVED ")

	other, err := NewClient(fmt.Sprintf("ws://localhost:%d/ws", tsr.port))
	require.NoError(t, err)
	defer other.Close()
	runSimpleTestScript(t, other, []simpleTestStmt{
		{stmt: `\list`, result: id},
		{stmt: `\load ` + id, result: "LOADED 6 statements"},
		{stmt: `\show`, result: shown},
	})
}

func TestMetricsEndpoint(t *testing.T) {
	tsr := newTestServer(t, nil)
	runSimpleTestScript(t, tsr.client, []simpleTestStmt{
		{stmt: `\gnn gcn 2 2`, result: "ADD LAYER l0_gcn"},
		{stmt: `\bogus`, error: `unknown command: \bogus (\h for help)`},
	})

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", tsr.port))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, `modules_built_total{kind="gcn"} 1`)
	require.Contains(t, text, `statements_total{outcome="error"} 1`)
	require.Contains(t, text, `statements_total{outcome="ok"} 1`)
	require.Contains(t, text, "open_connections 1")
}
