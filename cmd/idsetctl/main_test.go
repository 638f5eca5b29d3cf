package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchange/mapisync"
	"github.com/openchange/mapisync/ics"
	"github.com/openchange/mapisync/idset"
)

const replicaA = "0a0a0a0a-0000-0000-0000-000000000001"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func memStore(t *testing.T) *mapisync.Store {
	t.Helper()
	s, err := mapisync.Open("state", mapisync.Options{Options: pebble.Options{FS: vfs.NewMem()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadConfig_Defaults(t *testing.T) {
	conf, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *conf)
}

func TestLoadConfig_FileEnvFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idsetctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: coalesced\ncache-size: 64\nlevel: info\nshutdown-timeout: 2s\n"), 0o600))
	t.Setenv("MAPISYNC_LEVEL", "debug")

	root := newRootCmd()
	require.NoError(t, root.PersistentFlags().Set("data-dir", "/tmp/elsewhere"))
	conf, err := loadConfig(path, root.PersistentFlags())
	require.NoError(t, err)
	assert.Equal(t, idset.Coalesced, conf.Mode)
	assert.Equal(t, 64, conf.CacheSize)
	assert.Equal(t, "debug", conf.Level)
	assert.Equal(t, "/tmp/elsewhere", conf.DataDir)
	assert.Equal(t, 2*time.Second, conf.ShutdownTimeout)
}

func TestLoadConfig_BadMode(t *testing.T) {
	t.Setenv("MAPISYNC_MODE", "fuzzy")
	_, err := loadConfig("", nil)
	assert.Error(t, err)
}

func TestCodecCommands(t *testing.T) {
	out, err := run(t, "build", replicaA, "1", "2", "3", "7")
	require.NoError(t, err)
	built := strings.TrimSpace(out)

	out, err = run(t, "decode", built)
	require.NoError(t, err)
	assert.Equal(t, replicaA+"\t2\t"+replicaA+":[0x1:0x3,0x7]\n", out)

	out, err = run(t, "includes", built, replicaA, "0x7")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
	out, err = run(t, "includes", built, replicaA, "5")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	other, err := run(t, "build", "--coalesced", replicaA, "5", "9")
	require.NoError(t, err)
	out, err = run(t, "merge", built, strings.TrimSpace(other))
	require.NoError(t, err)
	merged, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	set, err := idset.Parse(merged)
	require.NoError(t, err)
	assert.Equal(t, []idset.Range{{Low: 1, High: 3}, {Low: 5, High: 9}}, set.Replicas[0].Ranges)

	_, err = run(t, "decode", "zz")
	assert.Error(t, err)
	_, err = run(t, "build", replicaA, "0x1000000000000")
	assert.Error(t, err)
}

func TestStateCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	built, err := run(t, "build", replicaA, "10", "11")
	require.NoError(t, err)
	built = strings.TrimSpace(built)

	_, err = run(t, "--data-dir", dir, "state", "put", "7", "MetaTagCnsetSeen", built)
	require.NoError(t, err)
	out, err := run(t, "--data-dir", dir, "state", "get", "7", "MetaTagCnsetSeen")
	require.NoError(t, err)
	assert.Equal(t, built+"\n", out)

	out, err = run(t, "--data-dir", dir, "state", "digest", "7", "MetaTagCnsetSeen")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 16)

	out, err = run(t, "--data-dir", dir, "state", "folders")
	require.NoError(t, err)
	assert.Equal(t, "0x7\n", out)

	exported, err := run(t, "--data-dir", dir, "state", "export", "7")
	require.NoError(t, err)
	_, err = run(t, "--data-dir", dir, "state", "import", "8", strings.TrimSpace(exported))
	require.NoError(t, err)
	out, err = run(t, "--data-dir", dir, "state", "dump", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "MetaTagCnsetSeen")

	_, err = run(t, "--data-dir", dir, "state", "get", "7", "IncrSyncStateBegin")
	assert.Error(t, err)

	late, err := run(t, "build", replicaA, "20")
	require.NoError(t, err)
	_, err = run(t, "--data-dir", dir, "--mode", "coalesced", "state", "put", "9", "MetaTagCnsetRead", built)
	require.NoError(t, err)
	_, err = run(t, "--data-dir", dir, "state", "merge", "9", "MetaTagCnsetRead", strings.TrimSpace(late))
	require.NoError(t, err)
	out, err = run(t, "--data-dir", dir, "state", "dump", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "{coalesced "+replicaA+":[0xa:0x14]}")
}

func TestStateHandler(t *testing.T) {
	s := memStore(t)
	mux, err := newMux(s, idset.Coalesced)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := srv.URL + "/state?folder=3&tag=MetaTagCnsetRead"
	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := hex.EncodeToString(idsetOf(t, 4, 5).Serialize())
	resp, err = http.Post(url, "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(url)
	require.NoError(t, err)
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	// written sets take the served mode
	resp, err = http.Post(url, "text/plain", strings.NewReader(hex.EncodeToString(idsetOf(t, 9).Serialize())))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	stored, err := s.GetState(3, ics.MetaTagCnsetRead)
	require.NoError(t, err)
	assert.Equal(t, idset.Coalesced, stored.Replicas[0].Mode)
	assert.Equal(t, []idset.Range{{Low: 4, High: 9}}, stored.Replicas[0].Ranges)

	resp, err = http.Get(srv.URL + "/state?folder=x&tag=MetaTagCnsetRead")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "mapisync_store_state_writes")
}

func idsetOf(t *testing.T, values ...uint64) *idset.IDSet {
	t.Helper()
	rs := idset.MakeFromObservations(idset.MustParseGUID(replicaA), values, idset.Precise)
	return &idset.IDSet{Replicas: []idset.ReplicaSet{rs}}
}

func TestREPL_Execute(t *testing.T) {
	var out bytes.Buffer
	repl := REPL{Store: memStore(t), Out: &out}
	ctx := context.Background()

	require.NoError(t, repl.Execute(ctx, "begin 9"))
	require.NoError(t, repl.Execute(ctx, "observe MetaTagCnsetSeen "+replicaA+" 1"))
	require.NoError(t, repl.Execute(ctx, "observe MetaTagCnsetSeen "+replicaA+" 2"))
	require.NoError(t, repl.Execute(ctx, "commit"))
	assert.ErrorIs(t, repl.Execute(ctx, "commit"), ErrUsage)

	out.Reset()
	require.NoError(t, repl.Execute(ctx, "get 9 MetaTagCnsetSeen"))
	assert.Equal(t, "{"+replicaA+":[0x1:0x2]}\n", out.String())

	out.Reset()
	require.NoError(t, repl.Execute(ctx, "build "+replicaA+" 3"))
	built := strings.TrimSpace(out.String())
	require.NoError(t, repl.Execute(ctx, "add 9 MetaTagCnsetSeen "+built))
	out.Reset()
	require.NoError(t, repl.Execute(ctx, "folders"))
	assert.Equal(t, "0x9\n", out.String())

	assert.Error(t, repl.Execute(ctx, "frobnicate"))
	assert.Equal(t, io.EOF, repl.Execute(ctx, "exit"))
	assert.NoError(t, repl.Execute(ctx, "   "))
}
