package trie

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/ethtrie/pkg/core/mpt"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const dogSetRoot = "5991bb8c6514148a29db676a14ac506cd2cd5775ace63c30a4fe457715e9ac84"

// executor runs trie commands against the LevelDB store in a temporary
// directory. It can't be used in parallel tests.
type executor struct {
	CLI    *cli.App
	Out    *bytes.Buffer
	Err    *bytes.Buffer
	config string
	dir    string
}

func newExecutor(t *testing.T) *executor {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`ApplicationConfiguration:
  LogLevel: debug
  LogPath: %q
  DBConfiguration:
    Type: leveldb
    LevelDBOptions:
      DataDirectoryPath: %q
  Trie:
    NodeCacheSize: 16
    MaxValueLength: 64
`, filepath.Join(dir, "log", "ethtrie.log"), filepath.Join(dir, "db"))
	cfgPath := filepath.Join(dir, "ethtrie.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	ctl := cli.NewApp()
	ctl.Name = "ethtrie"
	ctl.Commands = NewCommands()
	e := &executor{
		CLI:    ctl,
		Out:    bytes.NewBuffer(nil),
		Err:    bytes.NewBuffer(nil),
		config: cfgPath,
		dir:    dir,
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	return e
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

func (e *executor) run(cmd string, args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	return e.CLI.Run(append([]string{"ethtrie", "trie", cmd, "--config-file", e.config}, args...))
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, cmd string, args ...string) string {
	ch := setExitFunc()
	require.NoError(t, e.run(cmd, args...))
	checkExit(t, ch, 0)
	return strings.TrimSuffix(e.Out.String(), "\n")
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, cmd string, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(cmd, args...))
	checkExit(t, ch, 1)
}

func (e *executor) writeFile(t *testing.T, name string, data []byte) string {
	p := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestPutGetDelete(t *testing.T) {
	e := newExecutor(t)

	e.RunWithError(t, "get", "dog")

	var roots []string
	for _, kv := range [][2]string{{"do", "verb"}, {"dog", "puppy"}, {"doge", "coin"}, {"horse", "stallion"}} {
		roots = append(roots, e.Run(t, "put", kv[0], kv[1]))
	}
	require.Equal(t, dogSetRoot, roots[3])
	require.Regexp(t, "^[0-9a-f]{64}$", roots[0])

	require.Equal(t, "puppy", e.Run(t, "get", "dog"))
	require.Equal(t, hex.EncodeToString([]byte("coin")), e.Run(t, "get", "--hex", hex.EncodeToString([]byte("doge"))))

	t.Run("HistoricRoot", func(t *testing.T) {
		require.Equal(t, "verb", e.Run(t, "get", "--root", roots[0], "do"))
		e.RunWithError(t, "get", "--root", roots[0], "dog")
		e.RunWithError(t, "get", "--root", "0xabcd", "dog")
	})

	t.Run("Delete", func(t *testing.T) {
		root := e.Run(t, "delete", "dog")
		require.Equal(t, "2d09ab2a260088a5558f754511c9060bd6cd62ab5d3c10a15a9c0fced52add40", root)
		e.RunWithError(t, "get", "dog")
		require.Equal(t, "coin", e.Run(t, "get", "doge"))

		// Missing key deletion keeps the root.
		require.Equal(t, root, e.Run(t, "delete", "cat"))

		// Putting it back restores the previous root.
		require.Equal(t, dogSetRoot, e.Run(t, "put", "dog", "puppy"))
	})

	t.Run("EmptyValueDeletes", func(t *testing.T) {
		root := e.Run(t, "put", "--hex", hex.EncodeToString([]byte("cat")), "0102")
		require.NotEqual(t, dogSetRoot, root)
		require.Equal(t, dogSetRoot, e.Run(t, "put", "cat", ""))
	})

	t.Run("TooBig", func(t *testing.T) {
		e.RunWithError(t, "put", "big", strings.Repeat("x", 65))
		require.Equal(t, "puppy", e.Run(t, "get", "dog"))
	})

	t.Run("BadArgs", func(t *testing.T) {
		e.RunWithError(t, "put", "key")
		e.RunWithError(t, "get")
		e.RunWithError(t, "delete", "a", "b")
		e.RunWithError(t, "get", "--hex", "xyz")
	})
}

func TestImportDump(t *testing.T) {
	e := newExecutor(t)

	pairs := []KVPair{
		{Key: hex.EncodeToString([]byte("do")), Value: hex.EncodeToString([]byte("verb"))},
		{Key: hex.EncodeToString([]byte("dog")), Value: hex.EncodeToString([]byte("puppy"))},
		{Key: hex.EncodeToString([]byte("doge")), Value: hex.EncodeToString([]byte("coin"))},
		{Key: hex.EncodeToString([]byte("horse")), Value: hex.EncodeToString([]byte("stallion"))},
	}
	data, err := json.Marshal(pairs)
	require.NoError(t, err)
	require.Equal(t, dogSetRoot, e.Run(t, "import", e.writeFile(t, "kv.json", data)))

	t.Run("All", func(t *testing.T) {
		var actual []KVPair
		require.NoError(t, json.Unmarshal([]byte(e.Run(t, "dump")), &actual))
		require.Equal(t, pairs, actual)
	})

	t.Run("Prefix", func(t *testing.T) {
		var actual []KVPair
		require.NoError(t, json.Unmarshal([]byte(e.Run(t, "dump", "--prefix", "dog")), &actual))
		require.Equal(t, pairs[1:3], actual)

		require.NoError(t, json.Unmarshal([]byte(e.Run(t, "dump", "--hex", "--prefix", "68", "--count", "1")), &actual))
		require.Equal(t, pairs[3:], actual)
	})

	t.Run("OutFile", func(t *testing.T) {
		out := filepath.Join(e.dir, "dump.json")
		require.Equal(t, "", e.Run(t, "dump", "--out", out, "--count", "2"))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var actual []KVPair
		require.NoError(t, json.Unmarshal(data, &actual))
		require.Equal(t, pairs[:2], actual)
	})

	t.Run("Deletion", func(t *testing.T) {
		del := []KVPair{{Key: hex.EncodeToString([]byte("horse"))}}
		data, err := json.Marshal(del)
		require.NoError(t, err)
		root := e.Run(t, "import", e.writeFile(t, "del.json", data))
		require.NotEqual(t, dogSetRoot, root)
		e.RunWithError(t, "get", "horse")
	})

	t.Run("Invalid", func(t *testing.T) {
		root := e.Run(t, "delete", "nothing")
		e.RunWithError(t, "import", filepath.Join(e.dir, "missing.json"))
		e.RunWithError(t, "import", e.writeFile(t, "bad.json", []byte("{")))
		e.RunWithError(t, "import", e.writeFile(t, "badhex.json", []byte(`[{"key":"zz","value":"01"}]`)))

		// Nothing from the failed batch is applied.
		big := []KVPair{
			{Key: "01", Value: "01"},
			{Key: "02", Value: hex.EncodeToString(bytes.Repeat([]byte{1}, 65))},
		}
		data, err := json.Marshal(big)
		require.NoError(t, err)
		e.RunWithError(t, "import", e.writeFile(t, "big.json", data))
		require.Equal(t, root, e.Run(t, "delete", "nothing"))
	})
}

func TestProofVerify(t *testing.T) {
	e := newExecutor(t)
	for _, kv := range [][2]string{{"do", "verb"}, {"dog", "puppy"}, {"doge", "coin"}, {"horse", "stallion"}} {
		e.Run(t, "put", kv[0], kv[1])
	}

	proofOut := e.Run(t, "proof", "dog")
	var proof []string
	require.NoError(t, json.Unmarshal([]byte(proofOut), &proof))
	require.NotEmpty(t, proof)
	proofFile := e.writeFile(t, "proof.json", []byte(proofOut))

	require.Equal(t, "puppy", e.Run(t, "verify", "dog", proofFile))
	require.Equal(t, "puppy", e.Run(t, "verify", "--root", dogSetRoot, "dog", proofFile))
	e.RunWithError(t, "verify", "--root", mpt.EmptyRoot.StringBE(), "dog", proofFile)
	e.RunWithError(t, "verify", "dog")
	e.RunWithError(t, "verify", "dog", filepath.Join(e.dir, "missing.json"))

	t.Run("Absent", func(t *testing.T) {
		absent := e.writeFile(t, "absent.json", []byte(e.Run(t, "proof", "cat")))
		require.Equal(t, "key is absent", e.Run(t, "verify", "cat", absent))
	})

	t.Run("Corrupted", func(t *testing.T) {
		elem, err := hex.DecodeString(proof[0])
		require.NoError(t, err)
		elem[len(elem)-1] ^= 0xff
		bad := append([]string{hex.EncodeToString(elem)}, proof[1:]...)
		data, err := json.Marshal(bad)
		require.NoError(t, err)
		e.RunWithError(t, "verify", "dog", e.writeFile(t, "bad.json", data))
	})
}
