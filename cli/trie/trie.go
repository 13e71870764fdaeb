/*
Package trie implements the CLI commands operating on the persistent trie.
*/
package trie

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nspcc-dev/ethtrie/cli/options"
	"github.com/nspcc-dev/ethtrie/pkg/core/mpt"
	"github.com/nspcc-dev/ethtrie/pkg/core/storage"
	"github.com/nspcc-dev/ethtrie/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// KVPair represents a key-value pair in import and dump files.
type KVPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// latestRootKey keeps the last committed root in the store. Node keys are
// always 32 bytes long, so it can't clash with them.
var latestRootKey = []byte("ethtrie.root")

var (
	rootFlag = cli.StringFlag{
		Name:  "root, r",
		Usage: "trie root hash to operate on (default: the last committed one)",
	}
	hexFlag = cli.BoolFlag{
		Name:  "hex",
		Usage: "keys and values are hex-encoded",
	}
	outFlag = cli.StringFlag{
		Name:  "out, o",
		Usage: "file to write the output to (default: stdout)",
	}
	prefixFlag = cli.StringFlag{
		Name:  "prefix",
		Usage: "dump only the keys with the given prefix",
	}
	countFlag = cli.IntFlag{
		Name:  "count",
		Usage: "maximum number of items to dump, 0 means all",
	}
)

var errInvalidProof = errors.New("proof is invalid")

// NewCommands returns 'trie' command.
func NewCommands() []cli.Command {
	baseFlags := append([]cli.Flag{rootFlag, hexFlag}, options.Config...)
	dumpFlags := append([]cli.Flag{outFlag, prefixFlag, countFlag}, baseFlags...)
	return []cli.Command{{
		Name:  "trie",
		Usage: "operate on the persistent trie",
		Subcommands: []cli.Command{
			{
				Name:      "put",
				Usage:     "put a key-value pair into the trie and commit it",
				UsageText: "ethtrie trie put [--config-file file] [--root hash] [--hex] <key> <value>",
				Action:    putItem,
				Flags:     baseFlags,
			},
			{
				Name:      "get",
				Usage:     "print the value stored for the key",
				UsageText: "ethtrie trie get [--config-file file] [--root hash] [--hex] <key>",
				Action:    getItem,
				Flags:     baseFlags,
			},
			{
				Name:      "delete",
				Usage:     "delete the key from the trie and commit the change",
				UsageText: "ethtrie trie delete [--config-file file] [--root hash] [--hex] <key>",
				Action:    deleteItem,
				Flags:     baseFlags,
			},
			{
				Name:      "import",
				Usage:     "put all the key-value pairs from the JSON file in a single batch",
				UsageText: "ethtrie trie import [--config-file file] [--root hash] <file>",
				Description: `Imports a JSON array of {"key": "hex", "value": "hex"} objects.
   Empty values delete the corresponding keys. Either all the changes are
   committed or none of them.`,
				Action: importItems,
				Flags:  baseFlags,
			},
			{
				Name:      "dump",
				Usage:     "dump key-value pairs of the trie in the JSON format",
				UsageText: "ethtrie trie dump [--config-file file] [--root hash] [--out file] [--prefix prefix] [--count n]",
				Action:    dumpItems,
				Flags:     dumpFlags,
			},
			{
				Name:      "proof",
				Usage:     "print the proof of inclusion (or absence) of the key",
				UsageText: "ethtrie trie proof [--config-file file] [--root hash] [--hex] <key>",
				Action:    getProof,
				Flags:     baseFlags,
			},
			{
				Name:      "verify",
				Usage:     "verify the proof from the file against the root",
				UsageText: "ethtrie trie verify [--config-file file] [--root hash] [--hex] <key> <proof-file>",
				Action:    verifyProof,
				Flags:     baseFlags,
			},
		},
	}}
}

// trieContext holds everything needed by a command to work with the trie.
type trieContext struct {
	log       *zap.Logger
	store     storage.Store
	trie      *mpt.Trie
	logCloser func() error
}

func newTrieContext(ctx *cli.Context) (*trieContext, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	log, _, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, err
	}
	closeLog := func() {
		_ = log.Sync()
		if logCloser != nil {
			_ = logCloser()
		}
	}
	st, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("could not open the store: %w", err)
	}
	root, err := getRoot(ctx, st)
	if err != nil {
		_ = st.Close()
		closeLog()
		return nil, err
	}
	log.Debug("opening trie",
		zap.String("db", cfg.ApplicationConfiguration.DBConfiguration.Type),
		zap.Stringer("root", root))

	trieCfg := cfg.ApplicationConfiguration.Trie
	tr := mpt.NewTrieAt(root, mpt.Config{
		Store:          st,
		Cache:          mpt.NewNodeCache(trieCfg.NodeCacheSize),
		MaxValueLength: trieCfg.MaxValueLength,
		Log:            log,
	})
	return &trieContext{
		log:       log,
		store:     st,
		trie:      tr,
		logCloser: logCloser,
	}, nil
}

// getRoot returns the root specified by the flag or the last committed one.
func getRoot(ctx *cli.Context, st storage.Store) (util.Uint256, error) {
	if s := ctx.String("root"); s != "" {
		root, err := util.Uint256DecodeStringBE(s)
		if err != nil {
			return util.Uint256{}, fmt.Errorf("invalid root: %w", err)
		}
		return root, nil
	}
	data, err := st.Get(latestRootKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return mpt.EmptyRoot, nil
	}
	if err != nil {
		return util.Uint256{}, fmt.Errorf("can't read the latest root: %w", err)
	}
	return util.Uint256DecodeBytesBE(data)
}

func (c *trieContext) Close() {
	if err := c.store.Close(); err != nil {
		c.log.Warn("failed to close the store", zap.Error(err))
	}
	_ = c.log.Sync()
	if c.logCloser != nil {
		_ = c.logCloser()
	}
}

// commit persists the trie, remembers its root as the latest one and prints
// it.
func (c *trieContext) commit(ctx *cli.Context) error {
	root, err := c.trie.Commit()
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	if err := c.store.Put(latestRootKey, root.BytesBE()); err != nil {
		return fmt.Errorf("failed to save the latest root: %w", err)
	}
	c.log.Info("trie committed", zap.Stringer("root", root))
	_, _ = fmt.Fprintln(ctx.App.Writer, root.StringBE())
	return nil
}

func parseData(ctx *cli.Context, s string) ([]byte, error) {
	if !ctx.Bool("hex") {
		return []byte(s), nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func formatData(ctx *cli.Context, b []byte) string {
	if ctx.Bool("hex") {
		return hex.EncodeToString(b)
	}
	return string(b)
}

func checkArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, ctx.NArg())
	}
	return nil
}

// withTrie parses n arguments, opens the trie and runs f.
func withTrie(ctx *cli.Context, n int, f func(c *trieContext, args [][]byte) error) error {
	if err := checkArgs(ctx, n); err != nil {
		return cli.NewExitError(err, 1)
	}
	args := make([][]byte, n)
	for i := range args {
		var err error
		args[i], err = parseData(ctx, ctx.Args().Get(i))
		if err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	c, err := newTrieContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	if err := f(c, args); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func putItem(ctx *cli.Context) error {
	return withTrie(ctx, 2, func(c *trieContext, args [][]byte) error {
		if err := c.trie.Put(args[0], args[1]); err != nil {
			return err
		}
		return c.commit(ctx)
	})
}

func getItem(ctx *cli.Context) error {
	return withTrie(ctx, 1, func(c *trieContext, args [][]byte) error {
		v, err := c.trie.Get(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(ctx.App.Writer, formatData(ctx, v))
		return nil
	})
}

func deleteItem(ctx *cli.Context) error {
	return withTrie(ctx, 1, func(c *trieContext, args [][]byte) error {
		deleted, err := c.trie.Delete(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			c.log.Info("key is not in the trie", zap.String("key", hex.EncodeToString(args[0])))
		}
		return c.commit(ctx)
	})
}

func importItems(ctx *cli.Context) error {
	if err := checkArgs(ctx, 1); err != nil {
		return cli.NewExitError(err, 1)
	}
	kvs, err := readKVPairs(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	c, err := newTrieContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	var b mpt.Batch
	for _, kv := range kvs {
		b.Add(kv.Key, kv.Value)
	}
	n, err := c.trie.PutBatch(b)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("batch failed at item %d: %w", n, err), 1)
	}
	c.log.Info("batch applied", zap.Int("items", n))
	if err := c.commit(ctx); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func readKVPairs(path string) ([]storage.KeyValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs []KVPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	res := make([]storage.KeyValue, len(pairs))
	for i, p := range pairs {
		res[i].Key, err = hex.DecodeString(p.Key)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid key: %w", i, err)
		}
		res[i].Value, err = hex.DecodeString(p.Value)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid value: %w", i, err)
		}
	}
	return res, nil
}

func dumpItems(ctx *cli.Context) error {
	if err := checkArgs(ctx, 0); err != nil {
		return cli.NewExitError(err, 1)
	}
	prefix, err := parseData(ctx, ctx.String("prefix"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	c, err := newTrieContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	kvs, err := c.trie.Find(prefix, ctx.Int("count"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	pairs := make([]KVPair, len(kvs))
	for i, kv := range kvs {
		pairs[i] = KVPair{
			Key:   hex.EncodeToString(kv.Key),
			Value: hex.EncodeToString(kv.Value),
		}
	}

	var w io.Writer = ctx.App.Writer
	if out := ctx.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("error creating file: %w", err), 1)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pairs); err != nil {
		return cli.NewExitError(err, 1)
	}
	c.log.Debug("dump finished", zap.Int("items", len(pairs)))
	return nil
}

func getProof(ctx *cli.Context) error {
	return withTrie(ctx, 1, func(c *trieContext, args [][]byte) error {
		proof, err := c.trie.GetProof(args[0])
		if err != nil {
			return err
		}
		res := make([]string, len(proof))
		for i := range proof {
			res[i] = hex.EncodeToString(proof[i])
		}
		enc := json.NewEncoder(ctx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	})
}

func verifyProof(ctx *cli.Context) error {
	if err := checkArgs(ctx, 2); err != nil {
		return cli.NewExitError(err, 1)
	}
	key, err := parseData(ctx, ctx.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	proof, err := readProof(ctx.Args().Get(1))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	c, err := newTrieContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer c.Close()

	root := c.trie.StateRoot()
	v, ok := mpt.VerifyProof(root, key, proof)
	if !ok {
		return cli.NewExitError(errInvalidProof, 1)
	}
	if v == nil {
		_, _ = fmt.Fprintln(ctx.App.Writer, "key is absent")
		return nil
	}
	_, _ = fmt.Fprintln(ctx.App.Writer, formatData(ctx, v))
	return nil
}

func readProof(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var elems []string
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	proof := make([][]byte, len(elems))
	for i := range elems {
		proof[i], err = hex.DecodeString(elems[i])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return proof, nil
}
