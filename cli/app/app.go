package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/ethtrie/cli/trie"
	"github.com/nspcc-dev/ethtrie/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "EthTrie\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an ethtrie instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "ethtrie"
	ctl.Version = config.Version
	ctl.Usage = "Ethereum-compatible Merkle-Patricia trie tool"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, trie.NewCommands()...)
	return ctl
}
